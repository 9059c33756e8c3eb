package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Client interface {
	Publish(subject string, data interface{}) error
	Subscribe(subject string, handler func(subject string, data []byte)) error
	Close()
}

// HeaderPublishedAt carries the publish time of every event message.
const HeaderPublishedAt = "Flexing-Published-At"

const publishTimeout = 5 * time.Second

// NATSClient publishes events into the FLEXING_EVENTS JetStream stream. When
// the stream cannot be created it falls back to core NATS publishes so
// subscribers still see live events.
type NATSClient struct {
	conn        *nats.Conn
	js          jetstream.JetStream
	streamReady bool
	subs        []*nats.Subscription
	logger      *slog.Logger
}

func NewNATSClient(ctx context.Context, url string, logger *slog.Logger) (*NATSClient, error) {
	nc, err := nats.Connect(url,
		nats.Name("flexing"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("events connection lost", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("events connection restored", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("events jetstream: %w", err)
	}

	c := &NATSClient{conn: nc, js: js, logger: logger}
	if err := c.ensureStream(ctx); err != nil {
		logger.Warn("event stream unavailable, publishing without persistence", "stream", StreamName, "error", err)
	} else {
		c.streamReady = true
	}
	return c, nil
}

func (c *NATSClient) ensureStream(ctx context.Context) error {
	maxAge, err := time.ParseDuration(StreamMaxAge)
	if err != nil {
		return err
	}
	_, err = c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  StreamSubjects,
		MaxAge:    maxAge,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	return err
}

// NewMessage encodes an event payload as a JSON message for subject.
func NewMessage(subject string, data interface{}) (*nats.Msg, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set(HeaderPublishedAt, time.Now().UTC().Format(time.RFC3339Nano))
	msg.Data = payload
	return msg, nil
}

func (c *NATSClient) Publish(subject string, data interface{}) error {
	msg, err := NewMessage(subject, data)
	if err != nil {
		return err
	}
	if !c.streamReady {
		return c.conn.PublishMsg(msg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := c.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers live messages on subject. A panicking handler is logged
// and does not stop delivery.
func (c *NATSClient) Subscribe(subject string, handler func(string, []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("event handler panicked", "subject", msg.Subject, "panic", r)
			}
		}()
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	return nil
}

func (c *NATSClient) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

// Noop discards published events. Used when no NATS url is configured.
type Noop struct{}

func (Noop) Publish(string, interface{}) error            { return nil }
func (Noop) Subscribe(string, func(string, []byte)) error { return nil }
func (Noop) Close()                                       {}
