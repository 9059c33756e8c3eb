package recalc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/Flexing/internal/events"
)

var ErrRunInProgress = errors.New("recalculation already in progress")

// Scheduler runs the recalculator periodically and on request, never more
// than one pass at a time.
type Scheduler struct {
	recalc   *Recalculator
	events   events.Client
	interval time.Duration
	logger   *slog.Logger

	runMu sync.Mutex

	lastMu sync.RWMutex
	last   *Summary

	requests chan string
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler builds a scheduler. A non-positive interval disables the
// periodic pass; requests and TryRun still work.
func NewScheduler(r *Recalculator, ev events.Client, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		recalc:   r,
		events:   ev,
		interval: interval,
		logger:   logger,
		requests: make(chan string, 1),
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.subscribe()
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Request queues an asynchronous pass. Requests arriving while one is
// already queued are coalesced.
func (s *Scheduler) Request(trigger string) {
	select {
	case s.requests <- trigger:
	default:
	}
}

// TryRun executes a pass now unless one is already running.
func (s *Scheduler) TryRun(ctx context.Context, trigger string) (*Summary, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	sum, err := s.recalc.RunTriggered(ctx, trigger)
	if sum != nil {
		s.lastMu.Lock()
		s.last = sum
		s.lastMu.Unlock()
	}
	return sum, err
}

// Last returns the most recent summary, or nil before the first pass.
func (s *Scheduler) Last() *Summary {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

func (s *Scheduler) subscribe() {
	if s.events == nil {
		return
	}
	err := s.events.Subscribe(events.SubjectRecalcRequest, func(_ string, data []byte) {
		var req events.RecalcRequestEvent
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				s.logger.Warn("invalid recalc request event", "error", err)
				return
			}
		}
		s.logger.Info("recalculation requested", "requested_by", req.RequestedBy, "reason", req.Reason)
		s.Request(TriggerEvent)
	})
	if err != nil {
		s.logger.Warn("failed to subscribe to recalc requests", "error", err)
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-tick:
			s.runLogged(ctx, TriggerScheduled)
		case trigger := <-s.requests:
			s.runLogged(ctx, trigger)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context, trigger string) {
	_, err := s.TryRun(ctx, trigger)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("skipping recalculation, previous run still in progress", "trigger", trigger)
	case err != nil:
		s.logger.Error("recalculation failed", "trigger", trigger, "error", err)
	}
}
