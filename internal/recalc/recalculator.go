package recalc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Flexing/internal/archive"
	"github.com/MikeSquared-Agency/Flexing/internal/events"
	"github.com/MikeSquared-Agency/Flexing/internal/metrics"
	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerEvent     = "event"
)

// Store is the persistence surface the recalculator needs.
type Store interface {
	ListScoringRecords(ctx context.Context) ([]*store.ScoringRecord, error)
	UpdateEvaluationScore(ctx context.Context, id uuid.UUID, score float64, capApplied scoring.CapReason) error
	CreateRecalcRun(ctx context.Context, run *store.RecalcRun) error
}

type Options struct {
	// Tolerance is the largest drift between stored and recomputed scores
	// that is left alone.
	Tolerance float64
	// BatchSize records are written before pausing for Throttle.
	BatchSize int
	Throttle  time.Duration
}

func DefaultOptions() Options {
	return Options{Tolerance: 0.1, BatchSize: 50, Throttle: 250 * time.Millisecond}
}

// Summary reports one pass over the evaluation records.
type Summary struct {
	RunID         string              `json:"run_id"`
	Trigger       string              `json:"trigger"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`
	TotalExamined int                 `json:"total_examined"`
	TotalUpdated  int                 `json:"total_updated"`
	Changes       []store.ScoreChange `json:"changes"`
	Errors        []store.RecordError `json:"errors"`
	ArchiveRef    string              `json:"archive_ref,omitempty"`
}

// Recalculator re-derives every stored score with the canonical formula and
// corrects the ones that drifted.
type Recalculator struct {
	store   Store
	events  events.Client
	archive archive.Archiver
	metrics *metrics.Metrics
	opts    Options
	logger  *slog.Logger

	wait func(ctx context.Context, d time.Duration) error
}

// New builds a Recalculator. ev, ar and m may be nil.
func New(s Store, ev events.Client, ar archive.Archiver, m *metrics.Metrics, opts Options, logger *slog.Logger) *Recalculator {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOptions().Tolerance
	}
	return &Recalculator{
		store:   s,
		events:  ev,
		archive: ar,
		metrics: m,
		opts:    opts,
		logger:  logger,
		wait:    sleepCtx,
	}
}

func (r *Recalculator) Run(ctx context.Context) (*Summary, error) {
	return r.RunTriggered(ctx, TriggerManual)
}

// RunTriggered performs one pass. Failing to read the record set is fatal and
// nothing is processed. Per-record write failures are collected in
// Summary.Errors and the pass continues. Cancellation during a throttle pause
// returns the partial summary together with ctx.Err().
func (r *Recalculator) RunTriggered(ctx context.Context, trigger string) (*Summary, error) {
	start := time.Now()
	sum := &Summary{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: start.UTC(),
		Changes:   []store.ScoreChange{},
		Errors:    []store.RecordError{},
	}

	records, err := r.store.ListScoringRecords(ctx)
	if err != nil {
		r.metrics.ObserveRecalc(false, 0, 0, 0, time.Since(start))
		r.logger.Error("recalculation aborted: failed to read records", "run_id", sum.RunID, "error", err)
		return nil, fmt.Errorf("read scoring records: %w", err)
	}

	r.logger.Info("recalculation started", "run_id", sum.RunID, "trigger", trigger, "records", len(records))

	var runErr error
	for i, rec := range records {
		sum.TotalExamined++
		r.process(ctx, sum, rec)

		if r.opts.BatchSize > 0 && r.opts.Throttle > 0 && (i+1)%r.opts.BatchSize == 0 && i+1 < len(records) {
			if err := r.wait(ctx, r.opts.Throttle); err != nil {
				r.logger.Warn("recalculation interrupted", "run_id", sum.RunID, "examined", sum.TotalExamined, "error", err)
				runErr = err
				break
			}
		}
	}

	sum.FinishedAt = time.Now().UTC()
	r.finish(context.WithoutCancel(ctx), sum)
	r.metrics.ObserveRecalc(true, sum.TotalExamined, sum.TotalUpdated, len(sum.Errors), time.Since(start))

	r.logger.Info("recalculation finished",
		"run_id", sum.RunID,
		"examined", sum.TotalExamined,
		"updated", sum.TotalUpdated,
		"errors", len(sum.Errors),
		"duration", sum.FinishedAt.Sub(sum.StartedAt),
	)
	return sum, runErr
}

func (r *Recalculator) process(ctx context.Context, sum *Summary, rec *store.ScoringRecord) {
	id := rec.EvaluationID.String()

	result := scoring.ScoreRecord(rec.RecordInput())
	if !result.IsValid {
		r.logger.Warn("skipping structurally invalid record", "evaluation_id", id)
		sum.Errors = append(sum.Errors, store.RecordError{ID: id, Message: "invalid core value sub-scores"})
		return
	}

	// A drift inside tolerance is left alone unless the stored cap is stale.
	if rec.StoredScore != nil && math.Abs(result.FinalScore-*rec.StoredScore) <= r.opts.Tolerance &&
		rec.CapApplied == result.CapApplied {
		return
	}

	if err := r.store.UpdateEvaluationScore(ctx, rec.EvaluationID, result.FinalScore, result.CapApplied); err != nil {
		r.logger.Error("failed to update evaluation score", "evaluation_id", id, "error", err)
		sum.Errors = append(sum.Errors, store.RecordError{ID: id, Message: err.Error()})
		return
	}

	change := store.ScoreChange{ID: id, OldScore: rec.StoredScore, NewScore: result.FinalScore}
	sum.Changes = append(sum.Changes, change)
	sum.TotalUpdated++

	r.publish(events.SubjectEvaluationRescored(id), events.EvaluationRescoredEvent{
		EvaluationID: id,
		RunID:        sum.RunID,
		OldScore:     change.OldScore,
		NewScore:     change.NewScore,
	})
}

// finish archives and persists the summary and announces completion. All of
// it is best-effort.
func (r *Recalculator) finish(ctx context.Context, sum *Summary) {
	if r.archive != nil {
		ref, err := r.archive.PutJSON(ctx, archive.RecalcRunKey(sum.RunID), sum)
		if err != nil {
			r.logger.Warn("failed to archive recalculation summary", "run_id", sum.RunID, "error", err)
		} else {
			sum.ArchiveRef = ref
		}
	}

	runID, _ := uuid.Parse(sum.RunID)
	run := &store.RecalcRun{
		ID:            runID,
		Trigger:       sum.Trigger,
		StartedAt:     sum.StartedAt,
		FinishedAt:    sum.FinishedAt,
		TotalExamined: sum.TotalExamined,
		TotalUpdated:  sum.TotalUpdated,
		Changes:       sum.Changes,
		Errors:        sum.Errors,
		ArchiveKey:    sum.ArchiveRef,
	}
	if err := r.store.CreateRecalcRun(ctx, run); err != nil {
		r.logger.Warn("failed to persist recalculation run", "run_id", sum.RunID, "error", err)
	}

	r.publish(events.SubjectRecalcCompleted, events.RecalcCompletedEvent{
		RunID:         sum.RunID,
		Trigger:       sum.Trigger,
		TotalExamined: sum.TotalExamined,
		TotalUpdated:  sum.TotalUpdated,
		ErrorCount:    len(sum.Errors),
		FinishedAt:    sum.FinishedAt,
	})
}

func (r *Recalculator) publish(subject string, data interface{}) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(subject, data); err != nil {
		r.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
