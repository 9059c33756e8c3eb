// Package audit sweeps high-scoring evaluations for evidence the score should
// not have been reachable. It never modifies stored data.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/Flexing/internal/events"
	"github.com/MikeSquared-Agency/Flexing/internal/metrics"
	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

type Store interface {
	ListHighScoringRecords(ctx context.Context, threshold float64) ([]*store.ScoringRecord, error)
}

// Flagged is a high scorer with at least one violation.
type Flagged struct {
	ID          string  `json:"id"`
	CandidateID string  `json:"candidate_id"`
	EvaluatorID string  `json:"evaluator_id"`
	Year        int     `json:"year"`
	StoredScore float64 `json:"stored_score"`
	// ViolationA: innovation or award is missing on the candidate today.
	ViolationA bool `json:"violation_a"`
	// ViolationB: an integrity flag is false, so the score should be capped at 70.
	ViolationB bool `json:"violation_b"`
}

type Summary struct {
	Threshold float64   `json:"threshold"`
	Examined  int       `json:"examined"`
	Flagged   []Flagged `json:"flagged"`
	AuditedAt time.Time `json:"audited_at"`
}

type Auditor struct {
	store     Store
	events    events.Client
	metrics   *metrics.Metrics
	threshold float64
	logger    *slog.Logger
}

// New builds an Auditor. A non-positive threshold uses the formula's
// high-score threshold.
func New(s Store, ev events.Client, m *metrics.Metrics, threshold float64, logger *slog.Logger) *Auditor {
	if threshold <= 0 {
		threshold = scoring.HighScoreThreshold
	}
	return &Auditor{store: s, events: ev, metrics: m, threshold: threshold, logger: logger}
}

// Check evaluates one record against the current candidate flags.
func Check(r *store.ScoringRecord) (violationA, violationB bool) {
	return !r.Achievement.Both(), !r.Integrity.Perfect()
}

func (a *Auditor) Audit(ctx context.Context) (*Summary, error) {
	records, err := a.store.ListHighScoringRecords(ctx, a.threshold)
	if err != nil {
		return nil, fmt.Errorf("read high scoring records: %w", err)
	}

	sum := &Summary{
		Threshold: a.threshold,
		Examined:  len(records),
		Flagged:   []Flagged{},
		AuditedAt: time.Now().UTC(),
	}
	for _, r := range records {
		// The store filters by threshold; guard anyway so a looser query
		// cannot leak low scorers into the report.
		if r.StoredScore == nil || *r.StoredScore < a.threshold {
			sum.Examined--
			continue
		}
		va, vb := Check(r)
		if !va && !vb {
			continue
		}
		sum.Flagged = append(sum.Flagged, Flagged{
			ID:          r.EvaluationID.String(),
			CandidateID: r.CandidateID.String(),
			EvaluatorID: r.EvaluatorID,
			Year:        r.Year,
			StoredScore: *r.StoredScore,
			ViolationA:  va,
			ViolationB:  vb,
		})
	}

	a.metrics.SetAudit(sum.Examined, len(sum.Flagged))
	a.logger.Info("high scorer audit complete", "threshold", a.threshold, "examined", sum.Examined, "flagged", len(sum.Flagged))

	if len(sum.Flagged) > 0 && a.events != nil {
		ids := make([]string, 0, len(sum.Flagged))
		for _, f := range sum.Flagged {
			ids = append(ids, f.ID)
		}
		if err := a.events.Publish(events.SubjectAuditFlagged, events.AuditFlaggedEvent{
			Examined:      sum.Examined,
			Flagged:       len(sum.Flagged),
			EvaluationIDs: ids,
			Timestamp:     sum.AuditedAt,
		}); err != nil {
			a.logger.Warn("failed to publish audit event", "error", err)
		}
	}
	return sum, nil
}
