package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
)

// ErrDuplicateEvaluation is returned when an evaluator already scored a
// candidate for the same year.
var ErrDuplicateEvaluation = errors.New("evaluation already exists for candidate, evaluator and year")

// Candidate is the civil servant being evaluated, carrying the current
// integrity, achievement and SKP criteria.
type Candidate struct {
	ID       uuid.UUID `json:"id"`
	NIP      string    `json:"nip"`
	Name     string    `json:"name"`
	Unit     string    `json:"unit,omitempty"`
	Position string    `json:"position,omitempty"`
	Year     int       `json:"year"`

	Integrity   scoring.IntegrityFlags   `json:"integrity"`
	Achievement scoring.AchievementFlags `json:"achievement"`
	SKP         scoring.SKPFlags         `json:"skp"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CandidateFilter struct {
	Year   int
	Unit   string
	Search string
	Limit  int
	Offset int
}

// Evaluation is one evaluator's form for one candidate and year.
type Evaluation struct {
	ID          uuid.UUID          `json:"id"`
	CandidateID uuid.UUID          `json:"candidate_id"`
	EvaluatorID string             `json:"evaluator_id"`
	Year        int                `json:"year"`
	Scores      scoring.FormScores `json:"scores"`
	Notes       string             `json:"notes,omitempty"`

	// Derived
	StoredScore *float64          `json:"stored_score"`
	CapApplied  scoring.CapReason `json:"cap_applied"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EvaluationFilter struct {
	CandidateID *uuid.UUID
	EvaluatorID string
	Year        int
	Limit       int
	Offset      int
}

// ScoringRecord joins an evaluation with its candidate's current criteria:
// everything needed to recompute the score.
type ScoringRecord struct {
	EvaluationID uuid.UUID `json:"id"`
	CandidateID  uuid.UUID `json:"candidate_id"`
	EvaluatorID  string    `json:"evaluator_id"`
	Year         int       `json:"year"`

	Integrity   scoring.IntegrityFlags   `json:"integrity"`
	Achievement scoring.AchievementFlags `json:"achievement"`
	SKP         scoring.SKPFlags         `json:"skp"`
	CoreValues  scoring.CoreValues       `json:"core_values"`

	StoredScore *float64          `json:"stored_score"`
	CapApplied  scoring.CapReason `json:"cap_applied"`
}

// RecordInput converts the row into the scorer's boundary shape.
func (r *ScoringRecord) RecordInput() scoring.RecordInput {
	return scoring.RecordInput{
		ID:          r.EvaluationID.String(),
		Integrity:   r.Integrity,
		Achievement: r.Achievement,
		SKP:         r.SKP,
		CoreValues:  r.CoreValues.Slice(),
		StoredScore: r.StoredScore,
	}
}

// ScoreChange is one stored score corrected by a recalculation run.
type ScoreChange struct {
	ID       string   `json:"id"`
	OldScore *float64 `json:"old_score"`
	NewScore float64  `json:"new_score"`
}

// RecordError is a per-record failure during a recalculation run.
type RecordError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// RecalcRun is the persisted summary of one recalculation pass.
type RecalcRun struct {
	ID            uuid.UUID     `json:"run_id"`
	Trigger       string        `json:"trigger"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	TotalExamined int           `json:"total_examined"`
	TotalUpdated  int           `json:"total_updated"`
	Changes       []ScoreChange `json:"changes"`
	Errors        []RecordError `json:"errors"`
	ArchiveKey    string        `json:"archive_key,omitempty"`
}

// CandidateAverage aggregates stored scores across evaluators for one year.
type CandidateAverage struct {
	CandidateID     uuid.UUID `json:"candidate_id"`
	Name            string    `json:"name"`
	Unit            string    `json:"unit,omitempty"`
	Year            int       `json:"year"`
	AverageScore    float64   `json:"average_score"`
	EvaluationCount int       `json:"evaluation_count"`
}

type Store interface {
	// Candidates
	CreateCandidate(ctx context.Context, c *Candidate) error
	GetCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error)
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]*Candidate, error)
	UpdateCandidate(ctx context.Context, c *Candidate) error

	// Evaluations
	CreateEvaluation(ctx context.Context, e *Evaluation) error
	GetEvaluation(ctx context.Context, id uuid.UUID) (*Evaluation, error)
	ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]*Evaluation, error)
	UpdateEvaluationScore(ctx context.Context, id uuid.UUID, score float64, capApplied scoring.CapReason) error

	// Scoring records
	ListScoringRecords(ctx context.Context) ([]*ScoringRecord, error)
	GetScoringRecord(ctx context.Context, evaluationID uuid.UUID) (*ScoringRecord, error)
	ListHighScoringRecords(ctx context.Context, threshold float64) ([]*ScoringRecord, error)

	// Recalculation history
	CreateRecalcRun(ctx context.Context, run *RecalcRun) error
	ListRecalcRuns(ctx context.Context, limit int) ([]*RecalcRun, error)

	// Ranking
	GetCandidateAverages(ctx context.Context, year int) ([]*CandidateAverage, error)

	Close() error
}
