package events

import "time"

// RecalcRequestEvent asks the scheduler for an out-of-band recalculation.
type RecalcRequestEvent struct {
	RequestedBy string `json:"requested_by,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type EvaluationSubmittedEvent struct {
	EvaluationID string  `json:"evaluation_id"`
	CandidateID  string  `json:"candidate_id"`
	EvaluatorID  string  `json:"evaluator_id"`
	Year         int     `json:"year"`
	FinalScore   float64 `json:"final_score"`
	CapApplied   string  `json:"cap_applied,omitempty"`
}

type EvaluationRescoredEvent struct {
	EvaluationID string   `json:"evaluation_id"`
	RunID        string   `json:"run_id"`
	OldScore     *float64 `json:"old_score"`
	NewScore     float64  `json:"new_score"`
}

type RecalcCompletedEvent struct {
	RunID         string    `json:"run_id"`
	Trigger       string    `json:"trigger"`
	TotalExamined int       `json:"total_examined"`
	TotalUpdated  int       `json:"total_updated"`
	ErrorCount    int       `json:"error_count"`
	FinishedAt    time.Time `json:"finished_at"`
}

type AuditFlaggedEvent struct {
	Examined      int       `json:"examined"`
	Flagged       int       `json:"flagged"`
	EvaluationIDs []string  `json:"evaluation_ids"`
	Timestamp     time.Time `json:"timestamp"`
}
