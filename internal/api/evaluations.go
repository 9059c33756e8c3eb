package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Flexing/internal/events"
	"github.com/MikeSquared-Agency/Flexing/internal/metrics"
	"github.com/MikeSquared-Agency/Flexing/internal/narrative"
	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

type EvaluationsHandler struct {
	store     store.Store
	events    events.Client
	narrative narrative.Client
	metrics   *metrics.Metrics
	tolerance float64
	logger    *slog.Logger
}

func NewEvaluationsHandler(s store.Store, ev events.Client, n narrative.Client, m *metrics.Metrics, tolerance float64, logger *slog.Logger) *EvaluationsHandler {
	return &EvaluationsHandler{store: s, events: ev, narrative: n, metrics: m, tolerance: tolerance, logger: logger}
}

type CreateEvaluationRequest struct {
	CandidateID uuid.UUID          `json:"candidate_id"`
	Year        int                `json:"year"`
	Scores      scoring.FormScores `json:"scores"`
	Notes       string             `json:"notes"`
}

type EvaluationResponse struct {
	Evaluation *store.Evaluation   `json:"evaluation"`
	Result     scoring.ScoreResult `json:"result"`
}

// validateFormScores rejects ratings outside the form's 1-100 scale. Missing
// ratings are allowed and count as the default.
func validateFormScores(f scoring.FormScores) error {
	fields := []struct {
		name string
		v    *float64
	}{
		{"performance", f.Performance},
		{"innovation_impact", f.InnovationImpact},
		{"achievement", f.Achievement},
		{"inspirational", f.Inspirational},
		{"communication", f.Communication},
		{"collaboration", f.Collaboration},
		{"leadership", f.Leadership},
		{"track_record", f.TrackRecord},
		{"integrity", f.Integrity},
	}
	for _, fld := range fields {
		if fld.v == nil {
			continue
		}
		if math.IsNaN(*fld.v) || *fld.v < 1 || *fld.v > 100 {
			return fmt.Errorf("scores.%s must be between 1 and 100", fld.name)
		}
	}
	return nil
}

// Create scores a submitted form against the candidate's criteria and stores
// both the form and the derived score.
// POST /api/v1/evaluations
func (h *EvaluationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.CandidateID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "candidate_id is required")
		return
	}
	if err := validateFormScores(req.Scores); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.store.GetCandidate(r.Context(), req.CandidateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	if req.Year == 0 {
		req.Year = c.Year
	}

	start := time.Now()
	result := scoring.Score(candidateInputs(c, req.Scores))
	h.metrics.ObserveScore(string(result.CapApplied), time.Since(start))

	score := result.FinalScore
	e := &store.Evaluation{
		CandidateID: c.ID,
		EvaluatorID: EvaluatorFromContext(r.Context()),
		Year:        req.Year,
		Scores:      req.Scores,
		Notes:       req.Notes,
		StoredScore: &score,
		CapApplied:  result.CapApplied,
	}
	if err := h.store.CreateEvaluation(r.Context(), e); err != nil {
		if errors.Is(err, store.ErrDuplicateEvaluation) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.events != nil {
		evt := events.EvaluationSubmittedEvent{
			EvaluationID: e.ID.String(),
			CandidateID:  e.CandidateID.String(),
			EvaluatorID:  e.EvaluatorID,
			Year:         e.Year,
			FinalScore:   score,
			CapApplied:   string(result.CapApplied),
		}
		if err := h.events.Publish(events.SubjectEvaluationSubmitted(e.ID.String()), evt); err != nil {
			h.logger.Warn("failed to publish evaluation submitted", "evaluation_id", e.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, EvaluationResponse{Evaluation: e, Result: result})
}

// GET /api/v1/evaluations
func (h *EvaluationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EvaluationFilter{EvaluatorID: q.Get("evaluator_id")}

	if v := q.Get("candidate_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid candidate_id")
			return
		}
		filter.CandidateID = &id
	}
	var ok bool
	if filter.Year, ok = queryInt(r, "year", 0); !ok {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	if filter.Limit, ok = queryInt(r, "limit", 100); !ok || filter.Limit <= 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, ok = queryInt(r, "offset", 0); !ok || filter.Offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	evals, err := h.store.ListEvaluations(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if evals == nil {
		evals = []*store.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evals)
}

// GET /api/v1/evaluations/{id}
func (h *EvaluationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	e, err := h.store.GetEvaluation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type ExplainResponse struct {
	EvaluationID     uuid.UUID           `json:"evaluation_id"`
	StoredScore      *float64            `json:"stored_score"`
	StoredCapApplied scoring.CapReason   `json:"stored_cap_applied"`
	Recomputed       scoring.ScoreResult `json:"recomputed"`
	Drift            *float64            `json:"drift"`
	Stale            bool                `json:"stale"`
}

// Explain recomputes the score from current criteria and reports how far the
// stored value has drifted.
// GET /api/v1/evaluations/{id}/explain
func (h *EvaluationsHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	rec, err := h.store.GetScoringRecord(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}

	result := scoring.ScoreRecord(rec.RecordInput())
	resp := ExplainResponse{
		EvaluationID:     rec.EvaluationID,
		StoredScore:      rec.StoredScore,
		StoredCapApplied: rec.CapApplied,
		Recomputed:       result,
		Stale:            true,
	}
	if rec.StoredScore != nil {
		drift := result.FinalScore - *rec.StoredScore
		resp.Drift = &drift
		resp.Stale = math.Abs(drift) > h.tolerance || rec.CapApplied != result.CapApplied
	}
	writeJSON(w, http.StatusOK, resp)
}

// Narrative asks the external service for a prose assessment. The score it
// is given is recomputed here and never read back.
// GET /api/v1/evaluations/{id}/narrative
func (h *EvaluationsHandler) Narrative(w http.ResponseWriter, r *http.Request) {
	if h.narrative == nil {
		writeError(w, http.StatusServiceUnavailable, "narrative service not configured")
		return
	}
	id, ok := urlID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	e, err := h.store.GetEvaluation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	c, err := h.store.GetCandidate(r.Context(), e.CandidateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}

	result := scoring.Score(candidateInputs(c, e.Scores))
	n, err := h.narrative.Analyze(r.Context(), narrative.Request{
		CandidateName: c.Name,
		Position:      c.Position,
		Year:          e.Year,
		FinalScore:    result.FinalScore,
		CapApplied:    result.CapApplied,
		Components:    result.Components,
		Scores:        e.Scores,
		Notes:         e.Notes,
	})
	if err != nil {
		h.logger.Warn("narrative request failed", "evaluation_id", e.ID, "error", err)
		writeError(w, http.StatusBadGateway, "narrative service error")
		return
	}
	writeJSON(w, http.StatusOK, n)
}
