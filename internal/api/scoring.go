package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Flexing/internal/metrics"
	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

type ScoringHandler struct {
	store   store.Store
	metrics *metrics.Metrics
}

func NewScoringHandler(s store.Store, m *metrics.Metrics) *ScoringHandler {
	return &ScoringHandler{store: s, metrics: m}
}

// Preview scores a raw record without persisting anything.
// POST /api/v1/scoring/preview
func (h *ScoringHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var in scoring.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	start := time.Now()
	result := scoring.ScoreRecord(in)
	h.metrics.ObserveScore(string(result.CapApplied), time.Since(start))

	writeJSON(w, http.StatusOK, result)
}

type PreviewFormRequest struct {
	CandidateID uuid.UUID          `json:"candidate_id"`
	Scores      scoring.FormScores `json:"scores"`
}

// PreviewForm scores a form against the candidate's stored criteria.
// POST /api/v1/scoring/preview/form
func (h *ScoringHandler) PreviewForm(w http.ResponseWriter, r *http.Request) {
	var req PreviewFormRequest
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

	start := time.Now()
	result := scoring.Score(candidateInputs(c, req.Scores))
	h.metrics.ObserveScore(string(result.CapApplied), time.Since(start))

	writeJSON(w, http.StatusOK, result)
}

func candidateInputs(c *store.Candidate, scores scoring.FormScores) scoring.ScoreInputs {
	return scoring.ScoreInputs{
		Integrity:   c.Integrity,
		Achievement: c.Achievement,
		SKP:         c.SKP,
		CoreValues:  scores.Canonical(),
	}
}
