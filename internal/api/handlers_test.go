package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Flexing/internal/audit"
	"github.com/MikeSquared-Agency/Flexing/internal/events"
	"github.com/MikeSquared-Agency/Flexing/internal/ranking"
	"github.com/MikeSquared-Agency/Flexing/internal/recalc"
	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

const allHundreds = `{"performance":100,"innovation_impact":100,"achievement":100,"inspirational":100,
	"communication":100,"collaboration":100,"leadership":100,"track_record":100,"integrity":100}`

// innovatorCandidate reaches 89 with perfect form scores: no award, so the
// high-score ceiling applies.
func innovatorCandidate() store.Candidate {
	return store.Candidate{
		NIP:  "198501012010011001",
		Name: "Rina",
		Integrity: scoring.IntegrityFlags{
			FreeOfFindings: true, NoDisciplinaryPunishment: true, NotUnderDisciplinaryReview: true,
		},
		Achievement: scoring.AchievementFlags{HasInnovation: true},
		SKP:         scoring.SKPFlags{LastTwoYearsGood: true, ShowsImprovement: true},
	}
}

func TestPreview(t *testing.T) {
	env := setupTestRouter(t)

	t.Run("capped score", func(t *testing.T) {
		body := `{
			"integrity":{"free_of_findings":true,"no_disciplinary_punishment":true,"not_under_disciplinary_review":true},
			"achievement":{"has_innovation":true},
			"skp":{"last_two_years_good":true,"shows_improvement":true},
			"core_values":[100,100,100,100,100,100,100]
		}`
		w := env.evaluator("POST", "/api/v1/scoring/preview", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res scoring.ScoreResult
		decode(t, w, &res)
		assert.Equal(t, 89.0, res.FinalScore)
		assert.Equal(t, scoring.CapHighScoreRequiresBoth, res.CapApplied)
		assert.True(t, res.IsValid)
		assert.Len(t, res.Components, 4)
	})

	t.Run("too many core values is reported invalid", func(t *testing.T) {
		body := `{"core_values":[1,2,3,4,5,6,7,8]}`
		w := env.evaluator("POST", "/api/v1/scoring/preview", body)
		require.Equal(t, http.StatusOK, w.Code)

		var res scoring.ScoreResult
		decode(t, w, &res)
		assert.False(t, res.IsValid)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := env.evaluator("POST", "/api/v1/scoring/preview", `{"core_values":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPreviewForm(t *testing.T) {
	env := setupTestRouter(t)
	c := env.addCandidate(innovatorCandidate())

	t.Run("uses candidate criteria", func(t *testing.T) {
		body := `{"candidate_id":"` + c.ID.String() + `","scores":` + allHundreds + `}`
		w := env.evaluator("POST", "/api/v1/scoring/preview/form", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res scoring.ScoreResult
		decode(t, w, &res)
		assert.Equal(t, 89.0, res.FinalScore)
	})

	t.Run("unknown candidate", func(t *testing.T) {
		body := `{"candidate_id":"` + uuid.NewString() + `","scores":{}}`
		w := env.evaluator("POST", "/api/v1/scoring/preview/form", body)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing candidate", func(t *testing.T) {
		w := env.evaluator("POST", "/api/v1/scoring/preview/form", `{"scores":{}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateEvaluation(t *testing.T) {
	env := setupTestRouter(t)
	c := env.addCandidate(innovatorCandidate())
	body := `{"candidate_id":"` + c.ID.String() + `","scores":` + allHundreds + `,"notes":"solid year"}`

	w := env.evaluator("POST", "/api/v1/evaluations", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp EvaluationResponse
	decode(t, w, &resp)
	require.NotNil(t, resp.Evaluation.StoredScore)
	assert.Equal(t, 89.0, *resp.Evaluation.StoredScore)
	assert.Equal(t, scoring.CapHighScoreRequiresBoth, resp.Evaluation.CapApplied)
	assert.Equal(t, "eval-1", resp.Evaluation.EvaluatorID)
	assert.Equal(t, 2025, resp.Evaluation.Year, "year defaults to the candidate's")
	assert.Equal(t, 89.0, resp.Result.FinalScore)

	require.Len(t, env.events.messages, 1)
	msg := env.events.messages[0]
	assert.Equal(t, events.SubjectEvaluationSubmitted(resp.Evaluation.ID.String()), msg.subject)
	evt, ok := msg.data.(events.EvaluationSubmittedEvent)
	require.True(t, ok)
	assert.Equal(t, string(scoring.CapHighScoreRequiresBoth), evt.CapApplied)

	t.Run("duplicate", func(t *testing.T) {
		w := env.evaluator("POST", "/api/v1/evaluations", body)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("another evaluator", func(t *testing.T) {
		w := env.do("POST", "/api/v1/evaluations", body, "X-Evaluator-ID", "eval-2")
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestCreateEvaluationValidation(t *testing.T) {
	env := setupTestRouter(t)
	c := env.addCandidate(innovatorCandidate())

	tests := []struct {
		name string
		body string
		code int
	}{
		{"score above scale", `{"candidate_id":"` + c.ID.String() + `","scores":{"leadership":150}}`, http.StatusBadRequest},
		{"score below scale", `{"candidate_id":"` + c.ID.String() + `","scores":{"achievement":0}}`, http.StatusBadRequest},
		{"missing candidate", `{"scores":{}}`, http.StatusBadRequest},
		{"unknown candidate", `{"candidate_id":"` + uuid.NewString() + `","scores":{}}`, http.StatusNotFound},
		{"malformed", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.evaluator("POST", "/api/v1/evaluations", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, env.events.messages)
}

func createEvaluation(t *testing.T, env *testEnv, c *store.Candidate) *store.Evaluation {
	t.Helper()
	body := `{"candidate_id":"` + c.ID.String() + `","scores":` + allHundreds + `}`
	w := env.evaluator("POST", "/api/v1/evaluations", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp EvaluationResponse
	decode(t, w, &resp)
	return resp.Evaluation
}

func TestListAndGetEvaluations(t *testing.T) {
	env := setupTestRouter(t)
	a := env.addCandidate(innovatorCandidate())
	b := env.addCandidate(store.Candidate{NIP: "2", Name: "Tono"})
	e := createEvaluation(t, env, a)
	createEvaluation(t, env, b)

	w := env.evaluator("GET", "/api/v1/evaluations?candidate_id="+a.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Evaluation
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, e.ID, list[0].ID)

	w = env.evaluator("GET", "/api/v1/evaluations?evaluator_id=someone-else", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = env.evaluator("GET", "/api/v1/evaluations?candidate_id=bad", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.evaluator("GET", "/api/v1/evaluations/"+e.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got store.Evaluation
	decode(t, w, &got)
	assert.Equal(t, e.ID, got.ID)

	w = env.evaluator("GET", "/api/v1/evaluations/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExplainReportsDrift(t *testing.T) {
	env := setupTestRouter(t)
	c := env.addCandidate(innovatorCandidate())
	e := createEvaluation(t, env, c)

	w := env.evaluator("GET", "/api/v1/evaluations/"+e.ID.String()+"/explain", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var fresh ExplainResponse
	decode(t, w, &fresh)
	require.NotNil(t, fresh.Drift)
	assert.InDelta(t, 0, *fresh.Drift, 1e-9)
	assert.False(t, fresh.Stale)

	// The candidate wins an award after the evaluation was scored.
	c.Achievement.HasAward = true
	require.NoError(t, env.store.UpdateCandidate(context.Background(), c))

	w = env.evaluator("GET", "/api/v1/evaluations/"+e.ID.String()+"/explain", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stale ExplainResponse
	decode(t, w, &stale)
	assert.Equal(t, 100.0, stale.Recomputed.FinalScore)
	assert.Equal(t, scoring.CapNone, stale.Recomputed.CapApplied)
	assert.Equal(t, scoring.CapHighScoreRequiresBoth, stale.StoredCapApplied)
	require.NotNil(t, stale.Drift)
	assert.InDelta(t, 11, *stale.Drift, 1e-9)
	assert.True(t, stale.Stale)
}

func TestNarrative(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := setupTestRouter(t, func(d *Deps) { d.Narrative = nil })
		w := env.evaluator("GET", "/api/v1/evaluations/"+uuid.NewString()+"/narrative", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("passes recomputed score", func(t *testing.T) {
		env := setupTestRouter(t)
		c := env.addCandidate(innovatorCandidate())
		e := createEvaluation(t, env, c)

		w := env.evaluator("GET", "/api/v1/evaluations/"+e.ID.String()+"/narrative", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "consistent performer")
		assert.Equal(t, "Rina", env.narrative.got.CandidateName)
		assert.Equal(t, 89.0, env.narrative.got.FinalScore)
	})

	t.Run("upstream failure", func(t *testing.T) {
		env := setupTestRouter(t)
		env.narrative.err = errors.New("timeout")
		c := env.addCandidate(innovatorCandidate())
		e := createEvaluation(t, env, c)

		w := env.evaluator("GET", "/api/v1/evaluations/"+e.ID.String()+"/narrative", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestRanking(t *testing.T) {
	env := setupTestRouter(t)
	env.store.averages = []*store.CandidateAverage{
		{CandidateID: uuid.New(), Name: "Budi", Year: 2025, AverageScore: 80, EvaluationCount: 2},
		{CandidateID: uuid.New(), Name: "Ani", Year: 2025, AverageScore: 92.5, EvaluationCount: 3},
		{CandidateID: uuid.New(), Name: "Lama", Year: 2024, AverageScore: 99, EvaluationCount: 1},
	}

	t.Run("json", func(t *testing.T) {
		w := env.evaluator("GET", "/api/v1/ranking?year=2025", "")
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Year    int             `json:"year"`
			Entries []ranking.Entry `json:"entries"`
		}
		decode(t, w, &resp)
		assert.Equal(t, 2025, resp.Year)
		require.Len(t, resp.Entries, 2)
		assert.Equal(t, "Ani", resp.Entries[0].Name)
		assert.Equal(t, 1, resp.Entries[0].Rank)
	})

	t.Run("limit", func(t *testing.T) {
		w := env.evaluator("GET", "/api/v1/ranking?year=2025&limit=1", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "Budi")
	})

	t.Run("pdf", func(t *testing.T) {
		w := env.evaluator("GET", "/api/v1/ranking?year=2025&format=pdf", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
	})

	t.Run("bad year", func(t *testing.T) {
		w := env.evaluator("GET", "/api/v1/ranking?year=abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdminRecalculate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := setupTestRouter(t)
		w := env.admin("POST", "/api/v1/admin/recalculate", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Success bool           `json:"success"`
			Summary recalc.Summary `json:"summary"`
		}
		decode(t, w, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "run-1", resp.Summary.RunID)
		assert.Equal(t, recalc.TriggerManual, resp.Summary.Trigger)
	})

	t.Run("already running", func(t *testing.T) {
		env := setupTestRouter(t)
		env.recalc.sum = nil
		env.recalc.err = recalc.ErrRunInProgress
		w := env.admin("POST", "/api/v1/admin/recalculate", "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
	})

	t.Run("read failure", func(t *testing.T) {
		env := setupTestRouter(t)
		env.recalc.sum = nil
		env.recalc.err = errors.New("listing scoring records: connection refused")
		w := env.admin("POST", "/api/v1/admin/recalculate", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"listing scoring records: connection refused"}`, w.Body.String())
	})

	t.Run("disabled", func(t *testing.T) {
		env := setupTestRouter(t, func(d *Deps) { d.Recalculator = nil })
		w := env.admin("POST", "/api/v1/admin/recalculate", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAdminLastRecalc(t *testing.T) {
	env := setupTestRouter(t)

	w := env.admin("GET", "/api/v1/admin/recalculate/last", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.admin("POST", "/api/v1/admin/recalculate", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.admin("GET", "/api/v1/admin/recalculate/last", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sum recalc.Summary
	decode(t, w, &sum)
	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, recalc.TriggerManual, sum.Trigger)

	disabled := setupTestRouter(t, func(d *Deps) { d.Recalculator = nil })
	w = disabled.admin("GET", "/api/v1/admin/recalculate/last", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminRecalcRuns(t *testing.T) {
	env := setupTestRouter(t)
	for i := 0; i < 3; i++ {
		env.store.runs = append(env.store.runs, &store.RecalcRun{ID: uuid.New(), Trigger: recalc.TriggerScheduled})
	}

	w := env.admin("GET", "/api/v1/admin/recalculate/runs?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var runs []store.RecalcRun
	decode(t, w, &runs)
	assert.Len(t, runs, 2)

	w = env.admin("GET", "/api/v1/admin/recalculate/runs?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHighScorers(t *testing.T) {
	env := setupTestRouter(t)
	score := 95.0
	env.auditor.sum = &audit.Summary{
		Threshold: 90,
		Examined:  2,
		Flagged: []audit.Flagged{
			{ID: uuid.NewString(), CandidateID: uuid.NewString(), EvaluatorID: "eval-1", Year: 2025, StoredScore: score, ViolationA: true},
		},
	}

	w := env.admin("GET", "/api/v1/admin/audit/high-scorers", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sum audit.Summary
	decode(t, w, &sum)
	assert.Equal(t, 2, sum.Examined)
	require.Len(t, sum.Flagged, 1)
	assert.True(t, sum.Flagged[0].ViolationA)

	w = env.admin("GET", "/api/v1/admin/audit/high-scorers?format=pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))

	env.auditor.err = errors.New("boom")
	w = env.admin("GET", "/api/v1/admin/audit/high-scorers", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
