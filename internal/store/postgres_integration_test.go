//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Flexing/internal/migrations"
	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	require.NoError(t, migrations.Run(dbURL))

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE recalc_runs")
		_, _ = s.pool.Exec(ctx, "TRUNCATE candidates CASCADE")
		s.Close()
	})

	return s
}

func newCandidate(t *testing.T, s *PostgresStore, nip, name string) *Candidate {
	t.Helper()
	c := &Candidate{
		NIP:         nip,
		Name:        name,
		Unit:        "Biro Umum",
		Year:        2024,
		Integrity:   scoring.IntegrityFlags{FreeOfFindings: true, NoDisciplinaryPunishment: true, NotUnderDisciplinaryReview: true},
		Achievement: scoring.AchievementFlags{HasInnovation: true, HasAward: true, AwardEvidence: "https://example.org/award.pdf"},
		SKP:         scoring.SKPFlags{LastTwoYearsGood: true},
	}
	require.NoError(t, s.CreateCandidate(context.Background(), c))
	return c
}

func TestCreateAndGetCandidate(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	c := newCandidate(t, s, "198001012005011001", "Siti Rahma")
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := s.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Siti Rahma", got.Name)
	assert.True(t, got.Integrity.Perfect())
	assert.True(t, got.Achievement.Both())
	assert.Equal(t, "https://example.org/award.pdf", got.Achievement.AwardEvidence)

	missing, err := s.GetCandidate(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateCandidateAndSearch(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	c := newCandidate(t, s, "198001012005011002", "Budi Santoso")
	newCandidate(t, s, "198001012005011003", "Agus Salim")

	c.Achievement.HasAward = false
	require.NoError(t, s.UpdateCandidate(ctx, c))

	got, err := s.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Achievement.HasAward)

	list, err := s.ListCandidates(ctx, CandidateFilter{Search: "budi"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)

	list, err = s.ListCandidates(ctx, CandidateFilter{Year: 2024})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, "Agus Salim", list[0].Name)
}

func TestEvaluationUniqueness(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c := newCandidate(t, s, "198001012005011004", "Dewi Lestari")

	e := &Evaluation{CandidateID: c.ID, EvaluatorID: "eval-1", Year: 2024, Scores: scoring.FormScores{Performance: float64Ptr(88)}}
	require.NoError(t, s.CreateEvaluation(ctx, e))

	dup := &Evaluation{CandidateID: c.ID, EvaluatorID: "eval-1", Year: 2024}
	assert.ErrorIs(t, s.CreateEvaluation(ctx, dup), ErrDuplicateEvaluation)

	other := &Evaluation{CandidateID: c.ID, EvaluatorID: "eval-2", Year: 2024}
	assert.NoError(t, s.CreateEvaluation(ctx, other))
}

func TestScoringRecordsAndScoreUpdate(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c := newCandidate(t, s, "198001012005011005", "Rina Wati")

	e := &Evaluation{
		CandidateID: c.ID,
		EvaluatorID: "eval-1",
		Year:        2024,
		Scores: scoring.FormScores{
			Performance:      float64Ptr(90),
			InnovationImpact: float64Ptr(1),
			Integrity:        float64Ptr(95),
		},
		StoredScore: float64Ptr(50),
	}
	require.NoError(t, s.CreateEvaluation(ctx, e))

	records, err := s.ListScoringRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, e.ID, r.EvaluationID)
	assert.Equal(t, 90.0, *r.CoreValues.Performance)
	assert.Equal(t, 95.0, *r.CoreValues.Integrity)
	assert.Nil(t, r.CoreValues.Leadership)
	assert.True(t, r.Integrity.Perfect())

	require.NoError(t, s.UpdateEvaluationScore(ctx, e.ID, 91.5, scoring.CapNone))
	got, err := s.GetEvaluation(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 91.5, *got.StoredScore)
	assert.Equal(t, scoring.CapNone, got.CapApplied)

	high, err := s.ListHighScoringRecords(ctx, 90)
	require.NoError(t, err)
	assert.Len(t, high, 1)

	assert.Error(t, s.UpdateEvaluationScore(ctx, uuid.New(), 10, scoring.CapNone))
}

func TestRecalcRunsAndAverages(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c := newCandidate(t, s, "198001012005011006", "Hadi Pranoto")

	for i, score := range []float64{80, 90} {
		e := &Evaluation{CandidateID: c.ID, EvaluatorID: uuid.NewString(), Year: 2024, StoredScore: float64Ptr(score)}
		require.NoError(t, s.CreateEvaluation(ctx, e), "evaluation %d", i)
	}

	averages, err := s.GetCandidateAverages(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, averages, 1)
	assert.InDelta(t, 85.0, averages[0].AverageScore, 0.001)
	assert.Equal(t, 2, averages[0].EvaluationCount)

	now := time.Now().UTC()
	run := &RecalcRun{
		Trigger:       "manual",
		StartedAt:     now,
		FinishedAt:    now.Add(time.Second),
		TotalExamined: 2,
		TotalUpdated:  1,
		Changes:       []ScoreChange{{ID: "x", OldScore: float64Ptr(10), NewScore: 20}},
		Errors:        []RecordError{},
	}
	require.NoError(t, s.CreateRecalcRun(ctx, run))
	assert.NotEqual(t, uuid.Nil, run.ID)

	runs, err := s.ListRecalcRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].TotalUpdated)
	require.Len(t, runs[0].Changes, 1)
	assert.Equal(t, 20.0, runs[0].Changes[0].NewScore)
}
