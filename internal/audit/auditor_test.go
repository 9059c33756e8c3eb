package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Flexing/internal/events"
	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

type mockStore struct {
	records []*store.ScoringRecord
	err     error
	gotMin  float64
}

func (m *mockStore) ListHighScoringRecords(_ context.Context, threshold float64) ([]*store.ScoringRecord, error) {
	m.gotMin = threshold
	return m.records, m.err
}

type mockEvents struct {
	subjects []string
	payloads []interface{}
}

func (m *mockEvents) Publish(subject string, data interface{}) error {
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return nil
}
func (m *mockEvents) Subscribe(string, func(string, []byte)) error { return nil }
func (m *mockEvents) Close()                                       {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func highScorer(score float64, integrity scoring.IntegrityFlags, achievement scoring.AchievementFlags) *store.ScoringRecord {
	return &store.ScoringRecord{
		EvaluationID: uuid.New(),
		CandidateID:  uuid.New(),
		EvaluatorID:  "eval-9",
		Year:         2024,
		Integrity:    integrity,
		Achievement:  achievement,
		StoredScore:  &score,
	}
}

var (
	clean = scoring.IntegrityFlags{FreeOfFindings: true, NoDisciplinaryPunishment: true, NotUnderDisciplinaryReview: true}
	both  = scoring.AchievementFlags{HasInnovation: true, HasAward: true}
)

func TestAuditFlagsViolations(t *testing.T) {
	ok := highScorer(95, clean, both)
	noAward := highScorer(92, clean, scoring.AchievementFlags{HasInnovation: true})
	dirty := highScorer(90, scoring.IntegrityFlags{FreeOfFindings: true, NoDisciplinaryPunishment: true}, both)
	bothBad := highScorer(99, scoring.IntegrityFlags{}, scoring.AchievementFlags{})

	ms := &mockStore{records: []*store.ScoringRecord{ok, noAward, dirty, bothBad}}
	ev := &mockEvents{}
	a := New(ms, ev, nil, 0, discardLogger())

	sum, err := a.Audit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90.0, ms.gotMin)
	assert.Equal(t, 4, sum.Examined)
	require.Len(t, sum.Flagged, 3)

	byID := map[string]Flagged{}
	for _, f := range sum.Flagged {
		byID[f.ID] = f
	}
	assert.NotContains(t, byID, ok.EvaluationID.String())

	f := byID[noAward.EvaluationID.String()]
	assert.True(t, f.ViolationA)
	assert.False(t, f.ViolationB)
	assert.Equal(t, 92.0, f.StoredScore)

	f = byID[dirty.EvaluationID.String()]
	assert.False(t, f.ViolationA)
	assert.True(t, f.ViolationB)

	f = byID[bothBad.EvaluationID.String()]
	assert.True(t, f.ViolationA)
	assert.True(t, f.ViolationB)

	require.Equal(t, []string{events.SubjectAuditFlagged}, ev.subjects)
	payload := ev.payloads[0].(events.AuditFlaggedEvent)
	assert.Equal(t, 3, payload.Flagged)
	assert.Len(t, payload.EvaluationIDs, 3)
}

func TestAuditCleanSetPublishesNothing(t *testing.T) {
	ms := &mockStore{records: []*store.ScoringRecord{highScorer(100, clean, both)}}
	ev := &mockEvents{}
	sum, err := New(ms, ev, nil, 0, discardLogger()).Audit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Examined)
	assert.Empty(t, sum.Flagged)
	assert.Empty(t, ev.subjects)
}

func TestAuditIgnoresRecordsBelowThreshold(t *testing.T) {
	ms := &mockStore{records: []*store.ScoringRecord{
		highScorer(89.99, scoring.IntegrityFlags{}, scoring.AchievementFlags{}),
		{EvaluationID: uuid.New()},
	}}
	sum, err := New(ms, nil, nil, 90, discardLogger()).Audit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Examined)
	assert.Empty(t, sum.Flagged)
}

func TestAuditReadFailure(t *testing.T) {
	ms := &mockStore{err: errors.New("timeout")}
	sum, err := New(ms, nil, nil, 90, discardLogger()).Audit(context.Background())
	assert.Error(t, err)
	assert.Nil(t, sum)
}

func TestAuditDoesNotMutateRecords(t *testing.T) {
	rec := highScorer(97, scoring.IntegrityFlags{}, both)
	before := *rec
	_, err := New(&mockStore{records: []*store.ScoringRecord{rec}}, nil, nil, 90, discardLogger()).Audit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, *rec)
}
