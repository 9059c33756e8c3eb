package ranking

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

func avg(name string, score float64, count int) *store.CandidateAverage {
	return &store.CandidateAverage{CandidateID: uuid.New(), Name: name, Year: 2024, AverageScore: score, EvaluationCount: count}
}

func TestRankCompetitionOrdering(t *testing.T) {
	entries := Rank([]*store.CandidateAverage{
		avg("Dewi", 80, 3),
		avg("Agus", 91.004, 2),
		avg("Budi", 85.5, 4),
		avg("Citra", 85.499, 2),
		avg("Eka", 70, 1),
	})

	require.Len(t, entries, 5)
	names := []string{}
	ranks := []int{}
	for _, e := range entries {
		names = append(names, e.Name)
		ranks = append(ranks, e.Rank)
	}
	assert.Equal(t, []string{"Agus", "Budi", "Citra", "Dewi", "Eka"}, names)
	assert.Equal(t, []int{1, 2, 2, 4, 5}, ranks)
	assert.Equal(t, 91.0, entries[0].AverageScore)
}

func TestRankTieBreakByNameWhenCountsEqual(t *testing.T) {
	entries := Rank([]*store.CandidateAverage{
		avg("zaki", 88, 2),
		avg("Yusuf", 88, 2),
		nil,
	})
	require.Len(t, entries, 2)
	assert.Equal(t, "Yusuf", entries[0].Name)
	assert.Equal(t, 1, entries[1].Rank)
}

func TestTop(t *testing.T) {
	entries := Rank([]*store.CandidateAverage{avg("a", 1, 1), avg("b", 2, 1), avg("c", 3, 1)})
	assert.Len(t, Top(entries, 2), 2)
	assert.Len(t, Top(entries, 0), 3)
	assert.Len(t, Top(entries, 10), 3)
	assert.Empty(t, Rank(nil))
}
