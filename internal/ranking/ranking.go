package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

type Entry struct {
	Rank            int       `json:"rank"`
	CandidateID     uuid.UUID `json:"candidate_id"`
	Name            string    `json:"name"`
	Unit            string    `json:"unit,omitempty"`
	Year            int       `json:"year"`
	AverageScore    float64   `json:"average_score"`
	EvaluationCount int       `json:"evaluation_count"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rank orders candidates by average score, then evaluation count, then name,
// and assigns competition ranks: candidates whose averages agree to two
// decimals share a rank and the next rank is skipped (1, 2, 2, 4).
func Rank(averages []*store.CandidateAverage) []Entry {
	entries := make([]Entry, 0, len(averages))
	for _, a := range averages {
		if a == nil {
			continue
		}
		entries = append(entries, Entry{
			CandidateID:     a.CandidateID,
			Name:            a.Name,
			Unit:            a.Unit,
			Year:            a.Year,
			AverageScore:    round2(a.AverageScore),
			EvaluationCount: a.EvaluationCount,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		if a.EvaluationCount != b.EvaluationCount {
			return a.EvaluationCount > b.EvaluationCount
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	for i := range entries {
		if i > 0 && entries[i].AverageScore == entries[i-1].AverageScore {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}

// Top returns at most limit entries. A non-positive limit returns all.
func Top(entries []Entry, limit int) []Entry {
	if limit <= 0 || limit >= len(entries) {
		return entries
	}
	return entries[:limit]
}
