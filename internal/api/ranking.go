package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/Flexing/internal/ranking"
	"github.com/MikeSquared-Agency/Flexing/internal/report"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

type RankingHandler struct {
	store store.Store
	now   func() time.Time
}

func NewRankingHandler(s store.Store) *RankingHandler {
	return &RankingHandler{store: s, now: time.Now}
}

// Ranking orders candidates by their average stored score for a year.
// GET /api/v1/ranking?year=&limit=&format=pdf
func (h *RankingHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	year, ok := queryInt(r, "year", h.now().Year())
	if !ok || year <= 0 {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	limit, ok := queryInt(r, "limit", 0)
	if !ok || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	averages, err := h.store.GetCandidateAverages(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entries := ranking.Top(ranking.Rank(averages), limit)

	if r.URL.Query().Get("format") == "pdf" {
		var buf bytes.Buffer
		if err := report.WriteRankingPDF(&buf, year, entries); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writePDF(w, "ranking-"+strconv.Itoa(year)+".pdf", buf.Bytes())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":    year,
		"entries": entries,
	})
}

func writePDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
