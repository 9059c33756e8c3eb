package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/Flexing/internal/recalc"
	"github.com/MikeSquared-Agency/Flexing/internal/report"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

type AdminHandler struct {
	store   store.Store
	recalc  Recalculator
	auditor Auditor
	logger  *slog.Logger
}

func NewAdminHandler(s store.Store, rc Recalculator, a Auditor, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: s, recalc: rc, auditor: a, logger: logger}
}

// Recalculate runs a batch pass synchronously and returns its summary.
// POST /api/v1/admin/recalculate
func (h *AdminHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	if h.recalc == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"success": false,
			"error":   "recalculation disabled",
		})
		return
	}

	sum, err := h.recalc.TryRun(r.Context(), recalc.TriggerManual)
	if errors.Is(err, recalc.ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if err != nil {
		h.logger.Error("manual recalculation failed", "error", err)
		resp := map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		}
		if sum != nil {
			resp["summary"] = sum
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"summary": sum,
	})
}

// LastRecalc returns the latest pass run by this process, scheduled or
// manual. It is available even when persisting the run failed.
// GET /api/v1/admin/recalculate/last
func (h *AdminHandler) LastRecalc(w http.ResponseWriter, r *http.Request) {
	if h.recalc == nil {
		writeError(w, http.StatusServiceUnavailable, "recalculation disabled")
		return
	}
	sum := h.recalc.Last()
	if sum == nil {
		writeError(w, http.StatusNotFound, "no recalculation has run since startup")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/v1/admin/recalculate/runs?limit=
func (h *AdminHandler) RecalcRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 20)
	if !ok || limit <= 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	runs, err := h.store.ListRecalcRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*store.RecalcRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HighScorers lists high-scoring evaluations whose stored score breaks a cap
// rule under the candidate's current criteria.
// GET /api/v1/admin/audit/high-scorers?format=pdf
func (h *AdminHandler) HighScorers(w http.ResponseWriter, r *http.Request) {
	if h.auditor == nil {
		writeError(w, http.StatusServiceUnavailable, "auditor not configured")
		return
	}
	sum, err := h.auditor.Audit(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("format") == "pdf" {
		var buf bytes.Buffer
		if err := report.WriteAuditPDF(&buf, sum); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writePDF(w, "high-scorer-audit.pdf", buf.Bytes())
		return
	}

	writeJSON(w, http.StatusOK, sum)
}
