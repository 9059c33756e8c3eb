package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

type CandidatesHandler struct {
	store store.Store
}

func NewCandidatesHandler(s store.Store) *CandidatesHandler {
	return &CandidatesHandler{store: s}
}

// POST /api/v1/admin/candidates
func (h *CandidatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var c store.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	c.NIP = strings.TrimSpace(c.NIP)
	c.Name = strings.TrimSpace(c.Name)
	if c.NIP == "" || c.Name == "" {
		writeError(w, http.StatusBadRequest, "nip and name are required")
		return
	}
	if c.Year <= 0 {
		writeError(w, http.StatusBadRequest, "year is required")
		return
	}

	if err := h.store.CreateCandidate(r.Context(), &c); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GET /api/v1/candidates
func (h *CandidatesHandler) List(w http.ResponseWriter, r *http.Request) {
	year, ok := queryInt(r, "year", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	limit, ok := queryInt(r, "limit", 100)
	if !ok || limit <= 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	filter := store.CandidateFilter{
		Year:   year,
		Unit:   r.URL.Query().Get("unit"),
		Search: r.URL.Query().Get("q"),
		Limit:  limit,
		Offset: offset,
	}
	candidates, err := h.store.ListCandidates(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if candidates == nil {
		candidates = []*store.Candidate{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

// GET /api/v1/candidates/{id}
func (h *CandidatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	c, err := h.store.GetCandidate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Update replaces the candidate's details and criteria. Stored scores are left
// alone; the next recalculation pass brings them back in line.
// PUT /api/v1/admin/candidates/{id}
func (h *CandidatesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.store.GetCandidate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}

	var c store.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt
	if strings.TrimSpace(c.NIP) == "" {
		c.NIP = existing.NIP
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = existing.Name
	}
	if c.Year <= 0 {
		c.Year = existing.Year
	}

	if err := h.store.UpdateCandidate(r.Context(), &c); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}
