package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/facematch"
)

const (
	defaultSimilarLimit = 5
	maxSimilarLimit     = 50
)

// IdentitiesHandler exposes enrolled identities. Embeddings are never returned.
type IdentitiesHandler struct {
	store database.IdentityReader
	index *facematch.Index
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(store database.IdentityReader, index *facematch.Index) *IdentitiesHandler {
	return &IdentitiesHandler{store: store, index: index}
}

// IdentityResponse describes an enrolled identity
type IdentityResponse struct {
	Name       string    `json:"name"`
	Dim        int       `json:"dim"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// SimilarResponse lists identities whose faces are close to the named one
type SimilarResponse struct {
	Name    string            `json:"name"`
	Similar []facematch.Match `json:"similar"`
}

// List returns all enrolled identities in enrollment order
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.store.LookupAll(r.Context())
	if err != nil {
		log.Printf("listing identities failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	resp := make([]IdentityResponse, len(identities))
	for i, id := range identities {
		resp[i] = IdentityResponse{Name: id.Name, Dim: id.Dim(), EnrolledAt: id.EnrolledAt}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"identities": resp,
		"count":      len(resp),
	})
}

// Similar returns the enrolled identities nearest to the named one.
func (h *IdentitiesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit := defaultSimilarLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSimilarLimit)
	}

	identities, err := h.store.LookupAll(r.Context())
	if err != nil {
		log.Printf("loading identities for similarity search failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load identities")
		return
	}
	h.index.Sync(identities)

	matches, err := h.index.Similar(name, limit)
	if err != nil {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if matches == nil {
		matches = []facematch.Match{}
	}

	display := name
	for _, id := range identities {
		if database.EqualFold(id.Name, name) {
			display = id.Name
			break
		}
	}
	respondJSON(w, http.StatusOK, SimilarResponse{Name: display, Similar: matches})
}
