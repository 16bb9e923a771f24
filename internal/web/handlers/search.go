package handlers

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/eventlens/eventlens/internal/pipeline"
)

// maxSelfieSize bounds the multipart form held in memory for one search.
const maxSelfieSize = 16 << 20

// SelfieSearcher runs the selfie search pipeline.
type SelfieSearcher interface {
	Search(ctx context.Context, eventID string, selfie []byte, contentType string) (*pipeline.SearchResponse, error)
}

// SearchHandler handles attendee selfie searches.
type SearchHandler struct {
	searcher SelfieSearcher
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searcher SelfieSearcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Search handles POST /events/{eventID}/search. The selfie arrives as the
// "selfie" part of a multipart form. Bad input maps to 400, pipeline faults
// to 500.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		respondError(w, http.StatusBadRequest, "event id is required")
		return
	}

	if err := r.ParseMultipartForm(maxSelfieSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("selfie")
	if err != nil {
		respondError(w, http.StatusBadRequest, "selfie file is required")
		return
	}
	defer file.Close()

	selfie, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read selfie upload")
		return
	}

	resp, err := h.searcher.Search(r.Context(), eventID, selfie, header.Header.Get("Content-Type"))
	if err != nil {
		if ve, ok := pipeline.AsValidationError(err); ok {
			respondError(w, http.StatusBadRequest, ve.Reason)
			return
		}
		log.Printf("search for event %s failed: %v", sanitizeForLog(eventID), err)
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
