package handlers

import (
	"context"
	"log"
	"net/http"
)

// IndexInfo exposes the read-only state of the vector index.
type IndexInfo interface {
	Count() int64
	Dim() int
}

// RecordCounter counts persisted face records.
type RecordCounter interface {
	CountFaces(ctx context.Context) (int64, error)
}

// StatsHandler reports index and store sizes. A disagreement between the two
// means previously ingested faces are not searchable (or records were lost)
// and is surfaced as consistent=false.
type StatsHandler struct {
	index   IndexInfo
	records RecordCounter
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(index IndexInfo, records RecordCounter) *StatsHandler {
	return &StatsHandler{index: index, records: records}
}

// Get handles GET /stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	recordCount, err := h.records.CountFaces(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count face records")
		return
	}

	indexCount := h.index.Count()
	if indexCount != recordCount {
		log.Printf("INTEGRITY: index holds %d vectors but store holds %d records", indexCount, recordCount)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"index_vectors": indexCount,
		"face_records":  recordCount,
		"dimension":     h.index.Dim(),
		"consistent":    indexCount == recordCount,
	})
}
