// Package pipeline orchestrates the two flows of the service: batch ingestion
// of event photos into the face index, and selfie search against it.
package pipeline

import (
	"context"

	"github.com/eventlens/eventlens/internal/detect"
	"github.com/eventlens/eventlens/internal/imaging"
	"github.com/eventlens/eventlens/internal/quality"
	"github.com/eventlens/eventlens/internal/store"
)

// Run statuses. Ingestion runs report completed or failed; a successful
// query response reports success.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSuccess   = "success"
)

// ImageLoader loads and normalizes images from disk or raw bytes.
type ImageLoader interface {
	LoadPath(path string) *imaging.Image
	LoadBytes(data []byte) *imaging.Image
}

// Detector finds faces in an image.
type Detector interface {
	Detect(ctx context.Context, img *imaging.Image) []detect.Detection
}

// Encoder turns face detections into embeddings, order-preserving and 1:1
// with its input; failed entries are nil.
type Encoder interface {
	Encode(ctx context.Context, detections []detect.Detection) [][]float32
}

// QualityChecker gates face crops before encoding.
type QualityChecker interface {
	Check(crop *imaging.Image) quality.Result
}

// Index is the shared vector index the pipelines read and write.
type Index interface {
	Reload()
	Add(vectors [][]float32) ([]int64, error)
	Search(query []float32, k int) ([]float32, []int64, error)
	Save() error
}

// RecordStore persists and retrieves face metadata records.
type RecordStore interface {
	InsertFaces(ctx context.Context, records []store.FaceRecord) error
	FindBySlots(ctx context.Context, eventID string, slots []int64) ([]store.FaceRecord, error)
}

// Locker serializes the index reload-add-save sequence across workers.
// Acquisition is best-effort with a bounded wait; callers proceed without the
// lock when it cannot be taken and flag the run as unlocked.
type Locker interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// NopLocker never acquires. Used when no coordination backend is configured;
// every run through it reports the unlocked degraded mode.
type NopLocker struct{}

// Acquire implements Locker.
func (NopLocker) Acquire(context.Context) (func(), bool, error) {
	return func() {}, false, nil
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Status          string `json:"status"`
	ImagesProcessed int    `json:"images_processed"`
	FailedImages    int    `json:"failed_images"`
	FacesIndexed    int    `json:"faces_indexed"`
	RecordsStored   int    `json:"records_stored"`
	Unlocked        bool   `json:"unlocked,omitempty"`
	Error           string `json:"error,omitempty"`
}

// SearchMatch is one photo returned to a searching attendee.
type SearchMatch struct {
	PhotoURL   string  `json:"photo_url"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// SearchResponse is the result of one selfie search.
type SearchResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	EventID string        `json:"event_id"`
	Results []SearchMatch `json:"results"`
}

// ValidationError reports unusable user input on the query path, as opposed
// to an internal fault. Handlers map it to a client-error response.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// AsValidationError reports whether err is a user input rejection.
func AsValidationError(err error) (*ValidationError, bool) {
	ve, ok := err.(*ValidationError)
	return ve, ok
}
