// Package store persists face records: one row per indexed face, keyed by
// the vector slot id so query-time neighbors can be joined back to the photo
// they came from. Records are created once during ingestion and never
// mutated.
package store

import (
	"time"
)

// FaceRecord is the persisted metadata for one indexed face.
type FaceRecord struct {
	ID           int64
	EventID      string
	Photographer string    // display name as supplied by the uploader
	SourcePath   string    // storage path of the photo the face came from
	TaskID       string    // ingestion run that produced the record
	BBox         []float64 // [x1, y1, x2, y2] pixel coordinates
	Confidence   float64
	SlotID       int64     // id assigned by the vector index
	Embedding    []float32 // durable copy of the indexed vector
	CreatedAt    time.Time
}
