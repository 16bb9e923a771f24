package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/eventlens/eventlens/internal/detect"
	"github.com/eventlens/eventlens/internal/store"
)

// Ingestor runs the batch ingestion pipeline: load, detect, encode, index,
// persist.
type Ingestor struct {
	loader    ImageLoader
	detector  Detector
	encoder   Encoder
	index     Index
	records   RecordStore
	locker    Locker
	chunkSize int
}

// NewIngestor wires an ingestion pipeline. chunkSize bounds the size of each
// metadata write; values below 1 fall back to 100.
func NewIngestor(loader ImageLoader, detector Detector, encoder Encoder, idx Index, records RecordStore, locker Locker, chunkSize int) *Ingestor {
	if chunkSize < 1 {
		chunkSize = 100
	}
	if locker == nil {
		locker = NopLocker{}
	}
	return &Ingestor{
		loader:    loader,
		detector:  detector,
		encoder:   encoder,
		index:     idx,
		records:   records,
		locker:    locker,
		chunkSize: chunkSize,
	}
}

// IngestRequest identifies one batch of photos to ingest.
type IngestRequest struct {
	TaskID       string
	EventID      string
	Photographer string
	FilePaths    []string

	// Progress, when set, is called after every persisted chunk with the
	// number of records stored so far and the total to store.
	Progress func(stored, total int)
}

// pendingFace carries a detection together with its source photo until the
// encoder assigns it an embedding.
type pendingFace struct {
	detection  detect.Detection
	sourcePath string
}

// Run executes the ingestion pipeline to completion. Per-file load failures
// are counted and skipped; a batch with zero detected faces completes
// successfully. Unexpected index or store errors abort the run with a failed
// status, keeping whatever progress was already durable.
func (i *Ingestor) Run(ctx context.Context, req IngestRequest) IngestResult {
	result := IngestResult{Status: StatusCompleted}

	var pending []pendingFace
	for _, path := range req.FilePaths {
		img := i.loader.LoadPath(path)
		if img == nil {
			result.FailedImages++
			continue
		}
		result.ImagesProcessed++
		for _, det := range i.detector.Detect(ctx, img) {
			pending = append(pending, pendingFace{detection: det, sourcePath: path})
		}
	}

	if len(pending) == 0 {
		log.Printf("ingest %s: no faces detected in %d images (%d failed)", req.TaskID, result.ImagesProcessed, result.FailedImages)
		return result
	}

	detections := make([]detect.Detection, len(pending))
	for idx, p := range pending {
		detections[idx] = p.detection
	}
	embeddings := i.encoder.Encode(ctx, detections)

	var faces []pendingFace
	var vectors [][]float32
	for idx, emb := range embeddings {
		if emb == nil {
			continue
		}
		faces = append(faces, pending[idx])
		vectors = append(vectors, emb)
	}
	if len(vectors) == 0 {
		log.Printf("ingest %s: all %d detected faces failed encoding", req.TaskID, len(pending))
		return result
	}

	release, acquired, err := i.locker.Acquire(ctx)
	if err != nil {
		log.Printf("ingest %s: lock acquisition failed, proceeding unlocked: %v", req.TaskID, err)
	}
	result.Unlocked = !acquired
	if result.Unlocked {
		log.Printf("ingest %s: running WITHOUT the index write lock, concurrent writers may race", req.TaskID)
	}
	var releaseOnce sync.Once
	unlock := func() { releaseOnce.Do(release) }
	defer unlock()

	i.index.Reload()
	slots, err := i.index.Add(vectors)
	if err != nil {
		return i.fail(result, fmt.Errorf("adding %d vectors to index: %w", len(vectors), err))
	}
	if err := i.index.Save(); err != nil {
		return i.fail(result, fmt.Errorf("persisting index: %w", err))
	}
	unlock()
	result.FacesIndexed = len(slots)

	records := make([]store.FaceRecord, len(faces))
	for idx, face := range faces {
		records[idx] = store.FaceRecord{
			EventID:      req.EventID,
			Photographer: req.Photographer,
			SourcePath:   face.sourcePath,
			TaskID:       req.TaskID,
			BBox:         face.detection.Box.Floats(),
			Confidence:   face.detection.Confidence,
			SlotID:       slots[idx],
			Embedding:    vectors[idx],
		}
	}

	for start := 0; start < len(records); start += i.chunkSize {
		end := start + i.chunkSize
		if end > len(records) {
			end = len(records)
		}
		if err := i.records.InsertFaces(ctx, records[start:end]); err != nil {
			return i.fail(result, fmt.Errorf("persisting records %d-%d of %d: %w", start, end, len(records), err))
		}
		result.RecordsStored = end
		if req.Progress != nil {
			req.Progress(end, len(records))
		}
	}

	return result
}

// fail marks the result failed, keeping the counters accumulated so far.
func (i *Ingestor) fail(result IngestResult, err error) IngestResult {
	log.Printf("ingest failed: %v", err)
	result.Status = StatusFailed
	result.Error = err.Error()
	return result
}
