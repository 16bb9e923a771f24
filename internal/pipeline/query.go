package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eventlens/eventlens/internal/detect"
	"github.com/eventlens/eventlens/internal/index"
)

// Searcher runs the selfie search pipeline against the shared index.
type Searcher struct {
	loader      ImageLoader
	detector    Detector
	quality     QualityChecker
	encoder     Encoder
	index       Index
	records     RecordStore
	maxDistance float64
	searchK     int
	uploadDir   string
	baseURL     string
}

// SearcherOptions tunes the search pipeline.
type SearcherOptions struct {
	MaxDistance float64 // squared-L2 acceptance threshold (default 0.8)
	SearchK     int     // neighbors requested before filtering (default 100)
	UploadDir   string  // local root the stored source paths live under
	BaseURL     string  // public base URL matched photos are served from
}

// NewSearcher wires a search pipeline.
func NewSearcher(loader ImageLoader, detector Detector, checker QualityChecker, encoder Encoder, idx Index, records RecordStore, opts SearcherOptions) *Searcher {
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = 0.8
	}
	if opts.SearchK < 1 {
		opts.SearchK = 100
	}
	return &Searcher{
		loader:      loader,
		detector:    detector,
		quality:     checker,
		encoder:     encoder,
		index:       idx,
		records:     records,
		maxDistance: opts.MaxDistance,
		searchK:     opts.SearchK,
		uploadDir:   opts.UploadDir,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Search matches a selfie against the indexed faces of one event. Unusable
// input returns a ValidationError; any other error is an internal fault.
// Finding nothing is a successful response with empty results.
func (s *Searcher) Search(ctx context.Context, eventID string, selfie []byte, contentType string) (*SearchResponse, error) {
	if len(selfie) == 0 {
		return nil, &ValidationError{Reason: "no image uploaded"}
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, &ValidationError{Reason: fmt.Sprintf("unsupported content type %q, expected an image", contentType)}
	}

	img := s.loader.LoadBytes(selfie)
	if img == nil {
		return nil, &ValidationError{Reason: "could not decode the uploaded image"}
	}

	detections := s.detector.Detect(ctx, img)
	if len(detections) == 0 {
		return nil, &ValidationError{Reason: "no face detected in the uploaded image"}
	}
	best := detections[0]
	for _, det := range detections[1:] {
		if det.Confidence > best.Confidence {
			best = det
		}
	}
	if best.Crop == nil {
		return nil, &ValidationError{Reason: "detected face region is unusable"}
	}

	if check := s.quality.Check(best.Crop); !check.Valid {
		return nil, &ValidationError{Reason: "face quality check failed: " + strings.Join(check.Issues, ", ")}
	}

	embeddings := s.encoder.Encode(ctx, []detect.Detection{best})
	if len(embeddings) != 1 || embeddings[0] == nil {
		return nil, fmt.Errorf("encoding query face failed")
	}

	s.index.Reload()
	distances, slots, err := s.index.Search(embeddings[0], s.searchK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	slotDistance := make(map[int64]float64)
	var accepted []int64
	for i, slot := range slots {
		if slot == index.NoNeighbor || float64(distances[i]) > s.maxDistance {
			continue
		}
		slotDistance[slot] = float64(distances[i])
		accepted = append(accepted, slot)
	}

	resp := &SearchResponse{
		Status:  StatusSuccess,
		Message: "No matches found in the system.",
		EventID: eventID,
		Results: []SearchMatch{},
	}
	if len(accepted) == 0 {
		return resp, nil
	}

	records, err := s.records.FindBySlots(ctx, eventID, accepted)
	if err != nil {
		return nil, fmt.Errorf("joining matched slots against records: %w", err)
	}

	// A photo with several faces matching the query shows up once, at its
	// closest distance.
	bestPerPhoto := make(map[string]SearchMatch)
	for _, rec := range records {
		dist := slotDistance[rec.SlotID]
		match, seen := bestPerPhoto[rec.SourcePath]
		if !seen || dist < match.Distance {
			bestPerPhoto[rec.SourcePath] = SearchMatch{
				PhotoURL:   s.publicURL(rec.SourcePath),
				Distance:   dist,
				Confidence: rec.Confidence,
			}
		}
	}
	for _, match := range bestPerPhoto {
		resp.Results = append(resp.Results, match)
	}
	sort.Slice(resp.Results, func(i, j int) bool {
		return resp.Results[i].Distance < resp.Results[j].Distance
	})
	if len(resp.Results) > 0 {
		resp.Message = fmt.Sprintf("Found %d matching photos", len(resp.Results))
	}
	return resp, nil
}

// publicURL maps an internal source path to the externally servable URL.
// Paths outside the upload root fall back to their base name.
func (s *Searcher) publicURL(sourcePath string) string {
	rel := strings.TrimLeft(sourcePath, "/")
	if s.uploadDir != "" {
		if r, err := filepath.Rel(s.uploadDir, sourcePath); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		} else {
			rel = filepath.Base(sourcePath)
		}
	}
	return s.baseURL + "/photos/" + filepath.ToSlash(rel)
}
