package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventlens/eventlens/internal/config"
	"github.com/eventlens/eventlens/internal/detect"
	"github.com/eventlens/eventlens/internal/encode"
	"github.com/eventlens/eventlens/internal/imaging"
	"github.com/eventlens/eventlens/internal/index"
	"github.com/eventlens/eventlens/internal/pipeline"
	"github.com/eventlens/eventlens/internal/quality"
	"github.com/eventlens/eventlens/internal/store/postgres"
)

// services bundles the wired pipeline stack shared by serve, ingest, and
// index commands.
type services struct {
	cfg      *config.Config
	pool     *postgres.Pool
	faces    *postgres.FaceRecordRepository
	index    *index.Service
	ingestor *pipeline.Ingestor
	searcher *pipeline.Searcher
}

// newServices connects to PostgreSQL, applies migrations, loads the index,
// and wires both pipelines.
func newServices(ctx context.Context) (*services, error) {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	faces := postgres.NewFaceRecordRepository(pool)
	locker := postgres.NewAdvisoryLocker(pool)

	fmt.Printf("Loading face index from %s...\n", cfg.Index.Path)
	idx := index.NewService(cfg.Index.Dim, cfg.Index.Path)
	fmt.Printf("Face index ready with %d vectors (dim %d)\n", idx.Count(), idx.Dim())

	timeout := time.Duration(cfg.Inference.TimeoutSeconds) * time.Second
	loader := imaging.NewLoader(imaging.LoaderOptions{
		MaxDimension:  cfg.Tuning.Loader.MaxDimension,
		MinDimension:  cfg.Tuning.Loader.MinDimension,
		MaxFileSizeMB: cfg.Tuning.Loader.MaxFileSizeMB,
	})
	detector := detect.NewClient(cfg.Inference.URL, timeout, detect.Options{
		MinConfidence: cfg.Tuning.Detection.MinConfidence,
		MinFaceSize:   cfg.Tuning.Detection.MinFaceSizePx,
		CropSize:      cfg.Tuning.Detection.CropSize,
	})
	checker := quality.NewChecker(cfg.Tuning.Quality.BlurThreshold, cfg.Tuning.Quality.DarknessThreshold)
	encoder := encode.NewClient(cfg.Inference.URL, timeout, cfg.Index.Dim, cfg.Tuning.Encoding.BatchSize)

	s := &services{
		cfg:   cfg,
		pool:  pool,
		faces: faces,
		index: idx,
	}
	s.ingestor = pipeline.NewIngestor(loader, detector, encoder, idx, faces, locker, cfg.Tuning.Ingest.RecordChunkSize)
	s.searcher = pipeline.NewSearcher(loader, detector, checker, encoder, idx, faces, pipeline.SearcherOptions{
		MaxDistance: cfg.Tuning.Search.MaxDistance,
		SearchK:     cfg.Tuning.Search.SearchK,
		UploadDir:   cfg.Storage.UploadDir,
		BaseURL:     cfg.Storage.BaseURL,
	})
	return s, nil
}

// checkIntegrity cross-checks the index against the record store. A mismatch
// means previously ingested faces are invisible to search (or orphaned
// records exist) and deserves a loud warning at startup.
func (s *services) checkIntegrity(ctx context.Context) error {
	recordCount, err := s.faces.CountFaces(ctx)
	if err != nil {
		return fmt.Errorf("counting face records: %w", err)
	}
	indexCount := s.index.Count()
	if indexCount != recordCount {
		fmt.Printf("WARNING: index holds %d vectors but the store holds %d records\n", indexCount, recordCount)
		fmt.Printf("WARNING: faces outside the index are not searchable; consider re-ingesting\n")
		return fmt.Errorf("index/store count mismatch: %d vs %d", indexCount, recordCount)
	}
	return nil
}

func (s *services) close() {
	if err := s.pool.Close(); err != nil {
		fmt.Printf("Warning: closing database pool: %v\n", err)
	}
}
