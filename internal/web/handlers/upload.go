package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/eventlens/eventlens/internal/pipeline"
)

// maxUploadSize bounds the multipart form of one photo batch upload.
const maxUploadSize = 512 << 20

// BatchIngestor runs the ingestion pipeline over uploaded files.
type BatchIngestor interface {
	Run(ctx context.Context, req pipeline.IngestRequest) pipeline.IngestResult
}

// UploadHandler accepts photographer batch uploads and runs them through the
// ingestion pipeline asynchronously.
type UploadHandler struct {
	uploadDir string
	ingestor  BatchIngestor
	jobs      *JobManager
}

// NewUploadHandler creates a new upload handler storing files under uploadDir.
func NewUploadHandler(uploadDir string, ingestor BatchIngestor, jobs *JobManager) *UploadHandler {
	return &UploadHandler{
		uploadDir: uploadDir,
		ingestor:  ingestor,
		jobs:      jobs,
	}
}

// saveUploadedFiles saves multipart files under dir and returns their paths.
// Duplicate base names within one batch (same camera filename from two cards)
// get a numeric suffix so no upload overwrites another.
func saveUploadedFiles(files []*multipart.FileHeader, dir string) ([]string, error) {
	var filePaths []string
	seen := make(map[string]int)
	for _, fileHeader := range files {
		if err := func() error {
			file, err := fileHeader.Open()
			if err != nil {
				return fmt.Errorf("failed to open file: %s", fileHeader.Filename)
			}
			defer file.Close()

			base := filepath.Base(fileHeader.Filename)
			safeName := base
			if n := seen[base]; n > 0 {
				ext := filepath.Ext(base)
				safeName = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), n, ext)
			}
			seen[base]++
			destPath := filepath.Join(dir, safeName)
			out, err := os.Create(destPath) //nolint:gosec // filename sanitized via filepath.Base
			if err != nil {
				return errors.New("failed to create file")
			}

			if _, err := io.Copy(out, file); err != nil {
				out.Close()
				return errors.New("failed to save file")
			}
			out.Close()

			filePaths = append(filePaths, destPath)
			return nil
		}(); err != nil {
			return nil, err
		}
	}
	return filePaths, nil
}

// Upload handles POST /events/{eventID}/photos. Files are persisted under
// the upload directory and indexed in the background; the response carries
// the task id to poll.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		respondError(w, http.StatusBadRequest, "event id is required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}
	photographer := r.FormValue("photographer")

	taskID := uuid.NewString()
	batchDir := filepath.Join(h.uploadDir, filepath.Base(eventID), taskID)
	if err := os.MkdirAll(batchDir, 0750); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create upload directory")
		return
	}

	filePaths, err := saveUploadedFiles(files, batchDir)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job := h.jobs.CreateJob(taskID, eventID, photographer, len(filePaths))
	go func() {
		job.MarkRunning()
		result := h.ingestor.Run(context.Background(), pipeline.IngestRequest{
			TaskID:       taskID,
			EventID:      eventID,
			Photographer: photographer,
			FilePaths:    filePaths,
		})
		job.Finish(result)
	}()

	respondJSON(w, http.StatusAccepted, map[string]any{
		"task_id":  taskID,
		"event_id": eventID,
		"files":    len(filePaths),
	})
}

// JobStatus handles GET /jobs/{jobID}.
func (h *UploadHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := h.jobs.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	snapshot := job.Snapshot()
	respondJSON(w, http.StatusOK, &snapshot)
}
