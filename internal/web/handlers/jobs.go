package handlers

import (
	"sync"
	"time"

	"github.com/eventlens/eventlens/internal/pipeline"
)

// JobStatus represents the status of an async ingestion job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IngestJob represents one async photo batch ingestion.
type IngestJob struct {
	mu sync.RWMutex

	ID           string                 `json:"id"`
	EventID      string                 `json:"event_id"`
	Photographer string                 `json:"photographer,omitempty"`
	Status       JobStatus              `json:"status"`
	FileCount    int                    `json:"file_count"`
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Result       *pipeline.IngestResult `json:"result,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// Snapshot returns a copy of the job safe to serialize concurrently with
// updates from the worker goroutine.
func (j *IngestJob) Snapshot() IngestJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return IngestJob{
		ID:           j.ID,
		EventID:      j.EventID,
		Photographer: j.Photographer,
		Status:       j.Status,
		FileCount:    j.FileCount,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		Result:       j.Result,
		Error:        j.Error,
	}
}

// MarkRunning transitions the job to the running state.
func (j *IngestJob) MarkRunning() {
	j.mu.Lock()
	j.Status = JobStatusRunning
	j.mu.Unlock()
}

// Finish records the pipeline result and closes the job.
func (j *IngestJob) Finish(result pipeline.IngestResult) {
	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = &result
	j.CompletedAt = &now
	if result.Status == pipeline.StatusCompleted {
		j.Status = JobStatusCompleted
	} else {
		j.Status = JobStatusFailed
		j.Error = result.Error
	}
}

// JobManager manages async ingestion jobs.
type JobManager struct {
	jobs map[string]*IngestJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*IngestJob),
	}
}

// CreateJob registers a new pending ingestion job.
func (m *JobManager) CreateJob(id, eventID, photographer string, fileCount int) *IngestJob {
	job := &IngestJob{
		ID:           id,
		EventID:      eventID,
		Photographer: photographer,
		Status:       JobStatusPending,
		FileCount:    fileCount,
		StartedAt:    time.Now(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *IngestJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*IngestJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*IngestJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}
