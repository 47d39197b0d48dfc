package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/session"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// TrainJob represents an async gallery training run for one tenant.
type TrainJob struct {
	session.EventBroadcaster

	ID          string               `json:"id"`
	TenantID    int64                `json:"tenant_id"`
	Status      JobStatus            `json:"status"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Report      *session.TrainReport `json:"report,omitempty"`

	mu sync.RWMutex
}

// GetStatus returns the current job status.
func (j *TrainJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Terminal reports whether the job has finished, successfully or not.
func (j *TrainJob) Terminal() bool {
	status := j.GetStatus()
	return status == JobStatusCompleted || status == JobStatusFailed
}

// setRunning marks the job as running.
func (j *TrainJob) setRunning() {
	j.mu.Lock()
	j.Status = JobStatusRunning
	j.mu.Unlock()
}

// complete records the outcome and flips the job to a terminal state.
func (j *TrainJob) complete(report *session.TrainReport, err error) {
	now := time.Now()
	j.mu.Lock()
	j.CompletedAt = &now
	if err != nil {
		j.Status = JobStatusFailed
		j.Error = err.Error()
	} else {
		j.Status = JobStatusCompleted
		j.Report = report
	}
	j.mu.Unlock()
}

// Snapshot returns a copy of the job fields safe to serialize while the
// run is still mutating them.
func (j *TrainJob) Snapshot() TrainJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return TrainJob{
		ID:          j.ID,
		TenantID:    j.TenantID,
		Status:      j.Status,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Report:      j.Report,
	}
}

// JobManager manages async training jobs.
type JobManager struct {
	jobs map[string]*TrainJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*TrainJob),
	}
}

// CreateJob creates a new pending training job for a tenant.
func (m *JobManager) CreateJob(tenantID int64) *TrainJob {
	job := &TrainJob{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *TrainJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns snapshots of all jobs.
func (m *JobManager) ListJobs() []TrainJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]TrainJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.Snapshot())
	}
	return jobs
}
