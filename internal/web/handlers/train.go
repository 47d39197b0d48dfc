package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/session"
)

// TrainHandler exposes async gallery training.
type TrainHandler struct {
	trainer *session.Trainer
	jobs    *JobManager
}

// NewTrainHandler creates a training handler.
func NewTrainHandler(trainer *session.Trainer, jobs *JobManager) *TrainHandler {
	return &TrainHandler{trainer: trainer, jobs: jobs}
}

type trainRequest struct {
	TenantID int64 `json:"tenant_id"`
}

// Start launches a training run for a tenant and returns the job id. A
// run already in progress for the same tenant is rejected with 409.
func (h *TrainHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.TenantID <= 0 {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if h.trainer.InProgress(req.TenantID) {
		respondError(w, http.StatusConflict, session.ErrTrainingInProgress.Error())
		return
	}

	job := h.jobs.CreateJob(req.TenantID)

	go func() {
		job.setRunning()
		report, err := h.trainer.TrainWithProgress(context.Background(), job.TenantID, func(done, total int) {
			job.SendEvent(session.Event{
				Type: "progress",
				Data: map[string]int{"done": done, "total": total},
			})
		})
		if err != nil {
			log.Printf("training job %s for tenant %d failed: %v", job.ID, job.TenantID, err)
			job.SendEvent(session.Event{Type: "failed", Message: err.Error()})
		} else {
			job.SendEvent(session.Event{Type: "completed", Data: report})
		}
		job.complete(report, err)
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// Status returns the state of one training job.
func (h *TrainHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams job progress via SSE.
func (h *TrainHandler) Events(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	streamSSEEvents(w, r, job, job.Snapshot())
}

// List returns all known training jobs.
func (h *TrainHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"jobs": h.jobs.ListJobs()})
}
