package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/apperrors"
	"github.com/stanstork/stratum-embed/internal/middleware"
	"github.com/stanstork/stratum-embed/internal/models"
	"github.com/stanstork/stratum-embed/internal/repository"
)

// JobProcessor runs one job to completion.
type JobProcessor interface {
	Process(ctx context.Context, jobID string) (*models.JobResult, error)
}

type JobHandler struct {
	processor JobProcessor
	repo      repository.JobRepository
	logger    zerolog.Logger
}

func NewJobHandler(processor JobProcessor, repo repository.JobRepository, logger zerolog.Logger) *JobHandler {
	return &JobHandler{
		processor: processor,
		repo:      repo,
		logger:    logger.With().Str("handler", "job").Logger(),
	}
}

type processRequest struct {
	JobID string `json:"jobId" validate:"required"`
}

type processResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProcessJob runs the job named in the body. Every failure is a 500.
func (h *JobHandler) ProcessJob(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With().Str("request_id", middleware.RequestID(r.Context())).Logger()

	var payload processRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("invalid request payload")
		writeProcessResult(w, apperrors.InvalidRequest("Invalid request payload"))
		return
	}
	if err := models.ValidateStruct(payload); err != nil {
		writeProcessResult(w, apperrors.InvalidRequest(err.Error()))
		return
	}

	if _, err := h.processor.Process(r.Context(), payload.JobID); err != nil {
		log.Error().Err(err).Str("job_id", payload.JobID).Msg("job processing failed")
		writeProcessResult(w, err)
		return
	}
	writeProcessResult(w, nil)
}

// Preflight answers CORS preflight requests without reading the body.
func (h *JobHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GetJobStatus returns the stored job record.
func (h *JobHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]
	job, err := h.repo.Get(r.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to load job")
		http.Error(w, "Failed to get job status", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, apperrors.JobNotFound(jobID).Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

func writeProcessResult(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(processResponse{Success: false, Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(processResponse{Success: true, Message: "Job processed successfully"})
}
