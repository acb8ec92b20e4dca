package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/apperrors"
	"github.com/stanstork/stratum-embed/internal/models"
	"github.com/stanstork/stratum-embed/internal/repository"
)

// progressTracker is the only writer of a job record during an invocation.
// It enforces the status state machine and never writes a lower progress
// value while the job is processing.
type progressTracker struct {
	jobs     repository.JobRepository
	jobID    string
	status   models.JobStatus
	progress int
	now      func() time.Time
	logger   zerolog.Logger
}

func newProgressTracker(jobs repository.JobRepository, job *models.EmbeddingJob, now func() time.Time, logger zerolog.Logger) *progressTracker {
	return &progressTracker{
		jobs:   jobs,
		jobID:  job.ID,
		status: job.Status,
		now:    now,
		logger: logger,
	}
}

func (t *progressTracker) transition(ctx context.Context, next models.JobStatus, result *models.JobResult, errMsg *string) error {
	if !t.status.CanTransitionTo(next) {
		return apperrors.InvalidTransition(string(t.status), string(next))
	}
	if err := t.jobs.Update(ctx, t.jobID, models.JobUpdate{Status: next, Result: result, Error: errMsg}); err != nil {
		return apperrors.Storage("Failed to update job status", err)
	}
	t.status = next
	t.progress = result.Progress
	return nil
}

// start moves a pending job to processing at progress 0.
func (t *progressTracker) start(ctx context.Context) error {
	return t.transition(ctx, models.JobStatusProcessing, &models.JobResult{Message: "Starting job processing", Progress: 0}, nil)
}

// report records sub-progress. A value below the last written one is raised
// to it.
func (t *progressTracker) report(ctx context.Context, progress int, msg string) error {
	if t.status != models.JobStatusProcessing {
		return apperrors.InvalidTransition(string(t.status), string(models.JobStatusProcessing))
	}
	progress = min(max(progress, t.progress), 100)

	if err := t.jobs.Update(ctx, t.jobID, models.JobUpdate{
		Status: models.JobStatusProcessing,
		Result: &models.JobResult{Message: msg, Progress: progress},
	}); err != nil {
		return apperrors.Storage("Failed to update job progress", err)
	}
	t.progress = progress
	t.logger.Debug().Int("progress", progress).Msg(msg)
	return nil
}

func (t *progressTracker) complete(ctx context.Context, rows, chunks, stored int) (*models.JobResult, error) {
	at := t.now().UTC()
	result := &models.JobResult{
		Message:          "Job completed successfully",
		Progress:         100,
		RowsProcessed:    &rows,
		ChunksCreated:    &chunks,
		EmbeddingsStored: &stored,
		CompletedAt:      &at,
	}
	if err := t.transition(ctx, models.JobStatusCompleted, result, nil); err != nil {
		return nil, err
	}
	return result, nil
}

// fail records msg as the job error. It is a no-op for jobs that were never
// moved to processing.
func (t *progressTracker) fail(ctx context.Context, msg string) error {
	if t.status != models.JobStatusProcessing {
		return nil
	}
	at := t.now().UTC()
	return t.transition(ctx, models.JobStatusFailed, &models.JobResult{Message: msg, Progress: 0, FailedAt: &at}, &msg)
}

// interpolate maps done/total onto [from, to].
func interpolate(from, to, done, total int) int {
	if total <= 0 {
		return to
	}
	return from + (to-from)*done/total
}
