package models

import (
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobParameters is the job input as written by the UI.
type JobParameters struct {
	ConnectionID    string   `json:"connectionId" validate:"required"`
	Query           string   `json:"query" validate:"required"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	ModelID         string   `json:"modelId" validate:"required"`
	ChunkSize       *int     `json:"chunkSize,omitempty" validate:"omitempty,gte=0"`
	ChunkOverlap    *int     `json:"chunkOverlap,omitempty" validate:"omitempty,gte=0"`
	Schema          string   `json:"schema,omitempty"`
	Table           string   `json:"table,omitempty"`
	SelectedColumns []string `json:"selectedColumns,omitempty"`
}

// Chunking returns the effective chunk size and overlap. A missing or zero
// size means DefaultChunkSize. Only a missing overlap is defaulted, to
// DefaultChunkOverlap or a fifth of the size, whichever is smaller; an
// explicit 0 is kept.
func (p JobParameters) Chunking() (size, overlap int) {
	size = DefaultChunkSize
	if p.ChunkSize != nil && *p.ChunkSize > 0 {
		size = *p.ChunkSize
	}
	if p.ChunkOverlap != nil {
		return size, *p.ChunkOverlap
	}
	return size, min(DefaultChunkOverlap, size/5)
}

// JobResult is the free-form progress payload stored on the job.
type JobResult struct {
	Message          string     `json:"message"`
	Progress         int        `json:"progress"`
	RowsProcessed    *int       `json:"rowsProcessed,omitempty"`
	ChunksCreated    *int       `json:"chunksCreated,omitempty"`
	EmbeddingsStored *int       `json:"embeddingsStored,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	FailedAt         *time.Time `json:"failedAt,omitempty"`
}

type EmbeddingJob struct {
	ID         string        `json:"id" db:"id"`
	UserID     string        `json:"user_id" db:"user_id"`
	Status     JobStatus     `json:"status" db:"status"`
	Parameters JobParameters `json:"parameters" db:"parameters"`
	Result     *JobResult    `json:"result" db:"result"`
	Error      *string       `json:"error" db:"error"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

// JobUpdate is a partial write of the mutable job fields. Error is written
// as-is, so a nil Error clears the column.
type JobUpdate struct {
	Status JobStatus  `json:"status"`
	Result *JobResult `json:"result"`
	Error  *string    `json:"error"`
}
