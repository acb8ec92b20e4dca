package repository

import (
	"context"

	"github.com/stanstork/stratum-embed/internal/models"
)

// Getters return (nil, nil) when the row does not exist.

type JobRepository interface {
	Get(ctx context.Context, id string) (*models.EmbeddingJob, error)
	Update(ctx context.Context, id string, upd models.JobUpdate) error
}

type ConnectionRepository interface {
	// Get returns the connection only if it belongs to owner.
	Get(ctx context.Context, id, owner string) (*models.DatabaseConnection, error)
}

type ModelRepository interface {
	Get(ctx context.Context, id string) (*models.EmbeddingModel, error)
}

type EmbeddingRepository interface {
	// InsertBatch stores all records or none of them.
	InsertBatch(ctx context.Context, records []models.EmbeddingRecord) error
}

// Store bundles the persistence collaborators the pipeline needs.
type Store struct {
	Jobs        JobRepository
	Connections ConnectionRepository
	Models      ModelRepository
	Embeddings  EmbeddingRepository

	close func()
}

// Close releases the store's underlying resources.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}
