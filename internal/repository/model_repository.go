package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/stanstork/stratum-embed/internal/models"
)

type modelRepository struct {
	db *sql.DB
}

func NewModelRepository(db *sql.DB) ModelRepository {
	return &modelRepository{db: db}
}

func (r *modelRepository) Get(ctx context.Context, id string) (*models.EmbeddingModel, error) {
	m := &models.EmbeddingModel{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, provider, model_id, dimensions FROM embedding_models WHERE id = $1", id,
	).Scan(&m.ID, &m.Name, &m.Provider, &m.ModelID, &m.Dimensions)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, errors.Wrap(err, "select embedding model")
	}
	return m, nil
}
