package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"
	"github.com/stanstork/stratum-embed/internal/models"
)

type embeddingRepository struct {
	pool *pgxpool.Pool
}

func NewEmbeddingRepository(pool *pgxpool.Pool) EmbeddingRepository {
	return &embeddingRepository{pool: pool}
}

const insertEmbedding = `
	INSERT INTO embeddings (name, description, source_type, source_id, model_id, embedding, content, metadata, user_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// InsertBatch writes the records in a single transaction.
func (r *embeddingRepository) InsertBatch(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin embeddings transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertEmbedding,
			rec.Name,
			rec.Description,
			rec.SourceType,
			rec.SourceID,
			rec.ModelID,
			pgvector.NewVector(rec.Embedding),
			rec.Content,
			rec.Metadata,
			rec.UserID,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return errors.Wrapf(err, "insert embedding %d of %d", i+1, len(records))
		}
	}
	if err := br.Close(); err != nil {
		return errors.Wrap(err, "close embeddings batch")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit embeddings")
	}
	return nil
}
