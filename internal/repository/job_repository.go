package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/stanstork/stratum-embed/internal/models"
)

type jobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Get(ctx context.Context, id string) (*models.EmbeddingJob, error) {
	query := `
		SELECT id, user_id, status, parameters, result, error, created_at, updated_at
		FROM embedding_jobs
		WHERE id = $1
	`

	var (
		job    models.EmbeddingJob
		params []byte
		result []byte
		errMsg sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&params,
		&result,
		&errMsg,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, errors.Wrap(err, "select embedding job")
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.Parameters); err != nil {
			return nil, errors.Wrap(err, "decode job parameters")
		}
	}
	if len(result) > 0 && string(result) != "null" {
		job.Result = &models.JobResult{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, errors.Wrap(err, "decode job result")
		}
	}
	if errMsg.Valid {
		job.Error = &errMsg.String
	}
	return &job, nil
}

func (r *jobRepository) Update(ctx context.Context, id string, upd models.JobUpdate) error {
	var result []byte
	if upd.Result != nil {
		b, err := json.Marshal(upd.Result)
		if err != nil {
			return errors.Wrap(err, "encode job result")
		}
		result = b
	}

	query := `
		UPDATE embedding_jobs
		SET status = $2, result = $3, error = $4, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, string(upd.Status), nullableJSON(result), upd.Error)
	if err != nil {
		return errors.Wrap(err, "update embedding job")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update embedding job")
	}
	if n == 0 {
		return errors.Errorf("embedding job %s not found", id)
	}
	return nil
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
