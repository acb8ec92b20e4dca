package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/stanstork/stratum-embed/internal/models"
)

type connectionRepository struct {
	db *sql.DB
}

func NewConnectionRepository(db *sql.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Get(ctx context.Context, id, owner string) (*models.DatabaseConnection, error) {
	query := `
		SELECT id, user_id, name, type, host, port, database_name, username,
		       COALESCE(password, ''), COALESCE(connection_string, ''), created_at, updated_at
		FROM database_connections
		WHERE id = $1 AND user_id = $2
	`

	conn := &models.DatabaseConnection{}
	err := r.db.QueryRowContext(ctx, query, id, owner).Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Name,
		&conn.Type,
		&conn.Host,
		&conn.Port,
		&conn.DatabaseName,
		&conn.Username,
		&conn.Password,
		&conn.ConnectionString,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, errors.Wrap(err, "select database connection")
	}
	return conn, nil
}
