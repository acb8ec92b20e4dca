package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// NewPostgresStore opens one pgx pool and serves the row repositories through
// a database/sql view of it.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger zerolog.Logger) (*Store, *sql.DB, error) {
	log := logger.With().Str("component", "pg_store").Logger()

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse database url")
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "stratum-embed"

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open database pool")
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "ping database")
	}

	db := stdlib.OpenDBFromPool(pool)
	log.Info().Msg("connected to database")

	store := &Store{
		Jobs:        NewJobRepository(db),
		Connections: NewConnectionRepository(db),
		Models:      NewModelRepository(db),
		Embeddings:  NewEmbeddingRepository(pool),
		close: func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close database handle")
			}
			pool.Close()
			log.Info().Msg("database connections closed")
		},
	}
	return store, db, nil
}
