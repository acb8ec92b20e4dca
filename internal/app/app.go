package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/config"
	"github.com/stanstork/stratum-embed/internal/embedding"
	"github.com/stanstork/stratum-embed/internal/migration"
	"github.com/stanstork/stratum-embed/internal/pipeline"
	"github.com/stanstork/stratum-embed/internal/repository"
	"github.com/stanstork/stratum-embed/internal/secrets"
	"github.com/stanstork/stratum-embed/internal/source"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config       *config.Config
	Store        *repository.Store
	Orchestrator *pipeline.Orchestrator
}

// New opens the metadata store and assembles the pipeline. With the postgres
// backend pending migrations are applied first.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg, logger, true)
	if err != nil {
		return nil, err
	}

	sec := secrets.NewResolver(cfg.Source.SecretPrefix, nil)
	connector := source.NewResolver(sec, cfg.Source.ConnectTimeout, logger)
	executor := source.NewExecutor(cfg.Source.PageSize, logger)
	embedder := embedding.NewClient(embedding.Config{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		BatchSize:  cfg.Embedding.BatchSize,
		BatchDelay: cfg.Embedding.BatchDelay,
		Timeout:    cfg.Embedding.Timeout,
	}, logger)

	return &App{
		Config:       cfg,
		Store:        store,
		Orchestrator: pipeline.NewOrchestrator(store, connector, executor, embedder, logger),
	}, nil
}

// OpenStore connects to the configured metadata backend.
func OpenStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger, migrate bool) (*repository.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendREST:
		return repository.NewRESTStore(repository.RESTConfig{
			URL:        cfg.Store.URL,
			ServiceKey: cfg.Store.ServiceKey,
			Timeout:    cfg.Store.Timeout,
		}, logger), nil
	case config.BackendPostgres:
		store, db, err := repository.NewPostgresStore(ctx, repository.PostgresConfig{
			DSN:         cfg.DatabaseURL,
			DialTimeout: cfg.Store.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := migration.Up(db, logger); err != nil {
				store.Close()
				return nil, errors.Wrap(err, "apply migrations")
			}
		}
		return store, nil
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Close releases the store.
func (a *App) Close() {
	a.Store.Close()
}

// ParseLevel maps a configured level name to zerolog, falling back to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}
