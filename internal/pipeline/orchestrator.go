// Package pipeline drives one embedding job from source query to stored
// vectors and records its progress on the job.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/apperrors"
	"github.com/stanstork/stratum-embed/internal/embedding"
	"github.com/stanstork/stratum-embed/internal/models"
	"github.com/stanstork/stratum-embed/internal/repository"
	"github.com/stanstork/stratum-embed/internal/source"
)

const DefaultInsertBatchSize = 100

// Connector opens a live handle for a stored connection.
type Connector interface {
	Connect(ctx context.Context, dc models.DatabaseConnection) (source.Handle, error)
}

// RowFetcher reads the full result of a query.
type RowFetcher interface {
	FetchAll(ctx context.Context, q source.Querier, query string) (*source.ResultSet, error)
}

type Orchestrator struct {
	store           *repository.Store
	connector       Connector
	fetcher         RowFetcher
	embedder        embedding.Embedder
	insertBatchSize int
	now             func() time.Time
	logger          zerolog.Logger
}

func NewOrchestrator(store *repository.Store, connector Connector, fetcher RowFetcher, embedder embedding.Embedder, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:           store,
		connector:       connector,
		fetcher:         fetcher,
		embedder:        embedder,
		insertBatchSize: DefaultInsertBatchSize,
		now:             time.Now,
		logger:          logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Process runs the job to a terminal state. A job that cannot be loaded, or
// is not pending, is returned as an error without being modified. Every
// later failure is written to the job as failed and then returned.
func (o *Orchestrator) Process(ctx context.Context, jobID string) (*models.JobResult, error) {
	log := o.logger.With().Str("job_id", jobID).Logger()

	job, err := o.store.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, apperrors.Storage("Failed to fetch job", err)
	}
	if job == nil {
		return nil, apperrors.JobNotFound(jobID)
	}

	tracker := newProgressTracker(o.store.Jobs, job, o.now, log)
	if err := tracker.start(ctx); err != nil {
		log.Warn().Err(err).Str("status", string(job.Status)).Msg("job not started")
		return nil, err
	}
	log.Info().Msg("job processing started")

	result, err := o.run(ctx, job, tracker, log)
	if err != nil {
		msg := err.Error()
		log.Error().Err(err).Str("kind", string(apperrors.KindOf(err))).Msg("job failed")
		// The failure is recorded even if the caller has gone away.
		if ferr := tracker.fail(context.WithoutCancel(ctx), msg); ferr != nil {
			log.Error().Err(ferr).Msg("failed to record job failure")
		}
		return nil, err
	}

	log.Info().
		Int("rows", *result.RowsProcessed).
		Int("chunks", *result.ChunksCreated).
		Int("stored", *result.EmbeddingsStored).
		Msg("job completed")
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, job *models.EmbeddingJob, tracker *progressTracker, log zerolog.Logger) (*models.JobResult, error) {
	if err := job.Parameters.Validate(); err != nil {
		return nil, apperrors.InvalidRequest("Invalid job parameters: " + err.Error())
	}
	params := job.Parameters
	chunkSize, chunkOverlap := params.Chunking()

	dc, err := o.store.Connections.Get(ctx, params.ConnectionID, job.UserID)
	if err != nil || dc == nil {
		return nil, apperrors.UpstreamReference("Failed to fetch database connection", err)
	}
	model, err := o.store.Models.Get(ctx, params.ModelID)
	if err != nil || model == nil {
		return nil, apperrors.UpstreamReference("Failed to fetch embedding model", err)
	}

	handle, err := o.connector.Connect(ctx, *dc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := handle.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close source connection")
		}
	}()
	if err := tracker.report(ctx, 10, "Connected to database"); err != nil {
		return nil, err
	}

	rs, err := o.fetcher.FetchAll(ctx, handle, params.Query)
	if err != nil {
		return nil, err
	}
	if err := tracker.report(ctx, 20, fmt.Sprintf("Fetched %d rows", rs.Len())); err != nil {
		return nil, err
	}
	if rs.Len() == 0 {
		return nil, apperrors.EmptyResult("Query returned no results")
	}

	proj := projectColumns(rs.Columns, params.SelectedColumns)
	texts := flattenRows(rs, proj)

	if err := tracker.report(ctx, 30, "Processing rows"); err != nil {
		return nil, err
	}
	chunks, err := chunkRows(texts, chunkSize, chunkOverlap, func(done int) error {
		return tracker.report(ctx, interpolate(30, 50, done, len(texts)), fmt.Sprintf("Processed %d of %d rows", done, len(texts)))
	})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, apperrors.EmptyResult("No text chunks generated from query results")
	}

	if err := tracker.report(ctx, 50, fmt.Sprintf("Generating embeddings for %d chunks", len(chunks))); err != nil {
		return nil, err
	}
	vectors, err := o.embedder.Embed(ctx, model.ModelID, chunkTexts(chunks))
	if err != nil {
		return nil, err
	}
	if err := tracker.report(ctx, 80, "Embeddings generated"); err != nil {
		return nil, err
	}

	records := buildRecords(job, model, proj.names, chunks, vectors)
	stored, err := o.insert(ctx, records, tracker)
	if err != nil {
		return nil, err
	}

	return tracker.complete(ctx, rs.Len(), len(chunks), stored)
}

// insert writes records in fixed-size batches. Batches written before a
// failure stay written.
func (o *Orchestrator) insert(ctx context.Context, records []models.EmbeddingRecord, tracker *progressTracker) (int, error) {
	batches := (len(records) + o.insertBatchSize - 1) / o.insertBatchSize
	stored := 0
	for b := 0; b < batches; b++ {
		lo := b * o.insertBatchSize
		hi := min(lo+o.insertBatchSize, len(records))

		if err := o.store.Embeddings.InsertBatch(ctx, records[lo:hi]); err != nil {
			return stored, apperrors.Storage(
				fmt.Sprintf("Failed to store embeddings batch %d of %d", b+1, batches),
				errors.WithStack(err))
		}
		stored += hi - lo

		msg := fmt.Sprintf("Stored %d of %d embeddings", stored, len(records))
		if err := tracker.report(ctx, interpolate(80, 95, b+1, batches), msg); err != nil {
			return stored, err
		}
	}
	return stored, nil
}
