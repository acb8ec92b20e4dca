//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/migration"
	"github.com/stanstork/stratum-embed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "embed",
				"POSTGRES_PASSWORD": "embed",
				"POSTGRES_DB":       "embed",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://embed:embed@%s:%s/embed?sslmode=disable", host, port.Port())
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	store, db, err := NewPostgresStore(ctx, PostgresConfig{DSN: dsn}, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, migration.Up(db, zerolog.Nop()))

	var connID, jobID string
	_, err = db.ExecContext(ctx, `INSERT INTO embedding_models (id, name, model_id, dimensions) VALUES ('small', 'Small', 'text-embedding-3-small', 3)`)
	require.NoError(t, err)
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO database_connections (user_id, name, type, host, port, database_name, username, password)
		 VALUES ('user-1', 'CRM', 'postgresql', 'db.internal', 5432, 'crm', 'reader', 'ENV_DB_PASS') RETURNING id`).Scan(&connID))
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO embedding_jobs (user_id, parameters) VALUES ('user-1', $1) RETURNING id`,
		fmt.Sprintf(`{"connectionId":%q,"query":"SELECT 1","modelId":"small","chunkSize":500}`, connID)).Scan(&jobID))

	job, err := store.Jobs.Get(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, connID, job.Parameters.ConnectionID)
	require.NotNil(t, job.Parameters.ChunkSize)
	assert.Equal(t, 500, *job.Parameters.ChunkSize)
	assert.Nil(t, job.Parameters.ChunkOverlap)
	assert.Nil(t, job.Result)
	assert.Nil(t, job.Error)

	msg := "Query returned no results"
	require.NoError(t, store.Jobs.Update(ctx, jobID, models.JobUpdate{
		Status: models.JobStatusFailed,
		Result: &models.JobResult{Message: msg},
		Error:  &msg,
	}))
	job, err = store.Jobs.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, msg, *job.Error)
	assert.Equal(t, msg, job.Result.Message)

	missing, err := store.Jobs.Get(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	conn, err := store.Connections.Get(ctx, connID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "ENV_DB_PASS", conn.Password)
	assert.Empty(t, conn.ConnectionString)

	other, err := store.Connections.Get(ctx, connID, "user-2")
	require.NoError(t, err)
	assert.Nil(t, other)

	model, err := store.Models.Get(ctx, "small")
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, "text-embedding-3-small", model.ModelID)

	records := []models.EmbeddingRecord{
		{Name: "CRM - Row 1, Chunk 1", SourceType: models.SourceTypeDatabaseQuery, SourceID: connID, ModelID: "small",
			Embedding: []float32{0.1, 0.2, 0.3}, Content: "name: Ann", UserID: "user-1",
			Metadata: models.ChunkMetadata{JobID: jobID, RowIndex: 0, ChunkIndex: 0, SourcePreview: "name: Ann"}},
		{Name: "CRM - Row 2, Chunk 1", SourceType: models.SourceTypeDatabaseQuery, SourceID: connID, ModelID: "small",
			Embedding: []float32{0.4, 0.5, 0.6}, Content: "name: Bob", UserID: "user-1",
			Metadata: models.ChunkMetadata{JobID: jobID, RowIndex: 1, ChunkIndex: 0, SourcePreview: "name: Bob"}},
	}
	require.NoError(t, store.Embeddings.InsertBatch(ctx, records))

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE metadata->>'job_id' = $1`, jobID).Scan(&count))
	assert.Equal(t, 2, count)

	var rowIndex int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT (metadata->>'row_index')::int FROM embeddings WHERE name = 'CRM - Row 2, Chunk 1'`).Scan(&rowIndex))
	assert.Equal(t, 1, rowIndex)
}
