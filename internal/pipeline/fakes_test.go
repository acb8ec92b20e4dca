package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stanstork/stratum-embed/internal/models"
	"github.com/stanstork/stratum-embed/internal/repository"
	"github.com/stanstork/stratum-embed/internal/source"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type memJobs struct {
	mu      sync.Mutex
	jobs    map[string]models.EmbeddingJob
	updates []models.JobUpdate
}

func (m *memJobs) Get(_ context.Context, id string) (*models.EmbeddingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (m *memJobs) Update(_ context.Context, id string, upd models.JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return errors.Errorf("job %s not found", id)
	}
	job.Status = upd.Status
	job.Result = upd.Result
	job.Error = upd.Error
	m.jobs[id] = job
	m.updates = append(m.updates, upd)
	return nil
}

func (m *memJobs) job(id string) models.EmbeddingJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

type memConnections map[string]models.DatabaseConnection

func (m memConnections) Get(_ context.Context, id, owner string) (*models.DatabaseConnection, error) {
	c, ok := m[id]
	if !ok || c.UserID != owner {
		return nil, nil
	}
	return &c, nil
}

type memModels map[string]models.EmbeddingModel

func (m memModels) Get(_ context.Context, id string) (*models.EmbeddingModel, error) {
	mm, ok := m[id]
	if !ok {
		return nil, nil
	}
	return &mm, nil
}

type memEmbeddings struct {
	mu      sync.Mutex
	batches [][]models.EmbeddingRecord
	failAt  int // 1-based batch that fails, 0 disables
}

func (m *memEmbeddings) InsertBatch(_ context.Context, records []models.EmbeddingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAt > 0 && len(m.batches)+1 == m.failAt {
		return errors.New("insert or update on table \"embeddings\" violates foreign key constraint")
	}
	m.batches = append(m.batches, append([]models.EmbeddingRecord(nil), records...))
	return nil
}

func (m *memEmbeddings) all() []models.EmbeddingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EmbeddingRecord
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

// fakeEmbedder returns [global index, text length, 1] per text.
type fakeEmbedder struct {
	calls  int
	models []string
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, model string, texts []string) ([][]float32, error) {
	f.calls++
	f.models = append(f.models, model)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(i), float32(len(t)), 1}
	}
	return out, nil
}

type sqliteHandle struct {
	*sql.DB
	closed *bool
}

func (h sqliteHandle) Close() error {
	*h.closed = true
	return h.DB.Close()
}

func (h sqliteHandle) Dialect() source.Dialect {
	d, _ := source.DialectFor("postgresql")
	return d
}

// sqliteConnector hands out one seeded in-memory database.
type sqliteConnector struct {
	db     *sql.DB
	closed bool
	err    error
	got    models.DatabaseConnection
}

func (c *sqliteConnector) Connect(_ context.Context, dc models.DatabaseConnection) (source.Handle, error) {
	c.got = dc
	if c.err != nil {
		return nil, c.err
	}
	return sqliteHandle{DB: c.db, closed: &c.closed}, nil
}

type row struct {
	name  any
	email any
}

func seedCustomers(t *testing.T, rows []row) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT, email TEXT)`)
	require.NoError(t, err)
	for i, r := range rows {
		_, err := db.Exec(`INSERT INTO customers (id, name, email) VALUES (?, ?, ?)`, i+1, r.name, r.email)
		require.NoError(t, err)
	}
	return db
}

func intp(n int) *int { return &n }

func numberedRows(n int) []row {
	rows := make([]row, n)
	for i := range rows {
		rows[i] = row{name: fmt.Sprintf("Customer %d", i+1), email: fmt.Sprintf("c%d@example.com", i+1)}
	}
	return rows
}

const (
	testJobID   = "job-1"
	testUserID  = "user-1"
	testConnID  = "conn-1"
	testModelID = "model-1"
)

type fixture struct {
	jobs       *memJobs
	embeddings *memEmbeddings
	store      *repository.Store
}

func newFixture(params models.JobParameters) *fixture {
	if params.ConnectionID == "" {
		params.ConnectionID = testConnID
	}
	if params.ModelID == "" {
		params.ModelID = testModelID
	}
	if params.Query == "" {
		params.Query = "SELECT name, email FROM customers ORDER BY id;"
	}

	jobs := &memJobs{jobs: map[string]models.EmbeddingJob{
		testJobID: {ID: testJobID, UserID: testUserID, Status: models.JobStatusPending, Parameters: params},
	}}
	emb := &memEmbeddings{}
	return &fixture{
		jobs:       jobs,
		embeddings: emb,
		store: &repository.Store{
			Jobs: jobs,
			Connections: memConnections{
				testConnID: {ID: testConnID, UserID: testUserID, Type: "postgresql", Host: "db.internal", Port: 5432, DatabaseName: "crm", Username: "reader", Password: "ENV_DB_PASS"},
			},
			Models: memModels{
				testModelID: {ID: testModelID, Name: "Small", Provider: "openai", ModelID: "text-embedding-3-small", Dimensions: 3},
			},
			Embeddings: emb,
		},
	}
}
