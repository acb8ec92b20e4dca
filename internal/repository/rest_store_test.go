package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string]string
	header http.Header
	body   []byte
}

type recorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (r *recorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.reqs...)
}

func newRESTServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		q := map[string]string{}
		for k, v := range r.URL.Query() {
			q[k] = v[0]
		}
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, recordedRequest{method: r.Method, path: r.URL.Path, query: q, header: r.Header.Clone(), body: body})
		rec.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewRESTStore(RESTConfig{URL: srv.URL + "/", ServiceKey: "service-key"}, zerolog.Nop()), rec
}

func TestRESTJobGet(t *testing.T) {
	store, reqs := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{
			"id": "job-1",
			"user_id": "user-1",
			"status": "pending",
			"parameters": {"connectionId": "conn-1", "query": "SELECT 1", "modelId": "model-1", "chunkSize": 500, "selectedColumns": ["a"]},
			"result": null,
			"error": null,
			"created_at": "2024-05-01T10:00:00.123456+00:00",
			"updated_at": "2024-05-01T10:00:00+00:00"
		}]`))
	})

	job, err := store.Jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, "conn-1", job.Parameters.ConnectionID)
	require.NotNil(t, job.Parameters.ChunkSize)
	assert.Equal(t, 500, *job.Parameters.ChunkSize)
	assert.Nil(t, job.Parameters.ChunkOverlap)
	assert.Equal(t, []string{"a"}, job.Parameters.SelectedColumns)
	assert.Nil(t, job.Result)
	assert.Nil(t, job.Error)

	require.Len(t, reqs.all(), 1)
	req := reqs.all()[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/rest/v1/embedding_jobs", req.path)
	assert.Equal(t, "eq.job-1", req.query["id"])
	assert.Equal(t, "*", req.query["select"])
	assert.Equal(t, "service-key", req.header.Get("apikey"))
	assert.Equal(t, "Bearer service-key", req.header.Get("Authorization"))
}

func TestRESTJobGetNotFound(t *testing.T) {
	store, _ := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	job, err := store.Jobs.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRESTJobUpdate(t *testing.T) {
	store, reqs := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"job-1"}]`))
	})

	msg := "Query returned no results"
	err := store.Jobs.Update(context.Background(), "job-1", models.JobUpdate{
		Status: models.JobStatusFailed,
		Result: &models.JobResult{Message: msg, Progress: 0},
		Error:  &msg,
	})
	require.NoError(t, err)

	require.Len(t, reqs.all(), 1)
	req := reqs.all()[0]
	assert.Equal(t, http.MethodPatch, req.method)
	assert.Equal(t, "eq.job-1", req.query["id"])
	assert.Equal(t, "return=representation", req.header.Get("Prefer"))
	assert.Equal(t, "id", req.query["select"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.body, &body))
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, msg, body["error"])
	assert.Equal(t, msg, body["result"].(map[string]any)["message"])
	assert.Contains(t, body, "updated_at")
}

func TestRESTJobUpdateMissingJob(t *testing.T) {
	store, _ := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	err := store.Jobs.Update(context.Background(), "gone", models.JobUpdate{
		Status: models.JobStatusProcessing,
		Result: &models.JobResult{Message: "Starting", Progress: 0},
	})
	assert.EqualError(t, err, "embedding job gone not found")
}

func TestRESTJobUpdateClearsError(t *testing.T) {
	store, reqs := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"job-1"}]`))
	})

	require.NoError(t, store.Jobs.Update(context.Background(), "job-1", models.JobUpdate{
		Status: models.JobStatusProcessing,
		Result: &models.JobResult{Message: "Starting", Progress: 0},
	}))

	var body map[string]any
	require.NoError(t, json.Unmarshal(reqs.all()[0].body, &body))
	v, ok := body["error"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestRESTConnectionGetFiltersByOwner(t *testing.T) {
	store, reqs := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"conn-1","user_id":"user-1","name":"crm","type":"postgresql","host":"db","port":5432,"database_name":"crm","username":"reader","password":"ENV_CRM_PASS","connection_string":null}]`))
	})

	conn, err := store.Connections.Get(context.Background(), "conn-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "ENV_CRM_PASS", conn.Password)
	assert.Equal(t, 5432, conn.Port)
	assert.Empty(t, conn.ConnectionString)

	req := reqs.all()[0]
	assert.Equal(t, "/rest/v1/database_connections", req.path)
	assert.Equal(t, "eq.conn-1", req.query["id"])
	assert.Equal(t, "eq.user-1", req.query["user_id"])
}

func TestRESTModelGet(t *testing.T) {
	store, _ := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"model-1","name":"Small","provider":"openai","model_id":"text-embedding-3-small","dimensions":1536}]`))
	})

	m, err := store.Models.Get(context.Background(), "model-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "text-embedding-3-small", m.ModelID)
	assert.Equal(t, 1536, m.Dimensions)
}

func TestRESTInsertBatch(t *testing.T) {
	store, reqs := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	records := []models.EmbeddingRecord{
		{
			Name:       "Customers - Row 1, Chunk 1",
			SourceType: models.SourceTypeDatabaseQuery,
			SourceID:   "job-1",
			ModelID:    "model-1",
			Embedding:  []float32{0.5, -0.25},
			Content:    "id: 1",
			Metadata:   models.ChunkMetadata{JobID: "job-1", RowIndex: 0, ChunkIndex: 0, SourcePreview: "id: 1"},
			UserID:     "user-1",
		},
	}
	require.NoError(t, store.Embeddings.InsertBatch(context.Background(), records))

	req := reqs.all()[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/rest/v1/embeddings", req.path)
	assert.Equal(t, "return=minimal", req.header.Get("Prefer"))

	var body []map[string]any
	require.NoError(t, json.Unmarshal(req.body, &body))
	require.Len(t, body, 1)
	assert.Equal(t, "database_query", body[0]["source_type"])
	assert.Equal(t, []any{0.5, -0.25}, body[0]["embedding"])
	assert.NotContains(t, body[0], "id")
	assert.Equal(t, "job-1", body[0]["metadata"].(map[string]any)["job_id"])
}

func TestRESTInsertBatchEmpty(t *testing.T) {
	store, reqs := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	require.NoError(t, store.Embeddings.InsertBatch(context.Background(), nil))
	assert.Empty(t, reqs.all())
}

func TestRESTErrorStatus(t *testing.T) {
	store, _ := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"duplicate key value violates unique constraint"}`))
	})

	err := store.Embeddings.InsertBatch(context.Background(), []models.EmbeddingRecord{{Name: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409 Conflict")
	assert.Contains(t, err.Error(), "duplicate key")
}
