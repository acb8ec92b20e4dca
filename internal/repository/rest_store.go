package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/models"
)

const (
	tableJobs        = "embedding_jobs"
	tableConnections = "database_connections"
	tableModels      = "embedding_models"
	tableEmbeddings  = "embeddings"
)

type RESTConfig struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
}

// restClient talks to a PostgREST-style row API with a privileged key.
type restClient struct {
	base       string
	key        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewRESTStore returns a Store backed by the hosted backend's REST row API.
func NewRESTStore(cfg RESTConfig, logger zerolog.Logger) *Store {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &restClient{
		base:       strings.TrimRight(cfg.URL, "/") + "/rest/v1/",
		key:        cfg.ServiceKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "rest_store").Logger(),
	}
	return &Store{
		Jobs:        &restJobRepository{c: c},
		Connections: &restConnectionRepository{c: c},
		Models:      &restModelRepository{c: c},
		Embeddings:  &restEmbeddingRepository{c: c},
	}
}

func (c *restClient) do(ctx context.Context, method, table string, query url.Values, body any, out any) error {
	endpoint := c.base + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encode %s body", table)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrapf(err, "build %s request", table)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		if out != nil {
			req.Header.Set("Prefer", "return=representation")
		} else {
			req.Header.Set("Prefer", "return=minimal")
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, table)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s response", table)
	}

	c.logger.Debug().
		Str("method", method).
		Str("table", table).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("rest call")

	if resp.StatusCode/100 != 2 {
		return errors.Errorf("%s %s: %s: %s", method, table, resp.Status, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrapf(err, "decode %s response", table)
		}
	}
	return nil
}

// getOne fetches a single row by filters, returning false when none matched.
func (c *restClient) getOne(ctx context.Context, table string, filters map[string]string, out any) (bool, error) {
	q := url.Values{}
	for col, val := range filters {
		q.Set(col, "eq."+val)
	}
	q.Set("select", "*")

	var rows []json.RawMessage
	if err := c.do(ctx, http.MethodGet, table, q, nil, &rows); err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(rows[0], out); err != nil {
		return false, errors.Wrapf(err, "decode %s row", table)
	}
	return true, nil
}

type restJobRepository struct{ c *restClient }

func (r *restJobRepository) Get(ctx context.Context, id string) (*models.EmbeddingJob, error) {
	var job models.EmbeddingJob
	found, err := r.c.getOne(ctx, tableJobs, map[string]string{"id": id}, &job)
	if err != nil || !found {
		return nil, err
	}
	return &job, nil
}

type jobPatch struct {
	Status    models.JobStatus  `json:"status"`
	Result    *models.JobResult `json:"result"`
	Error     *string           `json:"error"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (r *restJobRepository) Update(ctx context.Context, id string, upd models.JobUpdate) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", "id")
	patch := jobPatch{Status: upd.Status, Result: upd.Result, Error: upd.Error, UpdatedAt: time.Now().UTC()}

	// A PATCH matching no rows still succeeds; the returned rows tell.
	var rows []json.RawMessage
	if err := r.c.do(ctx, http.MethodPatch, tableJobs, q, patch, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.Errorf("embedding job %s not found", id)
	}
	return nil
}

type restConnectionRepository struct{ c *restClient }

func (r *restConnectionRepository) Get(ctx context.Context, id, owner string) (*models.DatabaseConnection, error) {
	var conn models.DatabaseConnection
	found, err := r.c.getOne(ctx, tableConnections, map[string]string{"id": id, "user_id": owner}, &conn)
	if err != nil || !found {
		return nil, err
	}
	return &conn, nil
}

type restModelRepository struct{ c *restClient }

func (r *restModelRepository) Get(ctx context.Context, id string) (*models.EmbeddingModel, error) {
	var m models.EmbeddingModel
	found, err := r.c.getOne(ctx, tableModels, map[string]string{"id": id}, &m)
	if err != nil || !found {
		return nil, err
	}
	return &m, nil
}

type restEmbeddingRepository struct{ c *restClient }

// InsertBatch posts the batch as one request; the backend inserts it atomically.
func (r *restEmbeddingRepository) InsertBatch(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := r.c.do(ctx, http.MethodPost, tableEmbeddings, nil, records, nil); err != nil {
		return errors.Wrapf(err, "insert %d embeddings", len(records))
	}
	return nil
}
