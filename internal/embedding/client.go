// Package embedding calls an external, OpenAI-compatible embeddings endpoint.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/apperrors"
)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultBatchSize  = 100
	DefaultBatchDelay = time.Second
	DefaultTimeout    = 60 * time.Second
)

// Embedder turns texts into vectors, one per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	BatchSize  int
	BatchDelay time.Duration
	Timeout    time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ Embedder = (*Client)(nil)

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "embedding_client").Logger(),
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed submits texts in batches of at most BatchSize, waiting BatchDelay
// between batches. Any failed batch fails the whole call and earlier results
// are dropped.
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	batches := (len(texts) + c.cfg.BatchSize - 1) / c.cfg.BatchSize

	for b := 0; b < batches; b++ {
		lo := b * c.cfg.BatchSize
		hi := min(lo+c.cfg.BatchSize, len(texts))

		vecs, err := c.embedBatch(ctx, model, texts[lo:hi])
		if err != nil {
			c.logger.Error().Err(err).Int("batch", b+1).Int("batches", batches).Msg("embedding batch failed")
			return nil, err
		}
		out = append(out, vecs...)

		if b < batches-1 && c.cfg.BatchDelay > 0 {
			if err := sleep(ctx, c.cfg.BatchDelay); err != nil {
				return nil, errors.Wrap(err, "embedding throttle interrupted")
			}
		}
	}

	if err := checkDimensions(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	reqID := uuid.NewString()
	start := time.Now()

	body, err := json.Marshal(embeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, errors.Wrap(err, "encode embedding request")
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	c.logger.Debug().Str("req_id", reqID).Str("model", model).Int("inputs", len(texts)).Msg("embedding request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.EmbeddingAPIMessage("Embedding API request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.EmbeddingAPIMessage("Embedding API response unreadable", err)
	}

	c.logger.Debug().
		Str("req_id", reqID).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("embedding response")

	if resp.StatusCode/100 != 2 {
		return nil, apperrors.EmbeddingAPI(resp.StatusCode, resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.EmbeddingAPIMessage("Embedding API returned malformed JSON", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, apperrors.EmbeddingAPIMessage(
			fmt.Sprintf("Embedding API returned %d embeddings for %d inputs", len(parsed.Data), len(texts)), nil)
	}

	sort.SliceStable(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	vecs := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// checkDimensions requires every vector of one call to share a length.
func checkDimensions(vecs [][]float32) error {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	if dim == 0 {
		return apperrors.EmbeddingAPIMessage("Embedding API returned an empty vector", nil)
	}
	for i, v := range vecs {
		if len(v) != dim {
			return apperrors.EmbeddingAPIMessage(
				fmt.Sprintf("embedding %d has dimension %d, expected %d", i, len(v), dim), nil)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
