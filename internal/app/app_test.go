package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNewWithRESTBackend(t *testing.T) {
	cfg := &config.Config{
		Store:     config.StoreConfig{Backend: config.BackendREST, URL: "http://127.0.0.1:1", ServiceKey: "key"},
		Embedding: config.EmbeddingConfig{APIKey: "sk-test"},
	}

	core, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer core.Close()

	assert.NotNil(t, core.Store.Jobs)
	assert.NotNil(t, core.Store.Embeddings)
	assert.NotNil(t, core.Orchestrator)
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{Store: config.StoreConfig{Backend: "sqlite"}}, zerolog.Nop(), false)
	assert.ErrorContains(t, err, `unknown store backend "sqlite"`)
}
