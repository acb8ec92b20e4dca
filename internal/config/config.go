package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stanstork/stratum-embed/internal/apperrors"
)

const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

type StoreConfig struct {
	Backend    string        `mapstructure:"backend"`
	URL        string        `mapstructure:"url"`
	ServiceKey string        `mapstructure:"service_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type EmbeddingConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	BatchSize  int           `mapstructure:"batch_size"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SourceConfig struct {
	PageSize       int           `mapstructure:"page_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	SecretPrefix   string        `mapstructure:"secret_prefix"`
}

type Config struct {
	ServerPort  string          `mapstructure:"server_port"`
	LogLevel    string          `mapstructure:"log_level"`
	DatabaseURL string          `mapstructure:"database_url"`
	Store       StoreConfig     `mapstructure:"store"`
	Embedding   EmbeddingConfig `mapstructure:"embedding"`
	Source      SourceConfig    `mapstructure:"source"`
}

// Well-known environment names, in order of precedence.
var envBindings = map[string][]string{
	"server_port":        {"PORT", "SERVER_PORT"},
	"log_level":          {"LOG_LEVEL"},
	"database_url":       {"DATABASE_URL"},
	"store.backend":      {"STORE_BACKEND"},
	"store.url":          {"STORE_URL", "SUPABASE_URL"},
	"store.service_key":  {"STORE_SERVICE_KEY", "SUPABASE_SERVICE_ROLE_KEY"},
	"embedding.api_key":  {"EMBEDDING_API_KEY", "OPENAI_API_KEY"},
	"embedding.base_url": {"EMBEDDING_BASE_URL", "OPENAI_BASE_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")

	v.SetDefault("store.backend", BackendREST)
	v.SetDefault("store.url", "")
	v.SetDefault("store.service_key", "")
	v.SetDefault("store.timeout", 30*time.Second)

	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.batch_size", 100)
	v.SetDefault("embedding.batch_delay", time.Second)
	v.SetDefault("embedding.timeout", 60*time.Second)

	v.SetDefault("source.page_size", 1000)
	v.SetDefault("source.connect_timeout", 10*time.Second)
	v.SetDefault("source.secret_prefix", "ENV_")
}

// Load reads an optional config.yaml from . or ./config, a local .env file
// and the environment. Environment values win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, errors.Wrapf(err, "bind %s", key)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	config.Store.Backend = strings.ToLower(strings.TrimSpace(config.Store.Backend))

	return &config, nil
}

// Validate reports every missing setting required to process a job.
func (c *Config) Validate() error {
	var missing []string

	switch c.Store.Backend {
	case BackendREST:
		if c.Store.URL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Store.ServiceKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return apperrors.Configuration(fmt.Sprintf("Unknown store backend: %s", c.Store.Backend))
	}

	if c.Embedding.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	if len(missing) > 0 {
		return apperrors.Configuration("Missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}
