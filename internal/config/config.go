// Package config loads service configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Env       string          `mapstructure:"env"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Server    ServerConfig    `mapstructure:"server"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Rerank    RerankConfig    `mapstructure:"rerank"`
	PublicWeb PublicWebConfig `mapstructure:"public_web"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// LogConfig controls the logger level override.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// HTTPConfig holds the HTTP listener settings.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ServerConfig selects how the MCP surface is served: "http" or "stdio".
type ServerConfig struct {
	Mode string `mapstructure:"mode"`
}

// EmbeddingConfig configures the embedding service client.
type EmbeddingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api_key"`
	Dim            int           `mapstructure:"dim"`
	EndpointPath   string        `mapstructure:"endpoint_path"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	RxTimeout      time.Duration `mapstructure:"rx_timeout"`
	MaxTextLength  int           `mapstructure:"max_text_length"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BaseRetryDelay time.Duration `mapstructure:"base_retry_delay"`
	MaxChars       int           `mapstructure:"max_chars"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// QdrantConfig points at the vector store.
type QdrantConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// RedisConfig enables the embedding cache when Addrs is non-empty.
type RedisConfig struct {
	Addrs    []string `mapstructure:"addrs"`
	Password string   `mapstructure:"password"`
}

// UpsertBatchConfig holds the upsert batch size per collection.
type UpsertBatchConfig struct {
	Products  int `mapstructure:"products"`
	Offers    int `mapstructure:"offers"`
	FAQs      int `mapstructure:"faqs"`
	Documents int `mapstructure:"documents"`
	Web       int `mapstructure:"web"`
	BotFAQs   int `mapstructure:"bot_faqs"`
}

// VectorConfig holds the retrieval tuning knobs.
type VectorConfig struct {
	UpsertBatch       UpsertBatchConfig  `mapstructure:"upsert_batch"`
	MinScore          float64            `mapstructure:"min_score"`
	Overfetch         int                `mapstructure:"overfetch"`
	UnifiedOverfetch  int                `mapstructure:"unified_overfetch"`
	StrictSources     bool               `mapstructure:"strict_sources"`
	MinScoreOverrides map[string]float64 `mapstructure:"min_score_overrides"`
}

// RerankConfig configures the LLM reranker.
type RerankConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	APIKey             string        `mapstructure:"api_key"`
	Model              string        `mapstructure:"model"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxCandidateLength int           `mapstructure:"max_candidate_length"`
}

// PublicWebConfig is the storefront base used to build product links.
type PublicWebConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// KafkaConfig enables the index event consumer when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Env: "local",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Server: ServerConfig{Mode: "http"},
		Embedding: EmbeddingConfig{
			Provider:       "http",
			Model:          "text-embedding-3-small",
			Dim:            384,
			EndpointPath:   "/embed",
			HTTPTimeout:    15 * time.Second,
			RxTimeout:      20 * time.Second,
			MaxTextLength:  10000,
			MaxRetries:     3,
			BaseRetryDelay: 500 * time.Millisecond,
			MaxChars:       3000,
			CacheTTL:       time.Hour,
		},
		Qdrant: QdrantConfig{URL: "http://localhost:6334"},
		Vector: VectorConfig{
			UpsertBatch: UpsertBatchConfig{
				Products:  10,
				Offers:    10,
				FAQs:      10,
				Documents: 2,
				Web:       10,
				BotFAQs:   10,
			},
			MinScore:         0,
			Overfetch:        4,
			UnifiedOverfetch: 2,
		},
		Rerank: RerankConfig{
			BaseURL:            "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:              "gemini-2.0-flash",
			Timeout:            15 * time.Second,
			MaxCandidateLength: 300,
		},
		PublicWeb: PublicWebConfig{BaseURL: "https://kaleem-ai.com"},
		Kafka: KafkaConfig{
			Topic:   "vector-index-events",
			GroupID: "vectorsearch-indexer",
		},
	}
}

// Load reads configuration with precedence env > file > defaults.
// An empty path skips the file; a missing file at a given path is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	// EMBEDDING_BASE_URL, VECTOR_UPSERT_BATCH_PRODUCTS, QDRANT_URL, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("rerank.api_key", "GEMINI_API_KEY", "RERANK_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Embedding.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Embedding.BaseURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("env", d.Env)
	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("server.mode", d.Server.Mode)

	v.SetDefault("embedding.base_url", d.Embedding.BaseURL)
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.dim", d.Embedding.Dim)
	v.SetDefault("embedding.endpoint_path", d.Embedding.EndpointPath)
	v.SetDefault("embedding.http_timeout", d.Embedding.HTTPTimeout)
	v.SetDefault("embedding.rx_timeout", d.Embedding.RxTimeout)
	v.SetDefault("embedding.max_text_length", d.Embedding.MaxTextLength)
	v.SetDefault("embedding.max_retries", d.Embedding.MaxRetries)
	v.SetDefault("embedding.base_retry_delay", d.Embedding.BaseRetryDelay)
	v.SetDefault("embedding.max_chars", d.Embedding.MaxChars)
	v.SetDefault("embedding.cache_ttl", d.Embedding.CacheTTL)

	v.SetDefault("qdrant.url", d.Qdrant.URL)
	v.SetDefault("qdrant.api_key", d.Qdrant.APIKey)

	v.SetDefault("redis.addrs", []string{})
	v.SetDefault("redis.password", d.Redis.Password)

	v.SetDefault("vector.upsert_batch.products", d.Vector.UpsertBatch.Products)
	v.SetDefault("vector.upsert_batch.offers", d.Vector.UpsertBatch.Offers)
	v.SetDefault("vector.upsert_batch.faqs", d.Vector.UpsertBatch.FAQs)
	v.SetDefault("vector.upsert_batch.documents", d.Vector.UpsertBatch.Documents)
	v.SetDefault("vector.upsert_batch.web", d.Vector.UpsertBatch.Web)
	v.SetDefault("vector.upsert_batch.bot_faqs", d.Vector.UpsertBatch.BotFAQs)
	v.SetDefault("vector.min_score", d.Vector.MinScore)
	v.SetDefault("vector.overfetch", d.Vector.Overfetch)
	v.SetDefault("vector.unified_overfetch", d.Vector.UnifiedOverfetch)
	v.SetDefault("vector.strict_sources", d.Vector.StrictSources)

	v.SetDefault("rerank.base_url", d.Rerank.BaseURL)
	v.SetDefault("rerank.model", d.Rerank.Model)
	v.SetDefault("rerank.timeout", d.Rerank.Timeout)
	v.SetDefault("rerank.max_candidate_length", d.Rerank.MaxCandidateLength)

	v.SetDefault("public_web.base_url", d.PublicWeb.BaseURL)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	v.SetDefault("kafka.group_id", d.Kafka.GroupID)
}

// Validate checks the values the engine cannot run without.
func (c *Config) Validate() error {
	if c.Embedding.BaseURL == "" {
		return errors.New("embedding.base_url is required (EMBEDDING_BASE_URL)")
	}
	if c.Embedding.Dim <= 0 {
		return fmt.Errorf("embedding.dim must be positive, got %d", c.Embedding.Dim)
	}
	if c.Embedding.MaxRetries < 1 {
		return fmt.Errorf("embedding.max_retries must be at least 1, got %d", c.Embedding.MaxRetries)
	}
	switch c.Embedding.Provider {
	case "http", "openai":
	default:
		return fmt.Errorf("embedding.provider must be http or openai, got %q", c.Embedding.Provider)
	}

	b := c.Vector.UpsertBatch
	for name, size := range map[string]int{
		"products":  b.Products,
		"offers":    b.Offers,
		"faqs":      b.FAQs,
		"documents": b.Documents,
		"web":       b.Web,
		"bot_faqs":  b.BotFAQs,
	} {
		if size < 1 {
			return fmt.Errorf("vector.upsert_batch.%s must be at least 1, got %d", name, size)
		}
	}

	if c.Vector.Overfetch < 1 || c.Vector.UnifiedOverfetch < 1 {
		return errors.New("vector overfetch factors must be at least 1")
	}
	if c.Vector.MinScore < 0 || c.Vector.MinScore > 1 {
		return fmt.Errorf("vector.min_score must be within [0,1], got %v", c.Vector.MinScore)
	}
	for name, score := range c.Vector.MinScoreOverrides {
		if score < 0 || score > 1 {
			return fmt.Errorf("vector.min_score_overrides.%s must be within [0,1], got %v", name, score)
		}
	}

	switch c.Server.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("server.mode must be http or stdio, got %q", c.Server.Mode)
	}
	return nil
}
