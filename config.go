// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package assetfind

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/assetfind/ai"
	"github.com/poiesic/assetfind/reembed"
	"github.com/poiesic/assetfind/search"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	StorageBadger   = "badger"
	StoragePostgres = "postgres"
)

// Vector index drivers. VectorStore answers vector queries from the asset
// store itself.
const (
	VectorStore  = "store"
	VectorQdrant = "qdrant"
)

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// AI providers.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete configuration of a Library, normally read from a
// YAML file.
type Config struct {
	Storage StorageConfig  `yaml:"storage"`
	Vector  VectorConfig   `yaml:"vector"`
	Cache   CacheConfig    `yaml:"cache"`
	AI      AIConfig       `yaml:"ai"`
	Search  SearchConfig   `yaml:"search"`
	Server  ServerConfig   `yaml:"server"`
	Reembed reembed.Config `yaml:"reembed"`
}

// StorageConfig selects and configures the asset store.
type StorageConfig struct {
	Driver string `yaml:"driver"`

	// Path is the badger directory. Ignored when InMemory is set.
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`

	// DSN and Metric configure postgres. Metric is "cosine" or "l2".
	DSN         string `yaml:"dsn"`
	Metric      string `yaml:"metric"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// VectorConfig selects where nearest-neighbour queries are answered.
type VectorConfig struct {
	Driver     string `yaml:"driver"`
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
	Dims       int    `yaml:"dims"`
}

// CacheConfig configures the query embedding cache.
type CacheConfig struct {
	Driver   string        `yaml:"driver"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	MaxBytes int64         `yaml:"max_bytes"`
}

// AIConfig configures the embedding and tagging services.
type AIConfig struct {
	Provider           string  `yaml:"provider"`
	EmbeddingHost      string  `yaml:"embedding_host"`
	EmbeddingModel     string  `yaml:"embedding_model"`
	TaggerHost         string  `yaml:"tagger_host"`
	TaggerModel        string  `yaml:"tagger_model"`
	Token              string  `yaml:"token"`
	EmbeddingRateLimit float64 `yaml:"embedding_rate_limit"`
	MaxTags            int     `yaml:"max_tags"`

	// DisableTagging skips annotation during ingestion.
	DisableTagging bool `yaml:"disable_tagging"`
}

// SearchConfig tunes the searcher.
type SearchConfig struct {
	EmbedTimeout  time.Duration `yaml:"embed_timeout"`
	VectorTimeout time.Duration `yaml:"vector_timeout"`
	MaxResults    int           `yaml:"max_results"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// DefaultConfig returns a configuration for a local badger store in
// ./assetfind.db and an OpenAI-compatible server on localhost.
func DefaultConfig() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Storage: StorageConfig{
			Driver: StorageBadger,
			Path:   "assetfind.db",
			Metric: "cosine",
		},
		Vector: VectorConfig{
			Driver:     VectorStore,
			Addr:       "localhost:6334",
			Collection: "assets",
		},
		Cache: CacheConfig{
			Driver:   CacheMemory,
			TTL:      time.Hour,
			MaxBytes: 64 << 20,
		},
		AI: AIConfig{
			Provider:       ProviderOpenAI,
			EmbeddingHost:  aiDefaults.EmbeddingHost,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			TaggerHost:     aiDefaults.TaggerHost,
			TaggerModel:    aiDefaults.TaggerModel,
			Token:          aiDefaults.Token,
			MaxTags:        aiDefaults.MaxTags,
		},
		Search: SearchConfig{
			EmbedTimeout:  5 * time.Second,
			VectorTimeout: 5 * time.Second,
			MaxResults:    search.DefaultMaxResults,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 10 * time.Second,
		},
		Reembed: *reembed.DefaultConfig(),
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
// Keys absent from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch c.Storage.Driver {
	case StorageBadger:
		if c.Storage.Path == "" && !c.Storage.InMemory {
			return invalid("storage.path is required for badger")
		}
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return invalid("storage.dsn is required for postgres")
		}
		switch strings.ToLower(c.Storage.Metric) {
		case "", "cosine", "l2":
		default:
			return invalid("unknown storage.metric %q", c.Storage.Metric)
		}
	default:
		return invalid("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Vector.Driver {
	case "", VectorStore:
	case VectorQdrant:
		if c.Vector.Addr == "" || c.Vector.Collection == "" {
			return invalid("vector.addr and vector.collection are required for qdrant")
		}
		if c.Vector.Dims <= 0 {
			return invalid("vector.dims must be positive for qdrant")
		}
	default:
		return invalid("unknown vector.driver %q", c.Vector.Driver)
	}

	switch c.Cache.Driver {
	case "", CacheNone:
	case CacheMemory:
		if c.Cache.MaxBytes <= 0 {
			return invalid("cache.max_bytes must be positive")
		}
	case CacheRedis:
		if c.Cache.Addr == "" {
			return invalid("cache.addr is required for redis")
		}
	default:
		return invalid("unknown cache.driver %q", c.Cache.Driver)
	}
	if c.Cache.TTL < 0 {
		return invalid("cache.ttl must not be negative")
	}

	switch c.AI.Provider {
	case ProviderMock:
	case ProviderOpenAI:
		if err := c.AI.toAIConfig().Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	default:
		return invalid("unknown ai.provider %q", c.AI.Provider)
	}

	if c.Search.EmbedTimeout < 0 || c.Search.VectorTimeout < 0 {
		return invalid("search timeouts must not be negative")
	}
	if c.Search.MaxResults <= 0 {
		return invalid("search.max_results must be positive")
	}
	if c.Server.RequestTimeout < 0 {
		return invalid("server.request_timeout must not be negative")
	}
	if c.Reembed.BatchSize <= 0 || c.Reembed.MaxRetries <= 0 {
		return invalid("reembed.batch_size and reembed.max_retries must be positive")
	}
	return nil
}

func (c AIConfig) toAIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.EmbeddingHost),
		ai.WithTaggerHost(c.TaggerHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithTaggerModel(c.TaggerModel),
		ai.WithToken(c.Token),
		ai.WithEmbeddingRateLimit(c.EmbeddingRateLimit),
		ai.WithMaxTags(c.MaxTags),
	)
}
