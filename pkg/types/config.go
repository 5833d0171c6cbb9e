// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout. There is no overall run timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429/503 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// APIConfig locates the FigureScout backend that serves search, project
// and full-text extraction endpoints.
type APIConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the backend root, e.g. "http://localhost:5000".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Token is an optional bearer token. Usually loaded from .secrets/.
	Token string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`
}

// EnrichConfig holds settings for the enrichment batch driver.
type EnrichConfig struct {
	// BatchSize is the number of records submitted per enrichBatch call (default 10).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// BatchDelay is an optional pause between batches so progress stays readable.
	BatchDelay time.Duration `json:"batch_delay" yaml:"batch_delay" mapstructure:"batch_delay"`

	// Retry enables the failure retry pass after a completed run (default true).
	Retry bool `json:"retry" yaml:"retry" mapstructure:"retry"`
}

// CacheBackend selects the side-cache implementation.
type CacheBackend string

const (
	CacheFile  CacheBackend = "file"
	CacheRedis CacheBackend = "redis"
	CacheNone  CacheBackend = "none"
)

// CacheConfig holds settings for the durable side-cache.
type CacheConfig struct {
	// Backend is file, redis, or none.
	Backend CacheBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Dir is the directory holding the file cache (default ".figurescout").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxAge is the freshness window; older snapshots read as absent (default 24h).
	MaxAge time.Duration `json:"max_age" yaml:"max_age" mapstructure:"max_age"`

	// RedisAddr is host:port of the Redis server for the redis backend.
	RedisAddr string `json:"redis_addr" yaml:"redis_addr" mapstructure:"redis_addr"`

	// RedisDB selects the Redis logical database.
	RedisDB int `json:"redis_db" yaml:"redis_db" mapstructure:"redis_db"`

	// RedisPassword is optional. Usually loaded from .secrets/.
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty" mapstructure:"redis_password"`
}

// ProjectStoreBackend selects the project store implementation.
type ProjectStoreBackend string

const (
	ProjectStoreHTTP   ProjectStoreBackend = "http"
	ProjectStoreSQLite ProjectStoreBackend = "sqlite"
)

// ProjectStoreConfig holds settings for the remote project store.
type ProjectStoreConfig struct {
	// Backend is http (the FigureScout server) or sqlite (local database).
	Backend ProjectStoreBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Path is the SQLite database path for the sqlite backend.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is debug, info, warn, or error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Development switches to a human-readable console encoder.
	Development bool `json:"development" yaml:"development" mapstructure:"development"`
}

// Config groups all component configurations.
type Config struct {
	API          APIConfig          `json:"api" yaml:"api" mapstructure:"api"`
	Enrich       EnrichConfig       `json:"enrich" yaml:"enrich" mapstructure:"enrich"`
	Cache        CacheConfig        `json:"cache" yaml:"cache" mapstructure:"cache"`
	ProjectStore ProjectStoreConfig `json:"project_store" yaml:"project_store" mapstructure:"project_store"`
	Log          LogConfig          `json:"log" yaml:"log" mapstructure:"log"`
}
