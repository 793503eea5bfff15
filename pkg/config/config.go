// Package config provides the configuration for nebula-backup.
// A single Config structure describes one backup job: where the records come
// from, where the artifacts go, and how the run is observed.
//
// The configuration is organized into logical sections:
//   - API: Bearer token, page size, politeness delay and rate-limit backoff
//   - Sources: The (url, output name) pairs extracted on every run
//   - Storage: The remote backend and the root folder receiving dated folders
//   - Output: Local artifact directory, delimiter and optional compression
//   - Schedule: Cron expression and status server for daemon mode
//   - Observability: Logging, tracing and Prometheus push settings
//
// Example usage:
//
//	cfg, err := config.LoadFile("backup.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Storage.Type = "local"
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"
)

// Storage backend names
const (
	StorageDrive = "drive"
	StorageGCS   = "gcs"
	StorageS3    = "s3"
	StorageLocal = "local"
)

// Config is the unified configuration of one backup job.
type Config struct {
	// Name identifies the job in logs and metrics
	Name string `yaml:"name" toml:"name" json:"name"`

	// API settings for the source platform
	API APIConfig `yaml:"api" toml:"api" json:"api"`

	// Sources lists the collections to back up, in order
	Sources []SourceConfig `yaml:"sources" toml:"sources" json:"sources" validate:"required,min=1,dive"`

	// Storage selects the remote backend
	Storage StorageConfig `yaml:"storage" toml:"storage" json:"storage"`

	// Output controls local artifact generation
	Output OutputConfig `yaml:"output" toml:"output" json:"output"`

	// Schedule configures daemon mode
	Schedule ScheduleConfig `yaml:"schedule" toml:"schedule" json:"schedule"`

	// Observability settings for logs, traces and metrics
	Observability ObservabilityConfig `yaml:"observability" toml:"observability" json:"observability"`
}

// APIConfig contains the settings of the paginated source API.
type APIConfig struct {
	// Token is sent as "Authorization: Bearer <token>"
	Token string `yaml:"token" toml:"token" json:"-" validate:"required"`
	// PageSize is the fixed cursor stride
	PageSize int `yaml:"page_size" toml:"page_size" json:"page_size" validate:"gt=0"`
	// PolitenessDelay is slept after every successful page
	PolitenessDelay time.Duration `yaml:"politeness_delay" toml:"politeness_delay" json:"politeness_delay" validate:"gte=0"`
	// DefaultRetryAfter is used when a 429 carries no usable Retry-After header
	DefaultRetryAfter time.Duration `yaml:"default_retry_after" toml:"default_retry_after" json:"default_retry_after" validate:"gt=0"`
	// MaxRateLimitRetries caps consecutive 429s on one cursor (0 = unlimited)
	MaxRateLimitRetries int `yaml:"max_rate_limit_retries" toml:"max_rate_limit_retries" json:"max_rate_limit_retries" validate:"gte=0"`
	// RequestTimeout bounds a single HTTP request
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout" json:"request_timeout" validate:"gt=0"`
	// RateLimitPerSec adds a client-side token bucket (0 = disabled)
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" toml:"rate_limit_per_sec" json:"rate_limit_per_sec" validate:"gte=0"`
	// UserAgent overrides the default User-Agent header
	UserAgent string `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
}

// SourceConfig is one collection endpoint and the file it is written to.
type SourceConfig struct {
	URL    string `yaml:"url" toml:"url" json:"url" validate:"required,url"`
	Output string `yaml:"output" toml:"output" json:"output" validate:"required,output_name"`
}

// StorageConfig selects and configures the remote backend.
type StorageConfig struct {
	// Type is one of drive, gcs, s3, local
	Type string `yaml:"type" toml:"type" json:"type" validate:"oneof=drive gcs s3 local"`
	// RootFolderID is the parent of every dated run folder. For drive it is a
	// folder ID, for gcs/s3 an object prefix, for local a directory.
	RootFolderID string `yaml:"root_folder_id" toml:"root_folder_id" json:"root_folder_id"`
	// CredentialsFile is a service account key (drive, gcs)
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file" json:"credentials_file"`
	// Bucket for gcs and s3
	Bucket string `yaml:"bucket" toml:"bucket" json:"bucket"`
	// Region for s3
	Region string `yaml:"region" toml:"region" json:"region"`
	// Endpoint overrides the backend API endpoint (emulators, S3-compatible stores)
	Endpoint string `yaml:"endpoint" toml:"endpoint" json:"endpoint" validate:"omitempty,url"`
	// ChunkSize is the resumable upload chunk size in bytes
	ChunkSize int `yaml:"chunk_size" toml:"chunk_size" json:"chunk_size" validate:"gte=0"`
	// FolderDateLayout names the per-run folder (Go time layout)
	FolderDateLayout string `yaml:"folder_date_layout" toml:"folder_date_layout" json:"folder_date_layout" validate:"required"`
	// SharedDrive enables shared drive support for drive
	SharedDrive bool `yaml:"shared_drive" toml:"shared_drive" json:"shared_drive"`
}

// OutputConfig controls the local artifacts.
type OutputConfig struct {
	// Dir is where artifacts are written before upload
	Dir string `yaml:"dir" toml:"dir" json:"dir"`
	// Delimiter is the single-character field separator
	Delimiter string `yaml:"delimiter" toml:"delimiter" json:"delimiter" validate:"single_rune"`
	// CRLF terminates rows with \r\n instead of \n
	CRLF bool `yaml:"crlf" toml:"crlf" json:"crlf"`
	// Compression is one of none, gzip, zstd, lz4, snappy, s2
	Compression string `yaml:"compression" toml:"compression" json:"compression" validate:"oneof=none gzip zstd lz4 snappy s2"`
}

// ScheduleConfig configures daemon mode.
type ScheduleConfig struct {
	// Cron is a standard 5-field expression or a descriptor such as @daily
	Cron string `yaml:"cron" toml:"cron" json:"cron"`
	// Timezone is an IANA zone name for the cron expression
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone" validate:"omitempty,timezone"`
	// RunOnStart triggers one run immediately after the scheduler starts
	RunOnStart bool `yaml:"run_on_start" toml:"run_on_start" json:"run_on_start"`
	// StatusAddr serves /metrics, /healthz and /status when set
	StatusAddr string `yaml:"status_addr" toml:"status_addr" json:"status_addr" validate:"omitempty,hostname_port"`
}

// ObservabilityConfig contains logging, tracing and metrics settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" toml:"log_encoding" json:"log_encoding" validate:"oneof=json console"`
	// Development enables human-friendly log output
	Development bool `yaml:"development" toml:"development" json:"development"`
	// EnableTracing exports spans to stdout
	EnableTracing bool `yaml:"enable_tracing" toml:"enable_tracing" json:"enable_tracing"`
	// PushGateway pushes run metrics after a one-shot run when set
	PushGateway string `yaml:"push_gateway" toml:"push_gateway" json:"push_gateway" validate:"omitempty,url"`
}

// Default returns a Config with every default applied and no sources.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with production defaults. It never
// overrides a value that was set explicitly.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "backup"
	}

	if c.API.PageSize == 0 {
		c.API.PageSize = 100
	}
	if c.API.PolitenessDelay == 0 {
		c.API.PolitenessDelay = time.Second
	}
	if c.API.DefaultRetryAfter == 0 {
		c.API.DefaultRetryAfter = 5 * time.Second
	}
	if c.API.RequestTimeout == 0 {
		c.API.RequestTimeout = 30 * time.Second
	}

	if c.Storage.Type == "" {
		c.Storage.Type = StorageDrive
	}
	if c.Storage.FolderDateLayout == "" {
		c.Storage.FolderDateLayout = "2006-01-02"
	}
	if c.Storage.ChunkSize == 0 {
		c.Storage.ChunkSize = 8 * 1024 * 1024
	}
	if c.Storage.Region == "" && c.Storage.Type == StorageS3 {
		c.Storage.Region = "us-east-1"
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Output.Delimiter == "" {
		c.Output.Delimiter = "\t"
	}
	if c.Output.Compression == "" {
		c.Output.Compression = "none"
	}

	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogEncoding == "" {
		c.Observability.LogEncoding = "json"
	}
}

// DelimiterRune returns the configured delimiter as a rune
func (o *OutputConfig) DelimiterRune() rune {
	for _, r := range o.Delimiter {
		return r
	}
	return '\t'
}

// IsScheduled returns true if a cron expression is configured
func (s *ScheduleConfig) IsScheduled() bool {
	return s.Cron != ""
}
