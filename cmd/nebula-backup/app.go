package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-backup/internal/backup"
	"github.com/ajitpratap0/nebula-backup/internal/fetch"
	"github.com/ajitpratap0/nebula-backup/internal/tabular"
	"github.com/ajitpratap0/nebula-backup/internal/transfer"
	"github.com/ajitpratap0/nebula-backup/pkg/clients"
	"github.com/ajitpratap0/nebula-backup/pkg/compression"
	"github.com/ajitpratap0/nebula-backup/pkg/config"
	"github.com/ajitpratap0/nebula-backup/pkg/destinations"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"

	// Register storage backends
	_ "github.com/ajitpratap0/nebula-backup/pkg/destinations/drive"
	_ "github.com/ajitpratap0/nebula-backup/pkg/destinations/gcs"
	_ "github.com/ajitpratap0/nebula-backup/pkg/destinations/local"
	_ "github.com/ajitpratap0/nebula-backup/pkg/destinations/s3"
)

// options are the command line settings shared by every command
type options struct {
	configFile string
	envFiles   []string
	sources    []string
	dryRun     bool
	dryRunDir  string
	logLevel   string
}

// loadConfig builds the job configuration: env files first, then the config
// file (or the environment when no file is given), then flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	if err := config.LoadEnvFiles(opts.envFiles...); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFile(opts.configFile)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	if len(opts.sources) > 0 {
		cfg.Sources = cfg.Sources[:0]
		for _, raw := range opts.sources {
			src, err := config.ParseSource(raw)
			if err != nil {
				return nil, err
			}
			cfg.Sources = append(cfg.Sources, src)
		}
	}

	if opts.dryRun {
		dir := opts.dryRunDir
		if dir == "" {
			dir = "dry-run"
		}
		cfg.Storage = config.StorageConfig{
			Type:             config.StorageLocal,
			RootFolderID:     dir,
			FolderDateLayout: cfg.Storage.FolderDateLayout,
		}
	}

	if opts.logLevel != "" {
		cfg.Observability.LogLevel = opts.logLevel
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app wires one configured backup job
type app struct {
	cfg     *config.Config
	client  *clients.HTTPClient
	backend destinations.Backend
	orch    *backup.Orchestrator
	logger  *zap.Logger
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.Token = cfg.API.Token
	httpCfg.RequestTimeout = cfg.API.RequestTimeout
	httpCfg.RateLimit = cfg.API.RateLimitPerSec
	if cfg.API.UserAgent != "" {
		httpCfg.UserAgent = cfg.API.UserAgent
	}
	client := clients.NewHTTPClient(httpCfg, log)

	fetcher := fetch.New(client, fetch.Options{
		PageSize:            cfg.API.PageSize,
		PolitenessDelay:     cfg.API.PolitenessDelay,
		DefaultRetryAfter:   cfg.API.DefaultRetryAfter,
		MaxRateLimitRetries: cfg.API.MaxRateLimitRetries,
	}, log)

	algo, err := compression.ParseAlgorithm(cfg.Output.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid output.compression")
	}
	serializer, err := tabular.New(tabular.Options{
		Dir:         cfg.Output.Dir,
		Delimiter:   cfg.Output.DelimiterRune(),
		CRLF:        cfg.Output.CRLF,
		Compression: algo,
		Level:       compression.Default,
	}, log)
	if err != nil {
		return nil, err
	}

	backend, err := destinations.Create(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	orch := backup.New(fetcher, serializer, transfer.New(backend, log), log,
		backup.WithFolderLayout(cfg.Storage.FolderDateLayout))

	return &app{
		cfg:     cfg,
		client:  client,
		backend: backend,
		orch:    orch,
		logger:  log,
	}, nil
}

// run executes one backup of every configured source
func (a *app) run(ctx context.Context) (*backup.Report, error) {
	report, err := a.orch.Run(ctx, a.cfg.Sources, a.cfg.Storage.RootFolderID)

	stats := a.client.GetStats()
	a.logger.Debug("api client stats",
		zap.Int64("requests", stats.TotalRequests),
		zap.Int64("failed", stats.FailedRequests),
		zap.Int64("throttle_waits", stats.Throttle.Waits),
		zap.Duration("throttle_wait", stats.Throttle.TotalWait))
	return report, err
}

func (a *app) Close() error {
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("failed to close storage backend", zap.Error(err))
	}
	return a.client.Close()
}
