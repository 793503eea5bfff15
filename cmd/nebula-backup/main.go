package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/nebula-backup/internal/backup"
	"github.com/ajitpratap0/nebula-backup/internal/scheduler"
	"github.com/ajitpratap0/nebula-backup/internal/server"
	"github.com/ajitpratap0/nebula-backup/pkg/config"
	"github.com/ajitpratap0/nebula-backup/pkg/destinations"
	"github.com/ajitpratap0/nebula-backup/pkg/logger"
	"github.com/ajitpratap0/nebula-backup/pkg/metrics"
	"github.com/ajitpratap0/nebula-backup/pkg/observability"
)

var version = "0.1.0"

const envPrefix = "NEBULA_BACKUP"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "nebula-backup",
		Short: "Back up paginated REST collections to cloud storage",
		Long: `nebula-backup pages through REST collections by cursor, writes each one
to a delimited file and uploads it into a dated folder of a storage backend
(Google Drive, GCS, S3 or a local directory).

Every flag can also be set through an environment variable with the
NEBULA_BACKUP_ prefix, e.g. NEBULA_BACKUP_CONFIG=backup.yaml.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a YAML or TOML job file (default: configure from the environment)")
	flags.StringSlice("env-file", config.DefaultEnvFiles, "Dotenv files to load before reading the configuration")
	flags.StringArray("source", nil, "Source as url=output_name; repeatable, replaces the configured sources")
	flags.Bool("dry-run", false, "Store artifacts in a local directory instead of the configured backend")
	flags.String("dry-run-dir", "dry-run", "Root directory used by --dry-run")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	_ = v.BindPFlags(flags)

	getOptions := func() options {
		return options{
			configFile: v.GetString("config"),
			envFiles:   v.GetStringSlice("env-file"),
			sources:    v.GetStringSlice("source"),
			dryRun:     v.GetBool("dry-run"),
			dryRunDir:  v.GetString("dry-run-dir"),
			logLevel:   v.GetString("log-level"),
		}
	}

	root.AddCommand(
		newRunCommand(getOptions),
		newScheduleCommand(getOptions),
		newSourcesCommand(getOptions),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nebula-backup v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "Storage backends: %s\n", strings.Join(destinations.Registered(), ", "))
		},
	}
}

func newSourcesCommand(getOptions func() options) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(getOptions())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, src := range cfg.Sources {
				fmt.Fprintf(out, "%s\t%s\n", src.Output, src.URL)
			}
			return nil
		},
	}
}

func newRunCommand(getOptions func() options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one backup of every configured source",
		Long: `Run one backup: create today's folder, then fetch, serialize and upload
every source in turn. A failing source is logged and skipped; the command
still exits 0. It exits non-zero only when the configuration is invalid or
the run folder cannot be created.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, getOptions(), func(ctx context.Context, a *app, log *zap.Logger) error {
				report, err := a.run(ctx)
				pushMetrics(ctx, a.cfg, log)
				if err != nil {
					return err
				}
				logReport(log, report)
				return nil
			})
		},
	}
}

func newScheduleCommand(getOptions func() options) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run backups on the configured cron schedule",
		Long: `Run as a daemon, starting a backup at every activation of schedule.cron.
Overlapping activations are skipped. When schedule.status_addr is set,
/metrics, /healthz and /status are served on that address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, getOptions(), func(ctx context.Context, a *app, log *zap.Logger) error {
				if !a.cfg.Schedule.IsScheduled() {
					return fmt.Errorf("schedule.cron is not configured")
				}

				sched, err := scheduler.New(scheduler.Config{
					Cron:       a.cfg.Schedule.Cron,
					Timezone:   a.cfg.Schedule.Timezone,
					RunOnStart: a.cfg.Schedule.RunOnStart,
				}, func(ctx context.Context) (*backup.Report, error) {
					report, err := a.run(ctx)
					if err == nil {
						logReport(log, report)
					}
					return report, err
				}, log)
				if err != nil {
					return err
				}

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error { return sched.Start(gctx) })
				if addr := a.cfg.Schedule.StatusAddr; addr != "" {
					srv := server.New(addr, sched, log)
					g.Go(func() error { return srv.Run(gctx) })
				}
				return g.Wait()
			})
		},
	}
}

// withApp loads the configuration, sets up logging and tracing, builds the
// app and hands it to fn.
func withApp(ctx context.Context, opts options, fn func(context.Context, *app, *zap.Logger) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Encoding:    cfg.Observability.LogEncoding,
		Development: cfg.Observability.Development,
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("job", cfg.Name))

	tracing := observability.DefaultTracingConfig()
	tracing.Enabled = cfg.Observability.EnableTracing
	tracing.ServiceVersion = version
	if err := observability.InitTracing(tracing); err != nil {
		log.Warn("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.Shutdown(shutdownCtx)
	}()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", zap.Error(err))
		return err
	}
	defer func() { _ = a.Close() }()

	return fn(ctx, a, log)
}

func logReport(log *zap.Logger, report *backup.Report) {
	for _, out := range report.Sources {
		log.Info("source summary",
			zap.String("source", out.Name),
			zap.String("status", string(out.Status)),
			zap.Int("records", out.Records),
			zap.String("stop", out.Stop.String()),
			zap.String("remote_id", out.RemoteID),
			zap.String("error", out.Error))
	}
}

func pushMetrics(ctx context.Context, cfg *config.Config, log *zap.Logger) {
	if cfg.Observability.PushGateway == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := metrics.Push(pushCtx, cfg.Observability.PushGateway, cfg.Name); err != nil {
		log.Warn("failed to push metrics", zap.Error(err))
	}
}
