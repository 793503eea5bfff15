// Package backup sequences one backup run: a dated remote folder is created
// once, then every source is fetched, serialized and transferred in turn.
// A failing source is recorded and skipped; only folder creation failure
// aborts the run.
package backup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-backup/internal/fetch"
	"github.com/ajitpratap0/nebula-backup/pkg/config"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
	"github.com/ajitpratap0/nebula-backup/pkg/logger"
	"github.com/ajitpratap0/nebula-backup/pkg/metrics"
	"github.com/ajitpratap0/nebula-backup/pkg/observability"
	"github.com/ajitpratap0/nebula-backup/pkg/record"
)

// Fetcher extracts one collection
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL, name string) fetch.Result
}

// Serializer writes a store to a local artifact. It returns an error of
// type empty_result for an empty store.
type Serializer interface {
	Serialize(ctx context.Context, store *record.Store, outputName string) (string, error)
}

// Transferer creates folders and moves artifacts to remote storage
type Transferer interface {
	MakeFolder(ctx context.Context, parentID, name string) (string, error)
	Transfer(ctx context.Context, localPath, folderID string) (string, error)
}

// DefaultFolderLayout names run folders by day
const DefaultFolderLayout = "2006-01-02"

// Orchestrator runs backups
type Orchestrator struct {
	fetcher    Fetcher
	serializer Serializer
	transfer   Transferer
	layout     string
	now        func() time.Time
	newRunID   func() string
	logger     *zap.Logger
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithFolderLayout sets the time layout of the run folder name
func WithFolderLayout(layout string) Option {
	return func(o *Orchestrator) {
		if layout != "" {
			o.layout = layout
		}
	}
}

// WithRunIDs replaces the uuid run ID generator
func WithRunIDs(gen func() string) Option {
	return func(o *Orchestrator) { o.newRunID = gen }
}

// New creates an Orchestrator
func New(f Fetcher, s Serializer, t Transferer, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		fetcher:    f,
		serializer: s,
		transfer:   t,
		layout:     DefaultFolderLayout,
		now:        time.Now,
		newRunID:   func() string { return uuid.New().String() },
		logger:     log.With(zap.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run backs up sources into a new folder under rootFolderID. The returned
// error is non-nil only when the run folder could not be created; per-source
// failures are reported in the Report.
func (o *Orchestrator) Run(ctx context.Context, sources []config.SourceConfig, rootFolderID string) (*Report, error) {
	report := &Report{
		RunID:     o.newRunID(),
		StartedAt: o.now(),
	}
	report.Folder = report.StartedAt.Format(o.layout)

	ctx = logger.ContextWithRun(ctx, report.RunID)
	ctx, span := observability.StartSpan(ctx, "backup_run")
	defer span.End()
	span.SetAttribute("run_id", report.RunID)
	span.SetAttribute("sources", len(sources))

	log := logger.FromContext(ctx, o.logger)
	log.Info("backup run started",
		zap.String("folder", report.Folder),
		zap.Int("sources", len(sources)))

	folderID, err := o.transfer.MakeFolder(ctx, rootFolderID, report.Folder)
	if err != nil {
		report.FinishedAt = o.now()
		report.Error = err.Error()
		span.Fail(err)
		o.finish(report, "failed")
		log.Error("failed to create run folder, aborting run",
			zap.String("parent", rootFolderID),
			zap.Error(err))
		return report, err
	}
	report.FolderID = folderID

	for _, src := range sources {
		report.Sources = append(report.Sources, o.runSource(ctx, src, folderID))
	}

	report.FinishedAt = o.now()
	o.finish(report, "completed")
	log.Info("backup run finished",
		zap.Int("uploaded", report.Count(StatusUploaded)),
		zap.Int("no_data", report.Count(StatusNoData)),
		zap.Int("failed", report.Count(StatusFailed)),
		zap.Duration("duration", report.Duration()))
	return report, nil
}

// runSource executes Fetch, Serialize, Transfer for one source. Panics are
// recovered into a failed outcome so the next source still runs.
func (o *Orchestrator) runSource(ctx context.Context, src config.SourceConfig, folderID string) (outcome SourceOutcome) {
	outcome = SourceOutcome{Name: src.Output, URL: src.URL}
	started := o.now()

	ctx = logger.ContextWithSource(ctx, src.Output)
	ctx, span := observability.StartSpan(ctx, "backup_source")
	log := logger.FromContext(ctx, o.logger)

	defer func() {
		if r := recover(); r != nil {
			outcome.fail(errors.Newf(errors.ErrorTypeInternal, "panic: %v", r))
		}
		outcome.Duration = o.now().Sub(started)
		if outcome.Err != nil {
			span.Fail(outcome.Err)
			fields := []zap.Field{
				zap.String("stop", outcome.Stop.String()),
				zap.Int("records", outcome.Records),
				zap.String("error_type", string(outcome.ErrorType)),
				zap.Error(outcome.Err),
			}
			var typed *errors.Error
			if errors.As(outcome.Err, &typed) && len(typed.Details) > 0 {
				fields = append(fields, zap.Any("error_details", typed.Details))
			}
			log.Error("source failed", fields...)
		}
		span.SetAttribute("status", string(outcome.Status))
		span.End()
		metrics.SourceOutcomes.WithLabelValues(src.Output, string(outcome.Status)).Inc()
	}()

	if err := ctx.Err(); err != nil {
		outcome.Stop = fetch.StopCanceled
		outcome.fail(errors.Wrap(err, errors.ErrorTypeTimeout, "run canceled before source started"))
		return outcome
	}

	result := o.fetcher.Fetch(ctx, src.URL, src.Output)
	outcome.Stop = result.Stop
	outcome.Partial = result.Partial()
	outcome.Requests = result.Requests
	outcome.Backoffs = result.Backoffs
	if result.Store != nil {
		outcome.Records = result.Store.Len()
	}

	if outcome.Records == 0 {
		if result.Partial() {
			outcome.fail(fetchError(result))
			return outcome
		}
		outcome.Status = StatusNoData
		log.Info("no data collected, skipping upload")
		return outcome
	}
	if result.Partial() {
		log.Warn("uploading partial extraction",
			zap.String("stop", result.Stop.String()),
			zap.Int("records", outcome.Records),
			zap.Error(result.Err))
	}

	path, err := o.serializer.Serialize(ctx, result.Store, src.Output)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeEmptyResult) {
			outcome.Status = StatusNoData
			return outcome
		}
		outcome.fail(err)
		return outcome
	}
	outcome.LocalPath = path

	remoteID, err := o.transfer.Transfer(ctx, path, folderID)
	if err != nil {
		outcome.fail(err)
		return outcome
	}
	outcome.RemoteID = remoteID
	outcome.LocalPath = ""
	outcome.Status = StatusUploaded

	if result.Partial() {
		outcome.Error = fetchError(result).Error()
	}
	return outcome
}

func (o *Orchestrator) finish(report *Report, status string) {
	metrics.Runs.WithLabelValues(status).Inc()
	metrics.RunDuration.Observe(report.Duration().Seconds())
	metrics.LastRunTimestamp.Set(float64(report.FinishedAt.Unix()))
}

func fetchError(result fetch.Result) error {
	if result.Err != nil {
		return result.Err
	}
	return errors.Newf(errors.ErrorTypeData, "fetch stopped: %s", result.Stop)
}
