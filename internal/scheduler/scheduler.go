// Package scheduler triggers backup runs from a cron expression. Runs never
// overlap: a trigger that fires while a run is in progress is skipped.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-backup/internal/backup"
	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

// RunFunc executes one backup run
type RunFunc func(ctx context.Context) (*backup.Report, error)

// Config configures a Scheduler
type Config struct {
	// Cron is a standard 5-field expression or a descriptor such as @daily
	Cron string
	// Timezone is an IANA zone; empty means the local zone
	Timezone string
	// RunOnStart triggers a run as soon as Start is called
	RunOnStart bool
}

// Status is a snapshot of the scheduler for the status endpoint
type Status struct {
	Schedule   string         `json:"schedule"`
	Running    bool           `json:"running"`
	NextRun    time.Time      `json:"next_run,omitempty"`
	Runs       int            `json:"runs"`
	Skipped    int            `json:"skipped"`
	LastReport *backup.Report `json:"last_report,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
}

// Scheduler runs a RunFunc on a cron schedule
type Scheduler struct {
	cfg    Config
	cron   *cron.Cron
	entry  cron.EntryID
	run    RunFunc
	logger *zap.Logger

	// running is held for the duration of a run
	running sync.Mutex

	mu         sync.Mutex
	baseCtx    context.Context
	active     bool
	runs       int
	skipped    int
	lastReport *backup.Report
	lastErr    error
}

// New parses the schedule and creates a Scheduler. It does not start it.
func New(cfg Config, run RunFunc, log *zap.Logger) (*Scheduler, error) {
	if cfg.Cron == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "schedule.cron is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid schedule.timezone")
		}
		loc = l
	}

	s := &Scheduler{
		cfg:     cfg,
		run:     run,
		logger:  log.With(zap.String("component", "scheduler")),
		baseCtx: context.Background(),
	}

	adapter := cronLogger{s.logger.Sugar()}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	entry, err := s.cron.AddFunc(cfg.Cron, s.trigger)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid schedule.cron").
			WithDetail("cron", cfg.Cron)
	}
	s.entry = entry
	return s, nil
}

// Start runs the scheduler until ctx is canceled, then waits for an
// in-progress run to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("cron", s.cfg.Cron),
		zap.Time("next_run", s.Next()))

	if s.cfg.RunOnStart {
		go s.trigger()
	}

	<-ctx.Done()
	s.logger.Info("scheduler stopping")
	<-s.cron.Stop().Done()

	// RunOnStart is not tracked by cron; wait for it as well.
	s.running.Lock()
	defer s.running.Unlock()
	return nil
}

// RunNow executes a run synchronously. ran is false when another run is
// already in progress and nothing was done.
func (s *Scheduler) RunNow(ctx context.Context) (report *backup.Report, ran bool, err error) {
	if !s.running.TryLock() {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.logger.Warn("run already in progress, skipping trigger")
		return nil, false, nil
	}
	defer s.running.Unlock()

	s.mu.Lock()
	s.active = true
	s.mu.Unlock()

	report, err = s.run(ctx)

	s.mu.Lock()
	s.active = false
	s.runs++
	if report != nil {
		s.lastReport = report
	}
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	} else {
		s.logger.Info("scheduled run finished", zap.Time("next_run", s.Next()))
	}
	return report, true, err
}

func (s *Scheduler) trigger() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	_, _, _ = s.RunNow(ctx)
}

// Next returns the next activation time, or zero before Start
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Status returns a snapshot of the scheduler state
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Schedule:   s.cfg.Cron,
		Running:    s.active,
		NextRun:    s.Next(),
		Runs:       s.runs,
		Skipped:    s.skipped,
		LastReport: s.lastReport,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
