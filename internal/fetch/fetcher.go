// Package fetch implements the cursor-paginated extraction of one collection.
//
// A Fetcher walks a collection endpoint page by page, sending
// GET {url}?cursor={n} and advancing the cursor by a fixed page size. The
// only recoverable condition is a 429, which is waited out and retried on the
// same cursor. Every other failure ends pagination early; Fetch then returns
// what was collected together with the reason it stopped.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
	"github.com/ajitpratap0/nebula-backup/pkg/logger"
	"github.com/ajitpratap0/nebula-backup/pkg/metrics"
	"github.com/ajitpratap0/nebula-backup/pkg/observability"
	"github.com/ajitpratap0/nebula-backup/pkg/record"
)

// maxBodySize bounds a single page body
const maxBodySize = 64 << 20

// Doer sends HTTP requests. *http.Client and *clients.HTTPClient satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Pauser is implemented by clients that throttle their own requests. The
// fetcher hands them every Retry-After it waits out.
type Pauser interface {
	Pause(d time.Duration)
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper sleeps on a real timer
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
})

// Options configures pagination
type Options struct {
	// PageSize is the fixed cursor stride
	PageSize int
	// PolitenessDelay is slept after every accumulated page
	PolitenessDelay time.Duration
	// DefaultRetryAfter is used when a 429 has no usable Retry-After
	DefaultRetryAfter time.Duration
	// MaxRateLimitRetries caps consecutive 429s on one cursor; 0 is unlimited
	MaxRateLimitRetries int
}

// DefaultOptions returns the options of the production API
func DefaultOptions() Options {
	return Options{
		PageSize:          100,
		PolitenessDelay:   time.Second,
		DefaultRetryAfter: 5 * time.Second,
	}
}

// Result is the outcome of one Fetch. Store always holds every record
// accumulated before Stop, even when Stop is not StopExhausted.
type Result struct {
	Store *record.Store
	Stop  StopReason
	// Err describes the early stop; nil for StopExhausted
	Err error
	// Requests counts GETs issued, including rate-limited ones
	Requests int
	// Backoffs counts 429 waits
	Backoffs int
	// LastCursor is the cursor of the final request
	LastCursor int
}

// Partial reports whether pagination ended before the collection was exhausted
func (r *Result) Partial() bool {
	return r.Stop.Partial()
}

// Fetcher extracts collections from a cursor-paginated API.
type Fetcher struct {
	client  Doer
	opts    Options
	sleeper Sleeper
	now     func() time.Time
	logger  *zap.Logger
}

// Option customizes a Fetcher
type Option func(*Fetcher)

// WithSleeper replaces the timer-based sleeper
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) { f.sleeper = s }
}

// WithClock replaces time.Now, used for HTTP-date Retry-After values
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// New creates a Fetcher. Authentication is the client's concern.
func New(client Doer, opts Options, log *zap.Logger, options ...Option) *Fetcher {
	defaults := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = defaults.PageSize
	}
	if opts.DefaultRetryAfter <= 0 {
		opts.DefaultRetryAfter = defaults.DefaultRetryAfter
	}
	if opts.PolitenessDelay < 0 {
		opts.PolitenessDelay = 0
	}
	if log == nil {
		log = zap.NewNop()
	}

	f := &Fetcher{
		client:  client,
		opts:    opts,
		sleeper: TimerSleeper,
		now:     time.Now,
		logger:  log.With(zap.String("component", "fetcher")),
	}
	for _, o := range options {
		o(f)
	}
	return f
}

// fetchRun is the state of one Fetch invocation
type fetchRun struct {
	f      *Fetcher
	base   *url.URL
	name   string
	logger *zap.Logger
	result Result

	cursor  int
	retries int
	wait    time.Duration
	page    *page
}

// Fetch pages through sourceURL into a store named name. It never returns
// an error; early termination is reported through Result.Stop and Result.Err.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL, name string) Result {
	ctx, span := observability.StartSpan(ctx, "fetch")
	defer span.End()

	r := &fetchRun{
		f:      f,
		name:   name,
		logger: logger.FromContext(ctx, f.logger),
		result: Result{Store: record.NewStore(name)},
	}

	base, err := url.Parse(sourceURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		if err == nil {
			err = fmt.Errorf("missing scheme or host")
		}
		r.stop(StopTransportFailure, errors.Wrap(err, errors.ErrorTypeConfig, "invalid source URL"))
	} else {
		r.base = base
		r.loop(ctx)
	}

	span.SetAttribute("source", name)
	span.SetAttribute("records", r.result.Store.Len())
	span.SetAttribute("requests", r.result.Requests)
	span.SetAttribute("stop", r.result.Stop.String())
	span.Fail(r.result.Err)

	metrics.FetchStops.WithLabelValues(name, r.result.Stop.String()).Inc()
	return r.result
}

func (r *fetchRun) loop(ctx context.Context) {
	state := StateRequesting
	for state != StateDone {
		switch state {
		case StateRequesting:
			state = r.request(ctx)
		case StateBackoff:
			state = r.backoff(ctx)
		case StateAccumulating:
			state = r.accumulate(ctx)
		}
	}
}

// stop records the terminal reason and logs it
func (r *fetchRun) stop(reason StopReason, err error) State {
	r.result.Stop = reason
	r.result.Err = err

	fields := []zap.Field{
		zap.String("stop", reason.String()),
		zap.Int("cursor", r.cursor),
		zap.Int("total", r.result.Store.Len()),
	}
	if reason == StopExhausted {
		r.logger.Info("no data remaining, fetch finished", fields...)
	} else {
		r.logger.Warn("fetch stopped early", append(fields, zap.Error(err))...)
	}
	return StateDone
}

// canceled ends the loop after ctx was canceled or a sleep was interrupted
func (r *fetchRun) canceled(err error) State {
	return r.stop(StopCanceled, errors.Wrap(err, errors.ErrorTypeTimeout, "fetch canceled"))
}

// request issues the GET for the current cursor and classifies the response
func (r *fetchRun) request(ctx context.Context) State {
	if err := ctx.Err(); err != nil {
		return r.canceled(err)
	}

	req, err := r.newRequest(ctx)
	if err != nil {
		return r.stop(StopTransportFailure, errors.Wrap(err, errors.ErrorTypeConnection, "failed to build request"))
	}

	r.result.Requests++
	r.result.LastCursor = r.cursor
	r.logger.Info("fetching page", zap.Int("cursor", r.cursor))

	resp, err := r.f.client.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(r.name, "error").Inc()
		if ctx.Err() != nil {
			return r.canceled(ctx.Err())
		}
		return r.stop(StopTransportFailure, errors.Wrap(err, errors.ErrorTypeConnection, "request failed"))
	}
	defer resp.Body.Close()

	metrics.APIRequests.WithLabelValues(r.name, strconv.Itoa(resp.StatusCode)).Inc()
	r.logger.Debug("response received", zap.Int("status", resp.StatusCode), zap.Int("cursor", r.cursor))

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		r.retries++
		if limit := r.f.opts.MaxRateLimitRetries; limit > 0 && r.retries > limit {
			return r.stop(StopRetryBudgetExhausted, errors.Newf(errors.ErrorTypeRateLimit,
				"rate limited %d times on cursor %d", r.retries, r.cursor))
		}
		r.wait = parseRetryAfter(resp.Header.Get("Retry-After"), r.f.now(), r.f.opts.DefaultRetryAfter)
		if p, ok := r.f.client.(Pauser); ok {
			p.Pause(r.wait)
		}
		return StateBackoff
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return r.stop(StopUnexpectedStatus, errors.Newf(errors.ErrorTypeConnection,
			"unexpected status %d", resp.StatusCode).
			WithDetail("status", resp.StatusCode).
			WithDetail("body", string(snippet)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return r.canceled(ctx.Err())
		}
		return r.stop(StopTransportFailure, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body"))
	}

	p, err := decodePage(body)
	if err != nil {
		return r.stop(StopMalformedResponse, err)
	}

	r.retries = 0
	if p.last() {
		return r.stop(StopExhausted, nil)
	}

	r.page = p
	return StateAccumulating
}

// backoff waits out a rate-limit response; the cursor is unchanged
func (r *fetchRun) backoff(ctx context.Context) State {
	r.result.Backoffs++
	metrics.RateLimitBackoffs.WithLabelValues(r.name).Inc()
	r.logger.Warn("rate limited, backing off",
		zap.Duration("retry_after", r.wait),
		zap.Int("cursor", r.cursor),
		zap.Int("attempt", r.retries))

	if err := r.f.sleeper.Sleep(ctx, r.wait); err != nil {
		return r.canceled(err)
	}
	return StateRequesting
}

// accumulate appends the page, advances the cursor and sleeps politely
func (r *fetchRun) accumulate(ctx context.Context) State {
	r.result.Store.Append(r.page.records...)
	metrics.RecordsFetched.WithLabelValues(r.name).Add(float64(len(r.page.records)))
	r.logger.Info("records added",
		zap.Int("records", len(r.page.records)),
		zap.Int("total", r.result.Store.Len()))

	r.page = nil
	r.cursor += r.f.opts.PageSize

	if err := r.f.sleeper.Sleep(ctx, r.f.opts.PolitenessDelay); err != nil {
		return r.canceled(err)
	}
	return StateRequesting
}

func (r *fetchRun) newRequest(ctx context.Context) (*http.Request, error) {
	u := *r.base
	q := u.Query()
	q.Set("cursor", strconv.Itoa(r.cursor))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
