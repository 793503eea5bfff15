package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHTTPClient_BearerAndUserAgent(t *testing.T) {
	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.Token = "s3cret"
	client := NewHTTPClient(cfg, zaptest.NewLogger(t))
	defer client.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, DefaultUserAgent, gotUA)

	stats := client.GetStats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(0), stats.FailedRequests)
	assert.Equal(t, 100.0, stats.SuccessRate)
}

func TestHTTPClient_NoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := NewHTTPClient(nil, nil)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, gotAuth)
}

func TestHTTPClient_TransportFailureCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(DefaultHTTPConfig(), zaptest.NewLogger(t))
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	_, err := client.Do(req)
	require.Error(t, err)
	assert.Equal(t, int64(1), client.GetStats().FailedRequests)
}

// fakeClock advances only when the throttle sleeps
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) option() ThrottleOption { return WithThrottleClock(c.Now, c.Sleep) }

func TestThrottle_BurstThenSteadyRate(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottle(2, 3, clock.option())

	for i := 0; i < 3; i++ {
		require.NoError(t, th.Wait(context.Background()))
	}
	assert.Empty(t, clock.sleeps)

	require.NoError(t, th.Wait(context.Background()))
	require.NoError(t, th.Wait(context.Background()))
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, clock.sleeps)

	stats := th.Stats()
	assert.Equal(t, 2.0, stats.Rate)
	assert.Equal(t, 3, stats.Burst)
	assert.Equal(t, int64(2), stats.Waits)
	assert.Equal(t, time.Second, stats.TotalWait)
}

func TestThrottle_PauseDrainsBucket(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottle(1, 5, clock.option())

	th.Pause(10 * time.Second)
	assert.Equal(t, clock.now.Add(10*time.Second), th.Stats().PausedUntil)

	require.NoError(t, th.Wait(context.Background()))
	require.NoError(t, th.Wait(context.Background()))

	// The first request waits out the pause, the second gets no burst.
	assert.Equal(t, []time.Duration{10 * time.Second, time.Second}, clock.sleeps)
}

func TestThrottle_PauseWithoutRate(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottle(0, 0, clock.option())

	require.NoError(t, th.Wait(context.Background()))
	th.Pause(3 * time.Second)
	require.NoError(t, th.Wait(context.Background()))
	require.NoError(t, th.Wait(context.Background()))

	assert.Equal(t, []time.Duration{3 * time.Second}, clock.sleeps)
	assert.Equal(t, 0.0, th.Stats().Rate)
	assert.True(t, th.Stats().PausedUntil.IsZero())
}

func TestThrottle_ShorterPauseDoesNotShorten(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottle(0, 0, clock.option())

	th.Pause(5 * time.Second)
	th.Pause(time.Second)
	require.NoError(t, th.Wait(context.Background()))

	assert.Equal(t, []time.Duration{5 * time.Second}, clock.sleeps)
}

func TestThrottle_WaitHonorsContext(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottle(0, 0, clock.option())
	th.Pause(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, th.Wait(ctx), context.Canceled)
}

func TestHTTPClient_PauseHoldsRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	clock := newFakeClock()
	client := NewHTTPClient(DefaultHTTPConfig(), zaptest.NewLogger(t), clock.option())
	defer client.Close()

	client.Pause(2 * time.Second)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.sleeps)
	assert.Equal(t, int64(1), client.GetStats().Throttle.Waits)
}
