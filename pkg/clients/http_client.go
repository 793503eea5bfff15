// Package clients provides the HTTP client used against the source API
package clients

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/nebula-backup/pkg/metrics"
)

// DefaultUserAgent is sent when no User-Agent is configured
const DefaultUserAgent = "nebula-backup/1.0"

// HTTPClient wraps an http.Client with bearer authentication, a request
// throttle and request metrics.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport

	totalRequests  int64
	failedRequests int64

	throttle *Throttle
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Token is sent as a bearer credential on every request when set
	Token string `json:"-"`

	// UserAgent overrides DefaultUserAgent
	UserAgent string `json:"user_agent"`

	// Connection settings
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`

	// HTTP/2 settings
	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts
	DialTimeout         time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `json:"tls_handshake_timeout"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	KeepAlive           time.Duration `json:"keep_alive"`

	// TLS settings
	TLSMinVersion uint16 `json:"tls_min_version"`

	// Client-side request rate; 0 leaves only server-requested pauses
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`
}

// DefaultHTTPConfig returns the default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		UserAgent:           DefaultUserAgent,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		EnableHTTP2:         true,
		DialTimeout:         30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		RequestTimeout:      30 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSMinVersion:       tls.VersionTLS12,
	}
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger, throttleOpts ...ThrottleOption) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config: config,
		logger: logger.With(zap.String("component", "http_client")),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: config.TLSMinVersion,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	var rt http.RoundTripper = client.transport
	if config.Token != "" {
		rt = BearerTransport(rt, config.Token)
	}

	client.httpClient = &http.Client{
		Transport: rt,
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	client.throttle = NewThrottle(config.RateLimit, config.RateBurst, throttleOpts...)

	return client
}

// Do performs an HTTP request. The response status is not interpreted.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.throttle.Wait(req.Context()); err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, fmt.Errorf("throttle wait: %w", err)
	}

	if req.Header.Get("User-Agent") == "" {
		ua := c.config.UserAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		req.Header.Set("User-Agent", ua)
	}

	atomic.AddInt64(&c.totalRequests, 1)
	timer := metrics.NewTimer("http_request")

	resp, err := c.httpClient.Do(req)

	metrics.APIRequestLatency.WithLabelValues(req.URL.Host).Observe(timer.Stop().Seconds())

	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, err
	}

	c.logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.String("status", strconv.Itoa(resp.StatusCode)))

	return resp, nil
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	total := atomic.LoadInt64(&c.totalRequests)
	failed := atomic.LoadInt64(&c.failedRequests)

	stats := HTTPStats{
		TotalRequests:  total,
		FailedRequests: failed,
	}
	if total > 0 {
		stats.SuccessRate = float64(total-failed) / float64(total) * 100
	}
	stats.Throttle = c.throttle.Stats()
	return stats
}

// Pause holds subsequent requests for d. The fetcher calls it with the
// Retry-After of a 429 so every request through this client honors it.
func (c *HTTPClient) Pause(d time.Duration) {
	c.throttle.Pause(d)
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64         `json:"total_requests"`
	FailedRequests int64         `json:"failed_requests"`
	SuccessRate    float64       `json:"success_rate"`
	Throttle       ThrottleStats `json:"throttle"`
}
