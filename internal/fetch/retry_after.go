package fetch

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// parseRetryAfter reads a Retry-After value as delta-seconds or an HTTP-date.
// Any other value, fractional seconds included, yields def.
func parseRetryAfter(value string, now time.Time, def time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return def
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}

	return def
}
