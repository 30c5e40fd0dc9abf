package netreq

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/KarpelesLab/typutil"
)

var (
	// DefaultRetryAfter is used when a response carries no usable Retry-After
	DefaultRetryAfter = 15 * time.Second

	// FallbackRetryAfter is how far in the future RetryAfterDate points when
	// the header cannot be parsed at all
	FallbackRetryAfter = 60 * time.Second
)

// maxRetryAfterSeconds is the largest number of seconds representable as a
// time.Duration.
const maxRetryAfterSeconds = float64(math.MaxInt64 / int64(time.Second))

// retryAfterSeconds parses a Retry-After value expressed in seconds, either
// integer or decimal. NaN is not a value.
func retryAfterSeconds(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, ok := typutil.AsFloat(v)
	if !ok || math.IsNaN(secs) {
		return 0, false
	}
	return secs, true
}

// secondsDuration converts secs to a duration, clamped to [0, MaxInt64ns].
// Huge values saturate instead of wrapping around.
func secondsDuration(secs float64) time.Duration {
	switch {
	case secs <= 0:
		return 0
	case secs >= maxRetryAfterSeconds:
		return time.Duration(math.MaxInt64)
	default:
		return time.Duration(secs * float64(time.Second))
	}
}

// RetryAfterDelay returns the delay requested by the Retry-After header in
// seconds, or def if the header is missing or not numeric. The result is
// never negative.
func RetryAfterDelay(header http.Header, def time.Duration) time.Duration {
	d := def
	if header != nil {
		if secs, ok := retryAfterSeconds(header.Get("Retry-After")); ok {
			d = secondsDuration(secs)
		}
	}
	if d < 0 {
		return 0
	}
	return d
}

// RetryAfterDate returns the time the Retry-After header asks to wait until.
// The header may be an HTTP-date, an ISO-8601 timestamp or a number of
// seconds. When it cannot be parsed the result is now+FallbackRetryAfter
// rather than an error, so a malformed header never blocks retry logic.
func RetryAfterDate(header http.Header, now time.Time) time.Time {
	var v string
	if header != nil {
		v = strings.TrimSpace(header.Get("Retry-After"))
	}
	if v != "" {
		if t, err := http.ParseTime(v); err == nil {
			return t
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05Z0700"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
		if secs, ok := retryAfterSeconds(v); ok {
			return now.Add(secondsDuration(secs))
		}
	}
	return now.Add(FallbackRetryAfter)
}
