package netreq

import (
	"math"
	"net/http"
	"testing"
	"time"
)

// TestRetryAfterDelay tests the seconds based Retry-After parsing
func TestRetryAfterDelay(t *testing.T) {
	tests := []struct {
		name   string
		header string
		def    time.Duration
		want   time.Duration
	}{
		{"integer", "30", DefaultRetryAfter, 30 * time.Second},
		{"decimal", "1.5", DefaultRetryAfter, 1500 * time.Millisecond},
		{"missing", "", DefaultRetryAfter, 15 * time.Second},
		{"negative", "-5", DefaultRetryAfter, 0},
		{"garbage", "soon", DefaultRetryAfter, 15 * time.Second},
		{"negative default", "", -time.Second, 0},
		{"overflowing integer", "99999999999", DefaultRetryAfter, time.Duration(math.MaxInt64)},
		{"huge exponent", "1e30", DefaultRetryAfter, time.Duration(math.MaxInt64)},
		{"infinity", "Inf", DefaultRetryAfter, time.Duration(math.MaxInt64)},
		{"negative infinity", "-Inf", DefaultRetryAfter, 0},
		{"nan", "NaN", DefaultRetryAfter, 15 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.header != "" {
				header.Set("Retry-After", tt.header)
			}
			if got := RetryAfterDelay(header, tt.def); got != tt.want {
				t.Errorf("RetryAfterDelay(%q) = %s, want %s", tt.header, got, tt.want)
			}
		})
	}

	if got := RetryAfterDelay(nil, 3*time.Second); got != 3*time.Second {
		t.Errorf("RetryAfterDelay(nil) = %s, want 3s", got)
	}
}

// TestRetryAfterDate tests every accepted format and the lenient fallback
func TestRetryAfterDate(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header string
		want   time.Time
	}{
		{"http date", "Wed, 21 Oct 2026 07:28:00 GMT", time.Date(2026, 10, 21, 7, 28, 0, 0, time.UTC)},
		{"iso8601", "2026-10-18T13:00:00Z", time.Date(2026, 10, 18, 13, 0, 0, 0, time.UTC)},
		{"seconds", "120", now.Add(120 * time.Second)},
		{"garbage", "whenever", now.Add(60 * time.Second)},
		{"overflowing integer", "99999999999", now.Add(time.Duration(math.MaxInt64))},
		{"huge exponent", "1e30", now.Add(time.Duration(math.MaxInt64))},
		{"infinity", "Inf", now.Add(time.Duration(math.MaxInt64))},
		{"negative seconds", "-30", now},
		{"nan", "NaN", now.Add(60 * time.Second)},
		{"missing", "", now.Add(60 * time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.header != "" {
				header.Set("Retry-After", tt.header)
			}
			if got := RetryAfterDate(header, now); !got.Equal(tt.want) {
				t.Errorf("RetryAfterDate(%q) = %s, want %s", tt.header, got, tt.want)
			}
		})
	}
}

// TestErrorRetryAfter tests the helpers on service response errors
func TestErrorRetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")
	e := Classify("https://example.com/", 503, header, nil)

	if got := e.RetryAfterDelay(DefaultRetryAfter); got != 7*time.Second {
		t.Errorf("RetryAfterDelay = %s, want 7s", got)
	}
	now := time.Now()
	if got := e.RetryAfterDate(now); !got.Equal(now.Add(7 * time.Second)) {
		t.Errorf("RetryAfterDate = %s, want now+7s", got)
	}
}
