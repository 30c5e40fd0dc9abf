package netreq

import (
	"log/slog"
	"net/http"
	"time"
)

type config struct {
	poolSize       int
	maxAge         time.Duration
	now            func() time.Time
	logger         *slog.Logger
	bus            *Bus
	outage         OutageDetector
	expiry         AppExpiry
	account        AccountState
	transport      *http.Transport
	timeout        time.Duration
	userAgent      string
	stallTimeout   time.Duration
	stallThreshold int64
	factory        ConnFactory
	circumvent     func(*http.Transport)
}

// Option configures a Dispatcher.
type Option func(*config)

func defaultConfig() config {
	return config{
		poolSize:       DefaultPoolSize,
		maxAge:         DefaultMaxAge,
		now:            time.Now,
		timeout:        DefaultTimeout,
		stallTimeout:   DefaultStallTimeout,
		stallThreshold: DefaultStallThreshold,
	}
}

// WithPoolSize sets the number of idle connections kept by each pool.
func WithPoolSize(n int) Option {
	return func(c *config) { c.poolSize = n }
}

// WithConstrainedContext shrinks the pools for memory constrained hosts,
// such as a notification service extension.
func WithConstrainedContext() Option {
	return func(c *config) { c.poolSize = ConstrainedPoolSize }
}

// WithMaxAge sets how long a connection may be reused after creation.
func WithMaxAge(d time.Duration) Option {
	return func(c *config) { c.maxAge = d }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithBus sets the bus invalidation events are read from. Default is
// DefaultBus.
func WithBus(b *Bus) Option {
	return func(c *config) { c.bus = b }
}

// WithOutageDetector sets the collaborator receiving connection health.
func WithOutageDetector(o OutageDetector) Option {
	return func(c *config) { c.outage = o }
}

// WithAppExpiry sets the collaborator told about StatusAppExpired.
func WithAppExpiry(e AppExpiry) Option {
	return func(c *config) { c.expiry = e }
}

// WithAccountState sets the collaborator persisting deregistration.
func WithAccountState(a AccountState) Option {
	return func(c *config) { c.account = a }
}

// WithTransport sets the transport template cloned by new connections.
// Default is DefaultTransport.
func WithTransport(t *http.Transport) Option {
	return func(c *config) { c.transport = t }
}

// WithTimeout sets the total timeout of one exchange. 0 disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithStallTimeout aborts a response body when less than threshold bytes
// arrive during any period d. A zero d disables stall detection.
func WithStallTimeout(d time.Duration, threshold int64) Option {
	return func(c *config) {
		c.stallTimeout = d
		c.stallThreshold = threshold
	}
}

// WithConnFactory replaces the way connection clients are built. The
// transport, timeout and user agent options are ignored when it is set.
func WithConnFactory(f ConnFactory) Option {
	return func(c *config) { c.factory = f }
}

// WithCircumvention sets how transports are adjusted while censorship
// circumvention is enabled.
func WithCircumvention(fn func(*http.Transport)) Option {
	return func(c *config) { c.circumvent = fn }
}
