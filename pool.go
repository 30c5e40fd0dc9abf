package netreq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// DefaultMaxAge is how long a connection may be reused after creation
	DefaultMaxAge = 5 * time.Minute

	// DefaultPoolSize is the number of idle connections kept per pool
	DefaultPoolSize = 12

	// ConstrainedPoolSize replaces DefaultPoolSize in memory constrained
	// host processes
	ConstrainedPoolSize = 2
)

// Pool keeps idle connections for reuse. Connections older than maxAge or
// created before the last invalidation are never handed out again and are
// dropped the next time the pool is touched.
//
// A Pool is safe for concurrent use.
type Pool struct {
	name    string
	maxSize int
	maxAge  time.Duration
	now     func() time.Time
	factory ConnFactory
	logger  *slog.Logger

	lk            sync.Mutex
	idle          []*Conn
	generation    uint64
	invalidatedAt time.Time
}

// NewPool returns an empty pool. now may be nil to use time.Now.
func NewPool(name string, maxSize int, maxAge time.Duration, now func() time.Time, factory ConnFactory, logger *slog.Logger) *Pool {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxSize < 0 {
		maxSize = 0
	}
	return &Pool{
		name:    name,
		maxSize: maxSize,
		maxAge:  maxAge,
		now:     now,
		factory: factory,
		logger:  logger,
	}
}

// isStale must be called with lk held.
func (p *Pool) isStale(c *Conn, now time.Time) bool {
	if c.generation != p.generation {
		return true
	}
	return now.Sub(c.CreatedAt) > p.maxAge
}

// prune drops stale idle connections. Must be called with lk held.
func (p *Pool) prune(now time.Time) {
	kept := p.idle[:0]
	for _, c := range p.idle {
		if p.isStale(c, now) {
			p.discard(c, "stale")
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(p.idle); i++ {
		p.idle[i] = nil
	}
	p.idle = kept
}

func (p *Pool) discard(c *Conn, reason string) {
	if Debug {
		p.logger.Debug("discarding pooled connection", "event", "netreq:pool_discard", "netreq:pool", p.name, "netreq:conn", c.ID.String(), "netreq:reason", reason)
	}
	c.close()
}

// Borrow returns an idle connection, or a new one if none is usable. It
// never fails. The caller owns the connection until it calls Release.
func (p *Pool) Borrow() *Conn {
	p.lk.Lock()
	now := p.now()
	p.prune(now)
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.lk.Unlock()
		return c
	}
	gen := p.generation
	p.lk.Unlock()

	c := &Conn{
		ID:         uuid.New(),
		CreatedAt:  now,
		Client:     p.factory(),
		generation: gen,
	}
	if Debug {
		p.logger.DebugContext(context.Background(), "created connection", "event", "netreq:pool_create", "netreq:pool", p.name, "netreq:conn", c.ID.String())
	}
	return c
}

// Release gives a borrowed connection back. Expired or invalidated
// connections, and any connection beyond the pool size, are discarded.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}
	p.lk.Lock()
	defer p.lk.Unlock()

	now := p.now()
	p.prune(now)
	switch {
	case p.isStale(c, now):
		p.discard(c, "stale")
	case len(p.idle) >= p.maxSize:
		p.discard(c, "full")
	default:
		p.idle = append(p.idle, c)
	}
}

// Invalidate makes every connection created so far ineligible for reuse.
// Idle connections are dropped lazily by the next Borrow or Release.
func (p *Pool) Invalidate() {
	p.lk.Lock()
	defer p.lk.Unlock()

	p.generation += 1
	p.invalidatedAt = p.now()
}

// LastInvalidation returns the time of the last Invalidate call, or the
// zero time.
func (p *Pool) LastInvalidation() time.Time {
	p.lk.Lock()
	defer p.lk.Unlock()
	return p.invalidatedAt
}

// Len returns the number of idle connections currently held.
func (p *Pool) Len() int {
	p.lk.Lock()
	defer p.lk.Unlock()
	return len(p.idle)
}

// Close discards every idle connection.
func (p *Pool) Close() {
	p.lk.Lock()
	defer p.lk.Unlock()

	for i, c := range p.idle {
		p.discard(c, "closed")
		p.idle[i] = nil
	}
	p.idle = nil
}
