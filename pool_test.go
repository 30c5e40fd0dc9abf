package netreq

import (
	"math/rand"
	"sync"
	"testing"
	"time"
)

func newTestPool(size int, clock *fakeClock) (*Pool, *countingFactory) {
	f := &countingFactory{}
	return NewPool("test", size, 5*time.Minute, clock.Now, f.build, nil), f
}

// checkPoolInvariants verifies the idle set respects size and validity
func checkPoolInvariants(t *testing.T, p *Pool) {
	t.Helper()
	p.lk.Lock()
	defer p.lk.Unlock()

	if len(p.idle) > p.maxSize {
		t.Fatalf("idle count %d exceeds max size %d", len(p.idle), p.maxSize)
	}
	now := p.now()
	for _, c := range p.idle {
		if p.isStale(c, now) {
			t.Fatalf("stale connection %s found in idle set", c.ID)
		}
		if !p.invalidatedAt.IsZero() && c.CreatedAt.Before(p.invalidatedAt) {
			t.Fatalf("connection %s created before last invalidation found in idle set", c.ID)
		}
	}
}

// TestPoolReuse checks a released connection is handed out again
func TestPoolReuse(t *testing.T) {
	clock := newFakeClock()
	p, f := newTestPool(4, clock)

	c1 := p.Borrow()
	p.Release(c1)
	if p.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", p.Len())
	}

	clock.Advance(time.Minute)
	c2 := p.Borrow()
	if c2 != c1 {
		t.Errorf("Borrow() returned a new connection, want the idle one")
	}
	if n := f.n.Load(); n != 1 {
		t.Errorf("factory called %d times, want 1", n)
	}

	// a second borrower while the first is out gets its own connection
	c3 := p.Borrow()
	if c3 == c2 {
		t.Errorf("two borrowers share a connection")
	}
}

// TestPoolMaxAge covers a connection outliving the max age while borrowed
func TestPoolMaxAge(t *testing.T) {
	clock := newFakeClock()
	p, f := newTestPool(4, clock)

	c := p.Borrow()
	clock.Advance(10 * time.Minute)
	p.Release(c)
	if p.Len() != 0 {
		t.Errorf("expired connection was pooled, Len() = %d", p.Len())
	}

	c2 := p.Borrow()
	if c2 == c {
		t.Errorf("expired connection handed out again")
	}
	if n := f.n.Load(); n != 2 {
		t.Errorf("factory called %d times, want 2", n)
	}
}

// TestPoolExpiresIdle covers a connection expiring while idle
func TestPoolExpiresIdle(t *testing.T) {
	clock := newFakeClock()
	p, _ := newTestPool(4, clock)

	c := p.Borrow()
	p.Release(c)
	clock.Advance(5*time.Minute + time.Second)

	if got := p.Borrow(); got == c {
		t.Errorf("idle connection older than max age handed out")
	}
	checkPoolInvariants(t, p)
}

// TestPoolInvalidate tests lazy discard after an invalidation event
func TestPoolInvalidate(t *testing.T) {
	clock := newFakeClock()
	p, _ := newTestPool(4, clock)

	a, b := p.Borrow(), p.Borrow()
	p.Release(a)
	p.Release(b)
	out := p.Borrow() // still out during invalidation

	clock.Advance(time.Second)
	p.Invalidate()
	p.Invalidate()
	if p.Len() != 1 {
		t.Errorf("Invalidate changed the idle set eagerly, Len() = %d", p.Len())
	}
	if !p.LastInvalidation().Equal(clock.Now()) {
		t.Errorf("LastInvalidation() = %s, want %s", p.LastInvalidation(), clock.Now())
	}

	clock.Advance(time.Second)
	c := p.Borrow()
	if c == a || c == b {
		t.Errorf("connection created before invalidation handed out")
	}
	if p.Len() != 0 {
		t.Errorf("stale idle connections kept after Borrow, Len() = %d", p.Len())
	}

	p.Release(out)
	if p.Len() != 0 {
		t.Errorf("connection borrowed before invalidation was pooled")
	}
	p.Release(c)
	if p.Len() != 1 {
		t.Errorf("fresh connection not pooled, Len() = %d", p.Len())
	}
	checkPoolInvariants(t, p)
}

// TestPoolMaxSize checks the idle set never grows past the pool size
func TestPoolMaxSize(t *testing.T) {
	clock := newFakeClock()
	p, _ := newTestPool(2, clock)

	var conns []*Conn
	for i := 0; i < 5; i++ {
		conns = append(conns, p.Borrow())
	}
	for _, c := range conns {
		p.Release(c)
		checkPoolInvariants(t, p)
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}

	p.Close()
	if p.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", p.Len())
	}
}

// TestPoolRandomSequence runs random operations and checks invariants
func TestPoolRandomSequence(t *testing.T) {
	clock := newFakeClock()
	p, _ := newTestPool(3, clock)
	rnd := rand.New(rand.NewSource(42))

	var out []*Conn
	for i := 0; i < 2000; i++ {
		switch rnd.Intn(5) {
		case 0, 1:
			out = append(out, p.Borrow())
			checkPoolInvariants(t, p)
		case 2, 3:
			if len(out) == 0 {
				continue
			}
			n := rnd.Intn(len(out))
			c := out[n]
			out = append(out[:n], out[n+1:]...)
			p.Release(c)
			checkPoolInvariants(t, p)
		case 4:
			if rnd.Intn(4) == 0 {
				p.Invalidate()
			}
			clock.Advance(time.Duration(rnd.Intn(120)) * time.Second)
		}
	}
}

// TestPoolConcurrent hammers the pool from many goroutines
func TestPoolConcurrent(t *testing.T) {
	p := NewPool("test", 4, time.Minute, nil, (&countingFactory{}).build, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c := p.Borrow()
				if j%50 == 0 {
					p.Invalidate()
				}
				p.Release(c)
			}
		}()
	}
	wg.Wait()
	checkPoolInvariants(t, p)
}
