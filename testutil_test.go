package netreq

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	lk  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.now = c.now.Add(d)
}

// countingFactory builds independent clients and counts them.
type countingFactory struct {
	n atomic.Int32
}

func (f *countingFactory) build() *http.Client {
	f.n.Add(1)
	return &http.Client{Transport: &http.Transport{}}
}

type countingOutage struct {
	failures  atomic.Int32
	successes atomic.Int32
}

func (o *countingOutage) ReportConnectionFailure() { o.failures.Add(1) }
func (o *countingOutage) ReportConnectionSuccess() { o.successes.Add(1) }

type countingExpiry struct {
	n atomic.Int32
}

func (e *countingExpiry) SetExpired() { e.n.Add(1) }

type recordingAccount struct {
	lk    sync.Mutex
	calls []bool
}

func (a *recordingAccount) SetDeregistered(v bool) {
	a.lk.Lock()
	defer a.lk.Unlock()
	a.calls = append(a.calls, v)
}

func (a *recordingAccount) Calls() []bool {
	a.lk.Lock()
	defer a.lk.Unlock()
	return append([]bool(nil), a.calls...)
}

// newTestDispatcher returns a dispatcher on a private bus, closed when the
// test ends.
func newTestDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d := NewDispatcher(append([]Option{WithBus(NewBus())}, opts...)...)
	t.Cleanup(func() { d.Close() })
	return d
}

// closeCountingTransport counts CloseIdleConnections calls.
type closeCountingTransport struct {
	*http.Transport
	closes atomic.Int32
}

func (c *closeCountingTransport) CloseIdleConnections() {
	c.closes.Add(1)
	c.Transport.CloseIdleConnections()
}

type panickingAccount struct{}

func (panickingAccount) SetDeregistered(bool) { panic("account store unavailable") }
