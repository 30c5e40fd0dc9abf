package netreq

import "sync"

// inflightGroup admits exchanges until it is closed, and lets the closer
// wait for the admitted ones to finish.
type inflightGroup struct {
	lk      sync.Mutex
	drained *sync.Cond
	n       int
	closed  bool
}

func newInflightGroup() *inflightGroup {
	g := &inflightGroup{}
	g.drained = sync.NewCond(&g.lk)
	return g
}

// enter admits one exchange. It returns false once the group is closed.
func (g *inflightGroup) enter() bool {
	g.lk.Lock()
	defer g.lk.Unlock()

	if g.closed {
		return false
	}
	g.n += 1
	return true
}

// leave marks an admitted exchange as finished.
func (g *inflightGroup) leave() {
	g.lk.Lock()
	defer g.lk.Unlock()

	g.n -= 1
	if g.n == 0 {
		g.drained.Broadcast()
	}
}

func (g *inflightGroup) count() int {
	g.lk.Lock()
	defer g.lk.Unlock()
	return g.n
}

// close refuses further exchanges and blocks until every admitted one has
// left. Only the first call waits; it reports whether it was that call.
func (g *inflightGroup) close() bool {
	g.lk.Lock()
	defer g.lk.Unlock()

	if g.closed {
		return false
	}
	g.closed = true
	for g.n > 0 {
		g.drained.Wait()
	}
	return true
}
