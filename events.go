package netreq

import (
	"context"
	"log/slog"
	"sync"

	"github.com/evan-idocoding/zkit/rt/safego"
)

// Event is a process-wide signal relevant to the request layer.
type Event int

const (
	// EventReachabilityChanged fires when network reachability changes.
	EventReachabilityChanged Event = iota + 1
	// EventProxyReadinessChanged fires when a proxy becomes ready or goes away.
	EventProxyReadinessChanged
	// EventCensorshipCircumventionChanged fires when circumvention is toggled.
	EventCensorshipCircumventionChanged
)

func (e Event) String() string {
	switch e {
	case EventReachabilityChanged:
		return "reachability_changed"
	case EventProxyReadinessChanged:
		return "proxy_readiness_changed"
	case EventCensorshipCircumventionChanged:
		return "censorship_circumvention_changed"
	default:
		return "unknown"
	}
}

// DefaultBus is the process-wide event bus.
var DefaultBus = NewBus()

// Bus delivers events to subscribers. Listeners run synchronously in the
// publishing goroutine; a panicking listener is recovered and logged.
type Bus struct {
	lk     sync.Mutex
	nextID uint64
	subs   map[Event]map[uint64]func(Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Event]map[uint64]func(Event))}
}

// Subscription is the handle returned by Subscribe. Cancel it to stop
// receiving events.
type Subscription struct {
	bus  *Bus
	ev   Event
	id   uint64
	once sync.Once
}

// Subscribe registers fn for events of type ev.
func (b *Bus) Subscribe(ev Event, fn func(Event)) *Subscription {
	b.lk.Lock()
	defer b.lk.Unlock()

	b.nextID += 1
	m, ok := b.subs[ev]
	if !ok {
		m = make(map[uint64]func(Event))
		b.subs[ev] = m
	}
	m[b.nextID] = fn
	return &Subscription{bus: b, ev: ev, id: b.nextID}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev Event) {
	b.lk.Lock()
	fns := make([]func(Event), 0, len(b.subs[ev]))
	for _, fn := range b.subs[ev] {
		fns = append(fns, fn)
	}
	b.lk.Unlock()

	for _, fn := range fns {
		safego.Run(context.Background(), func(context.Context) { fn(ev) },
			safego.WithName("netreq.bus"),
			safego.WithTag("event", ev.String()),
			safego.WithPanicHandler(logPanic),
		)
	}
}

// Count returns the number of subscribers for ev.
func (b *Bus) Count(ev Event) int {
	b.lk.Lock()
	defer b.lk.Unlock()
	return len(b.subs[ev])
}

// Cancel removes the subscription. It is safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.bus.lk.Lock()
		defer s.bus.lk.Unlock()
		delete(s.bus.subs[s.ev], s.id)
	})
}

func logPanic(ctx context.Context, info safego.PanicInfo) {
	slog.ErrorContext(ctx, "recovered panic", "event", "netreq:panic", "netreq:task", info.Name, "netreq:value", info.Value)
}
