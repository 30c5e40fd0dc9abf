package netreq

import "testing"

func TestBus(t *testing.T) {
	bus := NewBus()

	var got []Event
	sub := bus.Subscribe(EventProxyReadinessChanged, func(ev Event) { got = append(got, ev) })
	bus.Subscribe(EventProxyReadinessChanged, func(Event) { panic("listener failure") })

	bus.Publish(EventProxyReadinessChanged)
	bus.Publish(EventReachabilityChanged)
	if len(got) != 1 || got[0] != EventProxyReadinessChanged {
		t.Errorf("received %v, want [%s]", got, EventProxyReadinessChanged)
	}
	if n := bus.Count(EventProxyReadinessChanged); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	sub.Cancel()
	sub.Cancel()
	bus.Publish(EventProxyReadinessChanged)
	if len(got) != 1 {
		t.Errorf("cancelled subscription still receives events")
	}
	if n := bus.Count(EventProxyReadinessChanged); n != 1 {
		t.Errorf("Count() = %d after Cancel, want 1", n)
	}

	var nilSub *Subscription
	nilSub.Cancel()
}

func TestEventString(t *testing.T) {
	for ev, want := range map[Event]string{
		EventReachabilityChanged:            "reachability_changed",
		EventProxyReadinessChanged:          "proxy_readiness_changed",
		EventCensorshipCircumventionChanged: "censorship_circumvention_changed",
		Event(0):                            "unknown",
	} {
		if ev.String() != want {
			t.Errorf("Event(%d).String() = %q, want %q", int(ev), ev.String(), want)
		}
	}
}
