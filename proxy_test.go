package netreq

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestTransportSettings(t *testing.T) {
	circumvented := 0
	s := &transportSettings{
		base:       DefaultTransport,
		circumvent: func(*http.Transport) { circumvented++ },
	}

	tr := s.transport()
	if tr == DefaultTransport {
		t.Fatalf("transport() returned the template itself")
	}

	proxy, _ := url.Parse("http://proxy.example.com:3128")
	s.proxy = proxy
	s.circumvention = true
	tr = s.transport()

	req, _ := http.NewRequest("GET", "https://example.com/", nil)
	got, err := tr.Proxy(req)
	if err != nil || got == nil || got.String() != proxy.String() {
		t.Errorf("transport proxy = %v, %v, want %s", got, err, proxy)
	}
	if circumvented != 1 {
		t.Errorf("circumvention applied %d times, want 1", circumvented)
	}
}

func TestClientFactory(t *testing.T) {
	s := &transportSettings{base: DefaultTransport}
	c := newClientFactory(s, time.Second, "netreq-test/1.0")()

	if c.Timeout != time.Second {
		t.Errorf("client timeout = %s, want 1s", c.Timeout)
	}
	if _, ok := c.Transport.(interface{ CloseIdleConnections() }); !ok {
		t.Errorf("client transport %T cannot close idle connections", c.Transport)
	}
}

// TestCircumventionEvent checks only actual changes are published
func TestCircumventionEvent(t *testing.T) {
	bus := NewBus()
	d := newTestDispatcher(t, WithBus(bus))

	n := 0
	bus.Subscribe(EventCensorshipCircumventionChanged, func(Event) { n++ })

	d.SetCensorshipCircumvention(false)
	d.SetCensorshipCircumvention(true)
	d.SetCensorshipCircumvention(true)
	d.SetCensorshipCircumvention(false)
	if n != 2 {
		t.Errorf("%d circumvention events published, want 2", n)
	}
}
