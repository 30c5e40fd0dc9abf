package netreq

import (
	"net/http"
	"net/url"
	"sync"
)

// transportSettings describes the transport new connections are built with.
// Changing it publishes an event so existing connections get invalidated.
type transportSettings struct {
	lk            sync.RWMutex
	base          *http.Transport
	proxy         *url.URL
	circumvention bool
	circumvent    func(*http.Transport)
}

// transport returns a fresh transport honoring the current settings.
func (s *transportSettings) transport() *http.Transport {
	s.lk.RLock()
	defer s.lk.RUnlock()

	t := s.base.Clone()
	if s.proxy != nil {
		t.Proxy = http.ProxyURL(s.proxy)
	}
	if s.circumvention && s.circumvent != nil {
		s.circumvent(t)
	}
	return t
}

// SetProxy routes connections created from now on through proxy (nil to
// go direct again) and invalidates every pooled connection.
func (d *Dispatcher) SetProxy(proxy *url.URL) {
	d.settings.lk.Lock()
	d.settings.proxy = proxy
	d.settings.lk.Unlock()

	d.bus.Publish(EventProxyReadinessChanged)
}

// SetCensorshipCircumvention toggles censorship circumvention. The transport
// adjustments themselves come from WithCircumvention.
func (d *Dispatcher) SetCensorshipCircumvention(enabled bool) {
	d.settings.lk.Lock()
	changed := d.settings.circumvention != enabled
	d.settings.circumvention = enabled
	d.settings.lk.Unlock()

	if changed {
		d.bus.Publish(EventCensorshipCircumventionChanged)
	}
}

// CensorshipCircumvention reports whether circumvention is enabled.
func (d *Dispatcher) CensorshipCircumvention() bool {
	d.settings.lk.RLock()
	defer d.settings.lk.RUnlock()
	return d.settings.circumvention
}
