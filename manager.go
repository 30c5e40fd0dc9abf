package netreq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KarpelesLab/pjson"
)

// StreamingTransport is a persistent connection able to carry requests, such
// as an authenticated websocket. It is used as is: failures are not retried.
type StreamingTransport interface {
	Send(ctx context.Context, req *Request) (*Response, error)

	// CanServeRequests reports whether the transport is currently able to
	// carry requests.
	CanServeRequests() bool
}

// ReachabilityObserver is implemented by streaming transports that want to
// hear about network reachability changes.
type ReachabilityObserver interface {
	ReachabilityChanged()
}

// RESTSender is the non-streaming path, normally a *Dispatcher.
type RESTSender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Manager picks the transport for each request: the streaming transport when
// the request allows it and the transport can serve requests, the REST
// dispatcher otherwise. It does not retry.
type Manager struct {
	rest      RESTSender
	streaming StreamingTransport
	logger    *slog.Logger
	sub       *Subscription
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	streaming StreamingTransport
	bus       *Bus
	logger    *slog.Logger
}

// WithStreaming sets the streaming transport.
func WithStreaming(s StreamingTransport) ManagerOption {
	return func(c *managerConfig) { c.streaming = s }
}

// WithManagerBus sets the bus reachability events are read from. Default is
// DefaultBus.
func WithManagerBus(b *Bus) ManagerOption {
	return func(c *managerConfig) { c.bus = b }
}

// WithManagerLogger sets the logger. Default is slog.Default().
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(c *managerConfig) { c.logger = l }
}

// NewManager returns a manager sending through rest, and through the
// streaming transport if one is given. A streaming transport implementing
// ReachabilityObserver is notified of reachability changes until Close.
func NewManager(rest RESTSender, opts ...ManagerOption) *Manager {
	var cfg managerConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.bus == nil {
		cfg.bus = DefaultBus
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	m := &Manager{
		rest:      rest,
		streaming: cfg.streaming,
		logger:    cfg.logger,
	}
	if obs, ok := cfg.streaming.(ReachabilityObserver); ok {
		m.sub = cfg.bus.Subscribe(EventReachabilityChanged, func(Event) {
			obs.ReachabilityChanged()
		})
	}
	return m
}

// useStreaming decides the transport for req.
func (m *Manager) useStreaming(req *Request) bool {
	return req.CanUseStreaming && m.streaming != nil && m.streaming.CanServeRequests()
}

// Send performs req on the selected transport.
func (m *Manager) Send(ctx context.Context, req *Request) (*Response, error) {
	if m.useStreaming(req) {
		if Debug {
			m.logger.DebugContext(ctx, "sending over streaming transport", "event", "netreq:route", "netreq:url", req.URL, "netreq:transport", "streaming")
		}
		return m.streaming.Send(ctx, req)
	}
	if Debug {
		m.logger.DebugContext(ctx, "sending over rest", "event", "netreq:route", "netreq:url", req.URL, "netreq:transport", "rest")
	}
	return m.rest.Send(ctx, req)
}

// Apply sends req and unmarshals the response body into target.
func (m *Manager) Apply(ctx context.Context, req *Request, target any) error {
	res, err := m.Send(ctx, req)
	if err != nil {
		return err
	}
	err = res.ApplyContext(ctx, target)
	if Debug && err != nil {
		m.logger.ErrorContext(ctx, fmt.Sprintf("failed to parse json: %s\n%s", err, res.Body), "event", "netreq:not_json")
	}
	return err
}

// As sends req and returns the response body decoded as T.
func As[T any](ctx context.Context, m *Manager, req *Request) (T, error) {
	var target T
	res, err := m.Send(ctx, req)
	if err != nil {
		return target, err
	}
	err = pjson.UnmarshalContext(ctx, res.Body, &target)
	if Debug && err != nil {
		m.logger.ErrorContext(ctx, fmt.Sprintf("failed to parse json: %s\n%s", err, res.Body), "event", "netreq:not_json")
	}
	return target, err
}

// Close stops forwarding reachability events. It does not close the
// underlying transports.
func (m *Manager) Close() error {
	m.sub.Cancel()
	return nil
}
