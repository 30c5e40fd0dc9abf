package netreq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/evan-idocoding/zkit/httpx/client"
	"github.com/evan-idocoding/zkit/rt/safego"
)

// MaxResponseSize bounds the response bodies read by the dispatcher.
var MaxResponseSize int64 = 64 << 20

var errExchangePanic = errors.New("exchange panicked")

// Dispatcher sends requests over pooled HTTP connections. Connection
// acquisition happens in order on a single worker; the exchanges themselves
// run concurrently, each on its own borrowed connection.
type Dispatcher struct {
	cfg      config
	logger   *slog.Logger
	bus      *Bus
	settings *transportSettings
	pools    *pools
	report   *reporter
	inflight *inflightGroup

	queue chan *job
	stop  chan struct{}
}

type job struct {
	ctx     context.Context
	req     *Request
	httpReq *http.Request
	result  chan result
}

type result struct {
	resp *Response
	err  error
}

// NewDispatcher starts a dispatcher. Close it to release its worker and
// connections.
func NewDispatcher(opts ...Option) *Dispatcher {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.bus == nil {
		cfg.bus = DefaultBus
	}
	if cfg.transport == nil {
		cfg.transport = DefaultTransport
	}

	d := &Dispatcher{
		cfg:    cfg,
		logger: cfg.logger,
		bus:    cfg.bus,
		settings: &transportSettings{
			base:       cfg.transport,
			circumvent: cfg.circumvent,
		},
		report:   &reporter{outage: cfg.outage, expiry: cfg.expiry, logger: cfg.logger},
		inflight: newInflightGroup(),
		queue:    make(chan *job),
		stop:     make(chan struct{}),
	}

	factory := cfg.factory
	if factory == nil {
		factory = newClientFactory(d.settings, cfg.timeout, cfg.userAgent)
	}
	d.pools = &pools{
		authenticated:   NewPool("authenticated", cfg.poolSize, cfg.maxAge, cfg.now, factory, cfg.logger),
		unauthenticated: NewPool("unauthenticated", cfg.poolSize, cfg.maxAge, cfg.now, factory, cfg.logger),
	}
	d.pools.watch(d.bus)

	go d.run()
	return d
}

// Send performs req and returns its response. Any failure is an *Error.
// Only 2xx responses are successful; other statuses come back as
// KindServiceResponse errors.
func (d *Dispatcher) Send(ctx context.Context, req *Request) (*Response, error) {
	u, err := req.parsedURL()
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, RequestURL: req.URL, Err: err}
	}
	httpReq, err := d.buildRequest(ctx, req, u)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, RequestURL: req.URL, Err: err}
	}

	j := &job{
		ctx:     ctx,
		req:     req,
		httpReq: httpReq,
		result:  make(chan result, 1),
	}

	if !d.inflight.enter() {
		return nil, &Error{Kind: KindWrappedFailure, RequestURL: req.URL, Err: ErrDispatcherClosed}
	}
	// the worker keeps running until every admitted job is done
	select {
	case d.queue <- j:
	case <-ctx.Done():
		d.inflight.leave()
		return nil, classifyTransportError(req.URL, ctx.Err())
	}

	select {
	case r := <-j.result:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, classifyTransportError(req.URL, ctx.Err())
	}
}

func (d *Dispatcher) buildRequest(ctx context.Context, req *Request, u *url.URL) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	r, err := http.NewRequestWithContext(ctx, req.method(), u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Header {
		r.Header[k] = append([]string(nil), v...)
	}
	if req.RequiresAuth {
		CredentialsFrom(ctx).apply(r)
	}
	return r, nil
}

// run is the serial queue. Jobs are taken in order, given a connection and
// started; the worker never waits for network I/O.
func (d *Dispatcher) run() {
	for {
		select {
		case j := <-d.queue:
			d.start(j)
		case <-d.stop:
			return
		}
	}
}

// lease is a connection borrowed for one exchange. It tracks whether the
// connection went back to its pool, after which it must not be touched.
type lease struct {
	pool     *Pool
	conn     *Conn
	released bool
}

func (l *lease) release() {
	if l.released {
		return
	}
	l.released = true
	l.pool.Release(l.conn)
}

func (d *Dispatcher) start(j *job) {
	pool := d.pools.forRequest(j.req)
	l := &lease{pool: pool, conn: pool.Borrow()}

	var res result
	delivered := false
	safego.Go(j.ctx, func(ctx context.Context) {
		res = d.exchange(ctx, j, l)
		delivered = true
	},
		safego.WithName("netreq.exchange"),
		safego.WithTag("url", j.req.URL),
		safego.WithPanicHandler(logPanic),
		safego.WithFinally(func() {
			if !delivered {
				if !l.released {
					// dropped, never returned to the pool
					l.conn.close()
				}
				res = result{err: &Error{Kind: KindWrappedFailure, RequestURL: j.req.URL, Err: errExchangePanic}}
			}
			j.result <- res
			d.inflight.leave()
		}),
	)
}

func (d *Dispatcher) exchange(ctx context.Context, j *job, l *lease) result {
	target := j.req.URL
	conn := l.conn

	resp, err := conn.Client.Do(j.httpReq)
	if err != nil {
		e := classifyTransportError(target, err)
		if e.IsNetworkFailure() {
			// do not reuse sockets that just failed
			conn.close()
		}
		l.release()
		return d.fail(ctx, j.req, e)
	}

	body, err := client.ReadAllAndCloseLimit(newStallDetectReader(resp.Body, d.cfg.stallTimeout, d.cfg.stallThreshold), MaxResponseSize)
	l.release()
	if errors.Is(err, client.ErrBodyTooLarge) {
		// the server answered; sending again gets the same oversized body
		return d.fail(ctx, j.req, &Error{Kind: KindServiceResponse, RequestURL: target, StatusCode: resp.StatusCode, Header: resp.Header, Err: err})
	}
	if err != nil {
		return d.fail(ctx, j.req, classifyTransportError(target, fmt.Errorf("failed to read response: %w", err)))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return d.fail(ctx, j.req, Classify(target, resp.StatusCode, resp.Header, body))
	}

	d.report.success()
	if Debug {
		d.logger.DebugContext(ctx, fmt.Sprintf("[netreq] %s %s => %d", j.req.method(), target, resp.StatusCode), "event", "netreq:debug_query", "netreq:conn", conn.ID.String())
	}
	return result{resp: newResponse(target, resp.StatusCode, resp.Header, body)}
}

// fail reports a classified failure and runs the deregistration check when
// the request asked for it. The original error is always what is returned.
func (d *Dispatcher) fail(ctx context.Context, req *Request, e *Error) result {
	d.report.failure(ctx, e)
	if Debug {
		d.logger.DebugContext(ctx, "request failed", "event", "netreq:request_failed", "netreq:url", req.URL, "netreq:error", e.Error())
	}
	if e.Kind == KindServiceResponse && e.StatusCode == http.StatusUnauthorized && req.CheckDeregistration {
		d.checkDeregistration(ctx, req)
	}
	return result{err: e}
}

// InFlight returns the number of requests accepted but not yet answered.
func (d *Dispatcher) InFlight() int {
	return d.inflight.count()
}

// Close stops accepting requests, waits for in-flight exchanges, then drops
// pooled connections and event subscriptions.
func (d *Dispatcher) Close() error {
	if !d.inflight.close() {
		return nil
	}
	close(d.stop)
	d.pools.close()
	return nil
}
