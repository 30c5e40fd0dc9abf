package netreq

import (
	"net/http"
	"time"

	"github.com/evan-idocoding/zkit/httpx/client"
	"github.com/google/uuid"
)

// DefaultTransport is the template every pooled connection clones its
// transport from, unless the dispatcher is given another one.
var DefaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   50,
	MaxConnsPerHost:       200,
	IdleConnTimeout:       90 * time.Second,
	ResponseHeaderTimeout: 90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 5 * time.Second,
}

// DefaultTimeout is the total timeout of a single exchange.
var DefaultTimeout = 120 * time.Second

// Conn is a pooled connection resource: an HTTP client with its own
// transport, and therefore its own set of keep-alive connections. A Conn is
// only ever used by one exchange at a time.
type Conn struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Client    *http.Client

	generation uint64
}

// close drops any keep-alive connection the Conn still holds.
func (c *Conn) close() {
	if c.Client != nil {
		c.Client.CloseIdleConnections()
	}
}

// ConnFactory builds the HTTP client for a new Conn.
type ConnFactory func() *http.Client

// idleCloser keeps CloseIdleConnections reachable through the middleware
// chain wrapping the transport.
type idleCloser struct {
	http.RoundTripper
	base *http.Transport
}

func (i *idleCloser) CloseIdleConnections() {
	i.base.CloseIdleConnections()
}

// newClientFactory returns a factory building clients from the transport
// currently described by settings.
func newClientFactory(settings *transportSettings, timeout time.Duration, userAgent string) ConnFactory {
	return func() *http.Client {
		t := settings.transport()
		opts := []client.Option{
			client.WithRoundTripper(t),
			client.WithTimeout(timeout),
		}
		if userAgent != "" {
			opts = append(opts, client.WithMiddlewares(client.SetHeader("User-Agent", userAgent)))
		}
		c := client.New(opts...)
		c.Transport = &idleCloser{RoundTripper: c.Transport, base: t}
		return c
	}
}
