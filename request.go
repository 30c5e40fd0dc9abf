// Package netreq is the outbound request layer of a messaging client. It turns
// a logical Request into an HTTP exchange, routing it either through a
// streaming transport or through pooled REST connections, and reports every
// failure using a single closed error taxonomy.
package netreq

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/KarpelesLab/pjson"
)

var (
	// Debug enables verbose logging of requests, pool activity and responses
	Debug = false
)

// Request describes a single logical request. It is never mutated once
// handed to a Manager or Dispatcher.
type Request struct {
	URL    string
	Method string // defaults to GET
	Header http.Header
	Body   []byte

	// CanUseStreaming allows the request to be served by the streaming
	// transport when that transport is currently usable.
	CanUseStreaming bool

	// RequiresAuth selects the authenticated connection pool and causes
	// credentials found in the context to be attached.
	RequiresAuth bool

	// CheckDeregistration triggers a who-am-I request when the server
	// answers 401, in order to detect a deregistered account.
	CheckDeregistration bool
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// parsedURL returns the request URL if it can actually be sent somewhere.
func (r *Request) parsedURL() (*url.URL, error) {
	if r.URL == "" {
		return nil, ErrNoURL
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoURL, r.URL)
	}
	return u, nil
}

// NewJSONRequest builds a request with param encoded as JSON. Parameters
// travel in the query string for GET, HEAD and OPTIONS, and in the body for
// PUT, POST and PATCH.
func NewJSONRequest(ctx context.Context, method, target string, param any) (*Request, error) {
	req := &Request{
		URL:    target,
		Method: method,
		Header: make(http.Header),
	}

	switch method {
	case "", "GET", "HEAD", "OPTIONS":
		if param == nil {
			break
		}
		data, err := pjson.MarshalContext(ctx, param)
		if err != nil {
			return nil, &Error{Kind: KindInvalidRequest, RequestURL: target, Err: err}
		}
		u, err := url.Parse(target)
		if err != nil {
			return nil, &Error{Kind: KindInvalidRequest, RequestURL: target, Err: err}
		}
		q := u.Query()
		q.Set("_", string(data))
		u.RawQuery = q.Encode()
		req.URL = u.String()
	case "PUT", "POST", "PATCH":
		data, err := pjson.MarshalContext(ctx, param)
		if err != nil {
			return nil, &Error{Kind: KindInvalidRequest, RequestURL: target, Err: err}
		}
		req.Body = data
		req.Header.Set("Content-Type", "application/json")
	case "DELETE":
		// nothing
	default:
		return nil, &Error{Kind: KindInvalidRequest, RequestURL: target, Err: fmt.Errorf("invalid request method %s", method)}
	}

	return req, nil
}
