package netreq

import (
	"context"
	"net/http"

	"github.com/KarpelesLab/pjson"
)

// SpotClient is an interface fulfilled by spotlib.Client, a persistent
// message based connection able to answer queries. Using this interface
// avoids a dependency on the client package itself.
type SpotClient interface {
	Query(ctx context.Context, target string, body []byte) ([]byte, error)
}

// DefaultSpotTarget is the endpoint HTTP requests are relayed to.
const DefaultSpotTarget = "@/http"

// SpotTransport is a StreamingTransport relaying requests over a SpotClient.
type SpotTransport struct {
	Client SpotClient
	Target string      // DefaultSpotTarget if empty
	Usable func() bool // nil means always usable
}

type spotRequest struct {
	Method  string      `json:"verb"`
	URL     string      `json:"url"`
	Headers http.Header `json:"headers,omitempty"`
	Body    []byte      `json:"body,omitempty"`
}

type spotResponse struct {
	Status  int         `json:"status"`
	Headers http.Header `json:"headers,omitempty"`
	Body    []byte      `json:"body,omitempty"`
}

// CanServeRequests implements StreamingTransport.
func (s *SpotTransport) CanServeRequests() bool {
	if s.Client == nil {
		return false
	}
	return s.Usable == nil || s.Usable()
}

// Send relays req and returns the response with the same contract as the
// REST path: only 2xx is success, everything else is an *Error.
func (s *SpotTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	if _, err := req.parsedURL(); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, RequestURL: req.URL, Err: err}
	}
	buf, err := pjson.MarshalContext(ctx, &spotRequest{
		Method:  req.method(),
		URL:     req.URL,
		Headers: req.Header,
		Body:    req.Body,
	})
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, RequestURL: req.URL, Err: err}
	}

	target := s.Target
	if target == "" {
		target = DefaultSpotTarget
	}
	respbuf, err := s.Client.Query(ctx, target, buf)
	if err != nil {
		return nil, classifyTransportError(req.URL, err)
	}

	var resp spotResponse
	if err := pjson.UnmarshalContext(ctx, respbuf, &resp); err != nil {
		return nil, &Error{Kind: KindNetworkFailure, Network: NetworkGeneric, RequestURL: req.URL, Err: err}
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, Classify(req.URL, resp.Status, canonicalHeader(resp.Headers), resp.Body)
	}
	return newResponse(req.URL, resp.Status, canonicalHeader(resp.Headers), resp.Body), nil
}

// canonicalHeader re-keys h so lookups are case insensitive again after a
// trip through JSON.
func canonicalHeader(h http.Header) http.Header {
	res := make(http.Header, len(h))
	for k, v := range h {
		for _, vv := range v {
			res.Add(k, vv)
		}
	}
	return res
}
