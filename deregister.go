package netreq

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// WhoAmIPath is the endpoint queried to find out whether the account is
// still registered after a 401.
var WhoAmIPath = "/v1/accounts/whoami"

type deregistrationState int

const (
	deregistrationUnknown deregistrationState = iota
	deregistrationConfirmed
	deregistrationRefuted
)

func (s deregistrationState) String() string {
	switch s {
	case deregistrationConfirmed:
		return "deregistered"
	case deregistrationRefuted:
		return "registered"
	default:
		return "unknown"
	}
}

// whoAmIRequest targets the who-am-I endpoint on the same server as
// original. It never asks for a deregistration check itself.
func whoAmIRequest(original *Request) (*Request, error) {
	u, err := original.parsedURL()
	if err != nil {
		return nil, err
	}
	target := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: WhoAmIPath}
	return &Request{
		URL:                 target.String(),
		Method:              http.MethodGet,
		Header:              http.Header{"Accept": []string{"application/json"}},
		RequiresAuth:        true,
		CheckDeregistration: false,
	}, nil
}

// interpretWhoAmI maps the who-am-I outcome to a deregistration state. The
// server answers 401 or 403 to a deregistered account.
func interpretWhoAmI(err error) deregistrationState {
	if err == nil {
		return deregistrationRefuted
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindServiceResponse {
		return deregistrationUnknown
	}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return deregistrationConfirmed
	default:
		return deregistrationUnknown
	}
}

// checkDeregistration runs after a 401 on a request that opted in. Its own
// outcome is never returned to the caller; only the account state changes.
func (d *Dispatcher) checkDeregistration(ctx context.Context, original *Request) {
	req, err := whoAmIRequest(original)
	if err != nil {
		return
	}
	_, err = d.Send(ctx, req)
	state := interpretWhoAmI(err)

	d.logger.InfoContext(ctx, "checked registration after 401", "event", "netreq:whoami", "netreq:state", state.String())

	if state == deregistrationConfirmed && d.cfg.account != nil {
		d.logger.WarnContext(ctx, "account is deregistered", "event", "netreq:deregistered")
		d.cfg.account.SetDeregistered(true)
	}
}
