package netreq

import (
	"context"
	"net/http"
)

// Credentials authenticate requests flagged with RequiresAuth. They travel in
// the context, so side requests issued on behalf of a request inherit them.
type Credentials struct {
	Username string
	Password string
}

type credentialsValue int

type withCredentials struct {
	context.Context
	creds *Credentials
}

func (w *withCredentials) Value(v any) any {
	if _, ok := v.(credentialsValue); ok {
		return w.creds
	}

	return w.Context.Value(v)
}

// Use returns a context carrying c.
func (c *Credentials) Use(ctx context.Context) context.Context {
	return &withCredentials{ctx, c}
}

// CredentialsFrom returns the credentials carried by ctx, if any.
func CredentialsFrom(ctx context.Context) *Credentials {
	c, _ := ctx.Value(credentialsValue(0)).(*Credentials)
	return c
}

func (c *Credentials) apply(r *http.Request) {
	if c == nil || c.Username == "" {
		return
	}
	r.SetBasicAuth(c.Username, c.Password)
}
