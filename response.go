package netreq

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/KarpelesLab/pjson"
)

// Response is a completed HTTP exchange. It is immutable once built; the
// parsed JSON body is computed on first use and cached.
type Response struct {
	RequestURL string
	StatusCode int
	Header     http.Header
	Body       []byte
	Charset    string // from Content-Type, lowercased, may be empty

	dataParsed any
	dataError  error
	dataParse  sync.Once
}

func newResponse(requestURL string, status int, header http.Header, body []byte) *Response {
	if header == nil {
		header = make(http.Header)
	}
	return &Response{
		RequestURL: requestURL,
		StatusCode: status,
		Header:     header,
		Body:       body,
		Charset:    charsetOf(header.Get("Content-Type")),
	}
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

// IsSuccess reports whether the status is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// BodyJSON returns the body parsed as JSON. The value is parsed only once and
// the same value is returned on every call, from any goroutine.
func (r *Response) BodyJSON() (any, error) {
	r.dataParse.Do(func() {
		if len(r.Body) == 0 {
			r.dataError = errors.New("empty response body")
			return
		}
		r.dataError = pjson.Unmarshal(r.Body, &r.dataParsed)
	})
	return r.dataParsed, r.dataError
}

// BodyString decodes the body using the response charset. Only utf-8,
// us-ascii and iso-8859-1 are understood.
func (r *Response) BodyString() (string, error) {
	switch r.Charset {
	case "", "utf-8", "utf8", "us-ascii":
		if !utf8.Valid(r.Body) {
			return "", errors.New("response body is not valid utf-8")
		}
		return string(r.Body), nil
	case "iso-8859-1", "latin1":
		// each byte maps to the code point of the same value
		runes := make([]rune, len(r.Body))
		for i, b := range r.Body {
			runes[i] = rune(b)
		}
		return string(runes), nil
	default:
		return "", fmt.Errorf("unsupported response charset %s", r.Charset)
	}
}

// Apply unmarshals the body into v.
func (r *Response) Apply(v any) error {
	return pjson.Unmarshal(r.Body, v)
}

// ApplyContext unmarshals the body into v, passing ctx to types that
// implement context-aware decoding.
func (r *Response) ApplyContext(ctx context.Context, v any) error {
	return pjson.UnmarshalContext(ctx, r.Body, v)
}

// Get walks the parsed JSON body following a slash separated path of object
// keys. An empty path returns the root.
func (r *Response) Get(v string) (any, error) {
	va := strings.Split(v, "/")
	cur, err := r.BodyJSON()
	if err != nil {
		return nil, err
	}

	for _, sub := range va {
		if sub == "" {
			continue
		}
		curV, ok := cur.(map[string]any)
		if !ok {
			return nil, fs.ErrNotExist
		}
		cur, ok = curV[sub]
		if !ok {
			return nil, fs.ErrNotExist
		}
	}
	return cur, nil
}

// GetString is like Get but requires the value to be a string.
func (r *Response) GetString(v string) (string, error) {
	res, err := r.Get(v)
	if err != nil {
		return "", err
	}
	str, ok := res.(string)
	if !ok {
		return fmt.Sprintf("%v", res), fmt.Errorf("unexpected type %T for string %s", res, v)
	}
	return str, nil
}

// ResponseAs decodes the body of r into a new value of type T.
func ResponseAs[T any](r *Response) (T, error) {
	var target T
	err := pjson.Unmarshal(r.Body, &target)
	return target, err
}
