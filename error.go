package netreq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"
)

var (
	ErrNoURL            = errors.New("request has no resolvable url")
	ErrDispatcherClosed = errors.New("dispatcher is closed")
)

// ErrorKind is the variant held by an Error.
type ErrorKind int

const (
	// KindInvalidRequest means the request was malformed and never sent.
	KindInvalidRequest ErrorKind = iota + 1
	// KindNetworkFailure means no response was obtained.
	KindNetworkFailure
	// KindServiceResponse means a response was received but it is a failure.
	KindServiceResponse
	// KindWrappedFailure carries an error foreign to this taxonomy.
	KindWrappedFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid request"
	case KindNetworkFailure:
		return "network failure"
	case KindServiceResponse:
		return "service response"
	case KindWrappedFailure:
		return "wrapped failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// NetworkFailure is the subkind of a KindNetworkFailure error.
type NetworkFailure int

const (
	NetworkInvalidResponseStatus NetworkFailure = iota + 1
	NetworkUnknown
	NetworkTimeout
	NetworkGeneric
	NetworkWrapped
)

func (n NetworkFailure) String() string {
	switch n {
	case NetworkInvalidResponseStatus:
		return "invalid response status"
	case NetworkUnknown:
		return "unknown network failure"
	case NetworkTimeout:
		return "timeout"
	case NetworkGeneric:
		return "generic failure"
	case NetworkWrapped:
		return "wrapped"
	default:
		return fmt.Sprintf("NetworkFailure(%d)", int(n))
	}
}

// Error is the single error type returned by the request layer. Exactly one
// variant, selected by Kind, is meaningful:
//
//   - KindInvalidRequest: RequestURL, Err (cause)
//   - KindNetworkFailure: Network, RequestURL, Err (underlying, may be nil)
//   - KindServiceResponse: RequestURL, StatusCode, Header, Body, Err (set
//     when the body could not be read in full)
//   - KindWrappedFailure: Err
type Error struct {
	Kind    ErrorKind
	Network NetworkFailure

	RequestURL string
	StatusCode int
	Header     http.Header
	Body       []byte

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidRequest:
		if e.Err != nil {
			return fmt.Sprintf("[netreq] invalid request %s: %s", e.RequestURL, e.Err)
		}
		return fmt.Sprintf("[netreq] invalid request %s", e.RequestURL)
	case KindNetworkFailure:
		if e.Err != nil {
			return fmt.Sprintf("[netreq] network failure (%s) for %s: %s", e.Network, e.RequestURL, e.Err)
		}
		return fmt.Sprintf("[netreq] network failure (%s) for %s", e.Network, e.RequestURL)
	case KindServiceResponse:
		if e.Err != nil {
			return fmt.Sprintf("[netreq] HTTP Error %d from %s: %s", e.StatusCode, e.RequestURL, e.Err)
		}
		return fmt.Sprintf("[netreq] HTTP Error %d from %s", e.StatusCode, e.RequestURL)
	default:
		return fmt.Sprintf("[netreq] %s", e.Err)
	}
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Kind != KindServiceResponse {
		return nil
	}
	switch e.StatusCode {
	case http.StatusForbidden:
		return os.ErrPermission
	case http.StatusNotFound:
		return fs.ErrNotExist
	default:
		return nil
	}
}

// IsNetworkFailure reports whether no response was obtained.
func (e *Error) IsNetworkFailure() bool {
	return e.Kind == KindNetworkFailure
}

// IsTimeout reports whether the failure was a timeout.
func (e *Error) IsTimeout() bool {
	if e.Kind == KindNetworkFailure && e.Network == NetworkTimeout {
		return true
	}
	return e.Kind == KindWrappedFailure && isTimeoutError(e.Err)
}

// IsRetryable reports whether sending the same request again may succeed.
func (e *Error) IsRetryable() bool {
	if e.IsNetworkFailure() || e.IsTimeout() {
		return true
	}
	switch e.Kind {
	case KindServiceResponse:
		return e.StatusCode >= 500 && e.StatusCode < 600
	case KindWrappedFailure:
		return true
	default:
		return false
	}
}

// Response rebuilds the response carried by a service response error.
func (e *Error) Response() *Response {
	if e.Kind != KindServiceResponse {
		return nil
	}
	return newResponse(e.RequestURL, e.StatusCode, e.Header, e.Body)
}

// RetryAfterDelay returns the server-requested delay, or def.
func (e *Error) RetryAfterDelay(def time.Duration) time.Duration {
	return RetryAfterDelay(e.Header, def)
}

// RetryAfterDate returns the point in time the server asked us to wait for.
func (e *Error) RetryAfterDate(now time.Time) time.Time {
	return RetryAfterDate(e.Header, now)
}

// Classify turns the outcome of an exchange into an Error. A status of 0
// means no response was received.
func Classify(requestURL string, status int, header http.Header, body []byte) *Error {
	if status == 0 {
		return &Error{Kind: KindNetworkFailure, Network: NetworkInvalidResponseStatus, RequestURL: requestURL}
	}
	return &Error{
		Kind:       KindServiceResponse,
		RequestURL: requestURL,
		StatusCode: status,
		Header:     header,
		Body:       body,
	}
}

// classifyTransportError classifies an error returned before any response
// was obtained.
func classifyTransportError(requestURL string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case isTimeoutError(err):
		return &Error{Kind: KindNetworkFailure, Network: NetworkTimeout, RequestURL: requestURL, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindWrappedFailure, RequestURL: requestURL, Err: err}
	case isConnectionError(err):
		return &Error{Kind: KindNetworkFailure, Network: NetworkWrapped, RequestURL: requestURL, Err: err}
	default:
		return &Error{Kind: KindNetworkFailure, Network: NetworkUnknown, RequestURL: requestURL, Err: err}
	}
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, ErrBodyStalled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnectionError(err error) bool {
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed):
		return true
	case errors.As(err, &dnsErr), errors.As(err, &opErr):
		return true
	}
	return false
}

// IsRetryable reports whether err is an Error that may succeed on retry.
// Foreign errors are considered retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.IsRetryable()
	}
	return true
}

// IsNetworkFailure reports whether err means no response was obtained.
func IsNetworkFailure(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsNetworkFailure()
	}
	return err != nil && isConnectionError(err)
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsTimeout()
	}
	return isTimeoutError(err)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindServiceResponse {
		return e.StatusCode
	}
	return 0
}
