package netreq

import (
	"context"
	"log/slog"
	"sync"
)

// StatusAppExpired is the status the server uses to tell this client build
// is too old to be served.
const StatusAppExpired = 499

// OutageDetector receives transport health signals. Implementations must not
// block or panic.
type OutageDetector interface {
	ReportConnectionFailure()
	ReportConnectionSuccess()
}

// AppExpiry is told when the server reports the app as expired.
type AppExpiry interface {
	SetExpired()
}

// AccountState persists the deregistered status of the local account.
type AccountState interface {
	SetDeregistered(deregistered bool)
}

// reporter forwards exchange outcomes to the optional collaborators.
type reporter struct {
	outage OutageDetector
	expiry AppExpiry
	logger *slog.Logger
}

func (r *reporter) success() {
	if r.outage != nil {
		r.outage.ReportConnectionSuccess()
	}
}

// failure is called once per classified failure.
func (r *reporter) failure(ctx context.Context, e *Error) {
	if r.outage != nil && (e.IsNetworkFailure() || e.IsTimeout()) {
		r.outage.ReportConnectionFailure()
	}
	if e.Kind == KindServiceResponse && e.StatusCode == StatusAppExpired {
		r.logger.WarnContext(ctx, "server reports app version expired", "event", "netreq:app_expired", "netreq:url", e.RequestURL)
		if r.expiry != nil {
			r.expiry.SetExpired()
		}
	}
}

// OutageTracker is an OutageDetector that suspects an outage after a number
// of consecutive connection failures. Any success clears the suspicion.
type OutageTracker struct {
	// Threshold is the number of consecutive failures needed, 3 if zero
	Threshold int
	// OnChange is called whenever the suspected state flips
	OnChange func(suspected bool)

	lk        sync.Mutex
	failures  int
	suspected bool
}

func (o *OutageTracker) threshold() int {
	if o.Threshold <= 0 {
		return 3
	}
	return o.Threshold
}

func (o *OutageTracker) ReportConnectionFailure() {
	o.lk.Lock()
	o.failures += 1
	changed := !o.suspected && o.failures >= o.threshold()
	if changed {
		o.suspected = true
	}
	o.lk.Unlock()

	if changed && o.OnChange != nil {
		o.OnChange(true)
	}
}

func (o *OutageTracker) ReportConnectionSuccess() {
	o.lk.Lock()
	o.failures = 0
	changed := o.suspected
	o.suspected = false
	o.lk.Unlock()

	if changed && o.OnChange != nil {
		o.OnChange(false)
	}
}

// Suspected reports whether an outage is currently suspected.
func (o *OutageTracker) Suspected() bool {
	o.lk.Lock()
	defer o.lk.Unlock()
	return o.suspected
}
