package netreq

import (
	"errors"
	"io"
	"sync"
	"time"
)

var ErrBodyStalled = errors.New("response body stalled")

var (
	// DefaultStallTimeout is the period over which body progress is checked
	DefaultStallTimeout = 30 * time.Second

	// DefaultStallThreshold is the minimum number of bytes that must arrive
	// during each period
	DefaultStallThreshold int64 = 1024
)

// stallDetectReader wraps a response body and aborts it when less than
// threshold bytes are read during a period of timeout. A stalled body reads
// as ErrBodyStalled, which classifies as a timeout.
type stallDetectReader struct {
	body      io.ReadCloser
	timeout   time.Duration
	threshold int64

	lk      sync.Mutex
	period  int64
	stalled bool
	timer   *time.Timer
	closed  bool
}

func newStallDetectReader(body io.ReadCloser, timeout time.Duration, threshold int64) io.ReadCloser {
	if timeout <= 0 {
		return body
	}
	sr := &stallDetectReader{
		body:      body,
		timeout:   timeout,
		threshold: threshold,
	}
	sr.lk.Lock()
	sr.timer = time.AfterFunc(timeout, sr.check)
	sr.lk.Unlock()
	return sr
}

func (sr *stallDetectReader) check() {
	sr.lk.Lock()
	defer sr.lk.Unlock()

	if sr.closed {
		return
	}
	if sr.period < sr.threshold {
		sr.stalled = true
		// unblocks any pending Read
		sr.body.Close()
		return
	}
	sr.period = 0
	sr.timer.Reset(sr.timeout)
}

func (sr *stallDetectReader) Read(p []byte) (int, error) {
	n, err := sr.body.Read(p)

	sr.lk.Lock()
	defer sr.lk.Unlock()
	sr.period += int64(n)
	if sr.stalled {
		return n, ErrBodyStalled
	}
	return n, err
}

func (sr *stallDetectReader) Close() error {
	sr.lk.Lock()
	already := sr.closed
	sr.closed = true
	sr.timer.Stop()
	sr.lk.Unlock()

	if already {
		return nil
	}
	return sr.body.Close()
}
