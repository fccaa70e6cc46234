// internal/coordinator/options.go
package coordinator

import "time"

// DefaultLockTimeout is how long a lock stays valid without being refreshed.
const DefaultLockTimeout = 10 * time.Minute

// Recorder receives decision and failure counts. internal/metrics provides a Prometheus one.
type Recorder interface {
	RecordDecision(kind string)
	RecordStoreError(operation string)
	RecordExpired(count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordDecision(string)   {}
func (nopRecorder) RecordStoreError(string) {}
func (nopRecorder) RecordExpired(int)       {}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithLockTimeout sets the lock expiry. Zero disables expiry.
func WithLockTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout < 0 {
			timeout = 0
		}
		c.timeout = timeout
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}
