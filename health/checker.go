package health

import (
	"context"
	"time"
)

// Checker is a component that can report whether it is working. In
// this package a component is usually one cache server endpoint or a
// whole client's server pool.
type Checker interface {
	// Name identifies the checker, e.g. the server endpoint it probes.
	Name() string

	// Check performs the health check and returns the result.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a named Checker from a function.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name identifies the checker.
func (f *CheckerFunc) Name() string { return f.name }

// Check runs the wrapped function.
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

// Status grades how usable a component is.
type Status int

const (
	// StatusHealthy means the component is fully working.
	StatusHealthy Status = iota
	// StatusDegraded means the component works with reduced capacity,
	// e.g. a pool with some servers down.
	StatusDegraded
	// StatusUnhealthy means the component is not working.
	StatusUnhealthy
)

var statusNames = [...]string{"healthy", "degraded", "unhealthy"}

// String returns the lower-case name of the status.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Result is the outcome of one health check.
type Result struct {
	// Status grades the component.
	Status Status

	// Message is a human-readable account of the status.
	Message string

	// Details carries check-specific metadata, e.g. per-server
	// responsiveness.
	Details map[string]any

	// Duration is how long the check took.
	Duration time.Duration

	// Timestamp is when the check ran.
	Timestamp time.Time

	// Error is the failure behind an unhealthy status, when there is one.
	Error error
}

// Healthy builds a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded builds a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy builds an unhealthy result carrying the causing error.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails returns the result with its details set.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration returns the result with its duration set.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}
