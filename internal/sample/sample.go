// Package sample defines the tagged measurement result shared by all analyzers.
//
// A Sample is either a success carrying a typed payload, or a timeout/error
// carrying only error detail. Payload fields are never populated on failure,
// so "zero" and "unavailable" stay distinguishable after JSON encoding.
package sample

import (
	"context"
	"errors"
	"net"
	"time"
)

// Status is the outcome of one measurement.
type Status string

const (
	StatusSuccess Status = "success"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// IsSuccess reports whether the status is StatusSuccess.
func (s Status) IsSuccess() bool { return s == StatusSuccess }

// Sample is one timestamped analyzer output.
type Sample[T any] struct {
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	Result    *T        `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Success builds a successful sample around v.
func Success[T any](ts time.Time, v T) Sample[T] {
	return Sample[T]{Timestamp: ts, Status: StatusSuccess, Result: &v}
}

// Failure builds a non-success sample. The status is derived from err.
func Failure[T any](ts time.Time, err error) Sample[T] {
	return FailureWithStatus[T](ts, StatusOf(err), err)
}

// FailureWithStatus builds a non-success sample with an explicit status.
// A success status is coerced to error since a failure never carries a payload.
func FailureWithStatus[T any](ts time.Time, status Status, err error) Sample[T] {
	if status == StatusSuccess {
		status = StatusError
	}
	s := Sample[T]{Timestamp: ts, Status: status}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// OK reports whether the sample succeeded and carries a payload.
func (s Sample[T]) OK() bool {
	return s.Status == StatusSuccess && s.Result != nil
}

// Value returns the payload and true for successful samples.
func (s Sample[T]) Value() (T, bool) {
	if !s.OK() {
		var zero T
		return zero, false
	}
	return *s.Result, true
}

// StatusOf classifies an error as timeout or error. A nil error is a success.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusError
}
