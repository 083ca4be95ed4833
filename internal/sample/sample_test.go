package sample

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusSuccess},
		{"deadline", context.DeadlineExceeded, StatusTimeout},
		{"wrapped deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), StatusTimeout},
		{"net timeout", timeoutErr{}, StatusTimeout},
		{"plain error", errors.New("connection refused"), StatusError},
		{"canceled", context.Canceled, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestSuccessAndFailure(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s := Success(ts, 0.0)
	v, ok := s.Value()
	if !ok || v != 0 {
		t.Errorf("Success(0).Value() = %v, %v; want 0, true", v, ok)
	}

	f := Failure[float64](ts, context.DeadlineExceeded)
	if f.Status != StatusTimeout {
		t.Errorf("Failure status = %q, want timeout", f.Status)
	}
	if f.Result != nil {
		t.Error("Failure must not carry a result")
	}
	if _, ok := f.Value(); ok {
		t.Error("Failure.Value() reported ok")
	}

	coerced := FailureWithStatus[float64](ts, StatusSuccess, errors.New("boom"))
	if coerced.Status != StatusError {
		t.Errorf("FailureWithStatus(success) = %q, want error", coerced.Status)
	}
}

func TestSample_JSONDistinguishesZeroFromAbsent(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	zero, err := json.Marshal(Success(ts, 0.0))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(zero), `"result":0`) {
		t.Errorf("zero result dropped: %s", zero)
	}

	absent, err := json.Marshal(Failure[float64](ts, errors.New("x")))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(absent), `"result"`) {
		t.Errorf("failure encoded a result: %s", absent)
	}
}
