package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTransientError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "with cause",
			err:     NewTransient(errors.New("server selection error")),
			wantMsg: "transient error: server selection error",
		},
		{
			name:    "with nil cause",
			err:     NewTransient(nil),
			wantMsg: "",
		},
		{
			name:    "with formatted error",
			err:     NewTransientf("corpus query failed: %s", "timeout"),
			wantMsg: "transient error: corpus query failed: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				return
			}
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}

func TestPermanentError(t *testing.T) {
	err := NewPermanentf("invalid input: %s", "malformed")
	if got := err.Error(); got != "permanent error: invalid input: malformed" {
		t.Errorf("Error() = %v", got)
	}
	if NewPermanent(nil) != nil {
		t.Error("expected nil for nil cause")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{name: "nil error", err: nil, want: ErrorClassUnknown},
		{name: "explicit transient", err: NewTransient(errors.New("x")), want: ErrorClassTransient},
		{name: "explicit permanent", err: NewPermanent(errors.New("x")), want: ErrorClassPermanent},
		{name: "wrapped transient", err: fmt.Errorf("batch 2: %w", NewTransient(errors.New("x"))), want: ErrorClassTransient},
		{name: "timeout sentinel", err: ErrTimeout, want: ErrorClassTransient},
		{name: "deadline exceeded", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: ErrorClassTransient},
		{name: "cancelled", err: context.Canceled, want: ErrorClassPermanent},
		{name: "session expired", err: ErrSessionExpired, want: ErrorClassPermanent},
		{name: "no inventory", err: fmt.Errorf("audit: %w", ErrNoInventory), want: ErrorClassPermanent},
		{name: "unknown", err: errors.New("boom"), want: ErrorClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyStoreError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantNil       bool
		wantTransient bool
	}{
		{name: "nil error", err: nil, wantNil: true},
		{name: "server selection", err: errors.New("server selection error: context deadline exceeded"), wantTransient: true},
		{name: "locked sqlite", err: errors.New("database is locked"), wantTransient: true},
		{name: "auth failure", err: errors.New("(AuthenticationFailed) Authentication failed."), wantTransient: false},
		{name: "invalid regex", err: errors.New("Regular expression is invalid"), wantTransient: false},
		{name: "already permanent", err: NewPermanentf("bad"), wantTransient: false},
		{name: "unrecognised", err: errors.New("something odd"), wantTransient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyStoreError(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if IsTransient(got) != tt.wantTransient {
				t.Errorf("IsTransient(%v) = %v, want %v", got, IsTransient(got), tt.wantTransient)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error does not wrap the original")
			}
		})
	}
}

func TestIsInputRejection(t *testing.T) {
	for _, err := range []error{ErrInvalidInput, ErrNoInventory, ErrSessionNotFound, ErrSessionExpired, ErrSessionForbidden} {
		if !IsInputRejection(fmt.Errorf("wrapped: %w", err)) {
			t.Errorf("expected %v to be an input rejection", err)
		}
	}
	if IsInputRejection(ErrTimeout) {
		t.Error("timeout must not be an input rejection")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("original error")
	if errors.Unwrap(NewTransient(cause)) != cause {
		t.Error("transient Unwrap() did not return the cause")
	}
	if errors.Unwrap(NewPermanent(cause)) != cause {
		t.Error("permanent Unwrap() did not return the cause")
	}
}
