package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestTransientAndPermanentMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "transient with cause",
			err:     NewTransient(errors.New("connection reset")),
			wantMsg: "transient error: connection reset",
		},
		{
			name:    "transient formatted",
			err:     NewTransientf("feed unavailable: %s", "503"),
			wantMsg: "transient error: feed unavailable: 503",
		},
		{
			name:    "permanent with cause",
			err:     NewPermanent(errors.New("bad key")),
			wantMsg: "permanent error: bad key",
		},
		{
			name:    "permanent formatted",
			err:     NewPermanentf("vendor list is %s", "empty"),
			wantMsg: "permanent error: vendor list is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}

func TestNilCausesStayNil(t *testing.T) {
	if NewTransient(nil) != nil {
		t.Error("NewTransient(nil) should be nil")
	}
	if NewPermanent(nil) != nil {
		t.Error("NewPermanent(nil) should be nil")
	}
	if NewFetchError("nvd", "VMware", nil) != nil {
		t.Error("NewFetchError with nil cause should be nil")
	}
	if NewNotificationError("telegram", nil) != nil {
		t.Error("NewNotificationError with nil cause should be nil")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"explicit transient", NewTransient(errors.New("timeout")), true},
		{"explicit permanent", NewPermanent(errors.New("denied")), false},
		{"wrapped transient", fmt.Errorf("cycle: %w", NewTransient(errors.New("eof"))), true},
		{"timeout sentinel", ErrTimeout, true},
		{"rate limit sentinel", fmt.Errorf("nvd: %w", ErrRateLimit), true},
		{"not found sentinel", ErrNotFound, false},
		{"malformed record", fmt.Errorf("entry 3: %w", ErrMalformedRecord), false},
		{"unknown error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	if IsPermanent(nil) {
		t.Error("nil should not be permanent")
	}
	if !IsPermanent(fmt.Errorf("wrapped: %w", NewPermanent(errors.New("x")))) {
		t.Error("wrapped permanent error should be permanent")
	}
	if IsPermanent(NewTransient(errors.New("x"))) {
		t.Error("transient error should not be permanent")
	}
}

func TestFetchError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewFetchError("nvd", "Sophos", cause)

	if !IsFetchError(err) {
		t.Fatal("expected FetchError")
	}
	if !IsFetchError(fmt.Errorf("vendor pass: %w", err)) {
		t.Error("expected wrapped FetchError to be detected")
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !strings.Contains(err.Error(), "Sophos") {
		t.Errorf("expected vendor in message, got %q", err.Error())
	}
	if IsFetchError(cause) {
		t.Error("plain error should not be a FetchError")
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status        int
		wantNil       bool
		wantTransient bool
		wantSentinel  error
	}{
		{status: http.StatusOK, wantNil: true},
		{status: http.StatusNoContent, wantNil: true},
		{status: http.StatusTooManyRequests, wantTransient: true, wantSentinel: ErrRateLimit},
		{status: http.StatusGatewayTimeout, wantTransient: true, wantSentinel: ErrTimeout},
		{status: http.StatusServiceUnavailable, wantTransient: true},
		{status: http.StatusUnauthorized, wantSentinel: ErrUnauthorized},
		{status: http.StatusForbidden, wantSentinel: ErrForbidden},
		{status: http.StatusNotFound, wantSentinel: ErrNotFound},
		{status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ClassifyHTTPStatus("nvd", "Lenovo", tt.status)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}

			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected FetchError, got %T", err)
			}
			if fetchErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", fetchErr.StatusCode, tt.status)
			}
			if got := IsTransient(err); got != tt.wantTransient {
				t.Errorf("IsTransient() = %v, want %v", got, tt.wantTransient)
			}
			if !tt.wantTransient && !IsPermanent(err) {
				t.Error("expected non-transient status to be permanent")
			}
			if tt.wantSentinel != nil && !errors.Is(err, tt.wantSentinel) {
				t.Errorf("expected errors.Is(err, %v)", tt.wantSentinel)
			}
		})
	}
}

func TestNotificationError(t *testing.T) {
	cause := errors.New("status 400")
	err := NewNotificationError("telegram", cause)

	if !IsNotificationError(err) {
		t.Fatal("expected NotificationError")
	}
	if got := err.Error(); got != "notify telegram: status 400" {
		t.Errorf("Error() = %q", got)
	}
	if errors.Unwrap(err) != cause {
		t.Error("expected Unwrap to return cause")
	}
	if IsFetchError(err) {
		t.Error("NotificationError should not be a FetchError")
	}
}
