package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases
var (
	// ErrTransient indicates a temporary error that may succeed on a later cycle
	ErrTransient = errors.New("transient error")

	// ErrPermanent indicates a permanent error that will not go away by itself
	ErrPermanent = errors.New("permanent error")

	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates authentication failure
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates authorization failure
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("timeout")

	// ErrRateLimit indicates rate limiting
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrMalformedRecord marks a single feed entry or advisory article that is
	// missing a required field. Only that record is skipped.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrCorruptState marks a persisted state file that could not be decoded.
	ErrCorruptState = errors.New("corrupt state file")
)

// TransientError wraps an error to mark it as transient
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient error: %v", e.Cause)
	}
	return "transient error"
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// NewTransient creates a new transient error
func NewTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Cause: err}
}

// NewTransientf creates a new transient error with formatting
func NewTransientf(format string, args ...interface{}) error {
	return &TransientError{Cause: fmt.Errorf(format, args...)}
}

// PermanentError wraps an error to mark it as permanent
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permanent error: %v", e.Cause)
	}
	return "permanent error"
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// NewPermanent creates a new permanent error
func NewPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Cause: err}
}

// NewPermanentf creates a new permanent error with formatting
func NewPermanentf(format string, args ...interface{}) error {
	return &PermanentError{Cause: fmt.Errorf(format, args...)}
}

// IsTransient checks if an error is transient using errors.As
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}

	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMalformedRecord) {
		return false
	}

	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimit) {
		return true
	}

	return false
}

// IsPermanent checks if an error is permanent
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// FetchError reports a failed request against an upstream source (the CVE
// feed or the advisory page). Key names the vendor for feed requests and the
// page URL for advisory requests.
type FetchError struct {
	Source     string
	Key        string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (%s): status %d: %v", e.Source, e.Key, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, e.Key, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewFetchError builds a FetchError. A nil cause yields nil.
func NewFetchError(source, key string, cause error) error {
	if cause == nil {
		return nil
	}
	return &FetchError{Source: source, Key: key, Cause: cause}
}

// IsFetchError reports whether err wraps a FetchError
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}

// ClassifyHTTPStatus turns a non-2xx upstream status into a FetchError whose
// cause carries the transient/permanent classification. 2xx yields nil.
func ClassifyHTTPStatus(source, key string, status int) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var cause error
	switch {
	case status == http.StatusTooManyRequests:
		cause = NewTransient(ErrRateLimit)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		cause = NewTransient(ErrTimeout)
	case status >= 500:
		cause = NewTransientf("upstream returned %s", http.StatusText(status))
	case status == http.StatusUnauthorized:
		cause = NewPermanent(ErrUnauthorized)
	case status == http.StatusForbidden:
		cause = NewPermanent(ErrForbidden)
	case status == http.StatusNotFound:
		cause = NewPermanent(ErrNotFound)
	default:
		cause = NewPermanentf("unexpected status %s", http.StatusText(status))
	}

	return &FetchError{Source: source, Key: key, StatusCode: status, Cause: cause}
}

// NotificationError reports a failed delivery to a chat channel.
type NotificationError struct {
	Channel string
	Cause   error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Channel, e.Cause)
}

func (e *NotificationError) Unwrap() error {
	return e.Cause
}

// NewNotificationError builds a NotificationError. A nil cause yields nil.
func NewNotificationError(channel string, cause error) error {
	if cause == nil {
		return nil
	}
	return &NotificationError{Channel: channel, Cause: cause}
}

// IsNotificationError reports whether err wraps a NotificationError
func IsNotificationError(err error) bool {
	var notifyErr *NotificationError
	return errors.As(err, &notifyErr)
}
