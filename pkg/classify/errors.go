// Package classify maps transport and HTTP failures onto retry decisions.
//
// Classification is pure: the same error always yields an equal *Error and
// nothing is logged here. Callers log using the returned Category and Kind.
package classify

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors matched by (*Error).Is.
var (
	// ErrRetriesExhausted matches errors produced after the retry budget ran out.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")

	// ErrCancelled matches errors produced when the caller's context ended.
	ErrCancelled = errors.New("operation cancelled")
)

// Category is the retry decision for a failure.
type Category int

const (
	// Terminal failures are surfaced immediately.
	Terminal Category = iota
	// RetryImmediate failures are retried without delay.
	RetryImmediate
	// RetryBackoff failures are retried after an exponential delay.
	RetryBackoff
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Terminal:
		return "terminal"
	case RetryImmediate:
		return "retry_immediate"
	case RetryBackoff:
		return "retry_backoff"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Kind is the subtype of a classified failure.
type Kind string

// Terminal kinds.
const (
	KindBadRequest        Kind = "bad_request"
	KindUnauthorized      Kind = "unauthorized"
	KindNotFound          Kind = "not_found"
	KindMalformedResponse Kind = "malformed_response"
	KindOther             Kind = "other"
)

// Transient kinds.
const (
	KindRateLimited     Kind = "rate_limited"
	KindServerError     Kind = "server_error"
	KindTimeout         Kind = "timeout"
	KindConnectionError Kind = "connection_error"
)

// Outcome kinds produced by the retrier.
const (
	KindRetriesExhausted Kind = "retries_exhausted"
	KindCancelled        Kind = "cancelled"
)

// Transient reports whether k is one of the retryable kinds.
func (k Kind) Transient() bool {
	switch k {
	case KindRateLimited, KindServerError, KindTimeout, KindConnectionError:
		return true
	default:
		return false
	}
}

// Error is a classified failure.
type Error struct {
	Category   Category
	Kind       Kind
	StatusCode int
	// RetryAfter is a server-supplied wait hint; zero means none.
	RetryAfter time.Duration
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	status := ""
	if e.StatusCode != 0 {
		status = fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error%s: %s: %v", e.Kind, status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error%s: %s", e.Kind, status, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRetriesExhausted:
		return e.Kind == KindRetriesExhausted
	case ErrCancelled:
		return e.Kind == KindCancelled
	default:
		return false
	}
}

// Retryable reports whether the retrier may try again.
func (e *Error) Retryable() bool {
	return e.Category != Terminal
}

// Transient reports whether the failure kind is one of the retryable kinds.
func (e *Error) Transient() bool {
	return e.Kind.Transient()
}

// Terminal reports whether the failure stops the retrier.
func (e *Error) Terminal() bool {
	return e.Category == Terminal
}

// Last returns the final attempt's classified error for an exhausted retry,
// or e itself otherwise.
func (e *Error) Last() *Error {
	if e.Kind != KindRetriesExhausted {
		return e
	}
	var last *Error
	if errors.As(e.Err, &last) {
		return last
	}
	return e
}

// MalformedResponseError marks a response whose envelope is not what the caller expected.
type MalformedResponseError struct {
	Message string
}

func (e *MalformedResponseError) Error() string {
	return "malformed response: " + e.Message
}

// Malformed returns a *MalformedResponseError.
func Malformed(format string, args ...any) error {
	return &MalformedResponseError{Message: fmt.Sprintf(format, args...)}
}

// Cancelled wraps a context error as a terminal cancelled *Error.
func Cancelled(err error) *Error {
	return &Error{
		Category: Terminal,
		Kind:     KindCancelled,
		Message:  "context done",
		Err:      err,
	}
}

// Exhausted builds the error returned once attempts are used up.
func Exhausted(attempts int, last *Error) *Error {
	e := &Error{
		Category: Terminal,
		Kind:     KindRetriesExhausted,
		Message:  fmt.Sprintf("gave up after %d attempts", attempts),
		Err:      last,
	}
	if last != nil {
		e.StatusCode = last.StatusCode
	}
	return e
}
