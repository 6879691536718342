package classify

import (
	"context"
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "with status and wrapped error",
			err:      &Error{Kind: KindServerError, StatusCode: 503, Message: "getNFTs: server error", Err: errors.New("http 503")},
			expected: "server_error error (status 503): getNFTs: server error: http 503",
		},
		{
			name:     "without status",
			err:      &Error{Kind: KindTimeout, Message: "request timed out"},
			expected: "timeout error: request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_IsSentinels(t *testing.T) {
	last := &Error{Category: RetryBackoff, Kind: KindServerError, StatusCode: 500, Message: "server error"}
	exhausted := Exhausted(4, last)

	if !errors.Is(exhausted, ErrRetriesExhausted) {
		t.Error("Exhausted() should match ErrRetriesExhausted")
	}
	if errors.Is(exhausted, ErrCancelled) {
		t.Error("Exhausted() should not match ErrCancelled")
	}
	if exhausted.StatusCode != 500 {
		t.Errorf("Exhausted() StatusCode = %d, want 500", exhausted.StatusCode)
	}
	if exhausted.Last() != last {
		t.Error("Last() should return the final attempt's error")
	}
	if exhausted.Retryable() {
		t.Error("exhausted error must be terminal")
	}

	cancelled := Cancelled(context.Canceled)
	if !errors.Is(cancelled, ErrCancelled) {
		t.Error("Cancelled() should match ErrCancelled")
	}
	if !errors.Is(cancelled, context.Canceled) {
		t.Error("Cancelled() should wrap the context error")
	}
	if cancelled.Last() != cancelled {
		t.Error("Last() on a non-exhausted error returns itself")
	}
}

func TestKind_Transient(t *testing.T) {
	transient := []Kind{KindRateLimited, KindServerError, KindTimeout, KindConnectionError}
	for _, k := range transient {
		if !k.Transient() {
			t.Errorf("%s should be transient", k)
		}
	}
	terminal := []Kind{KindBadRequest, KindUnauthorized, KindNotFound, KindMalformedResponse, KindOther, KindRetriesExhausted, KindCancelled}
	for _, k := range terminal {
		if k.Transient() {
			t.Errorf("%s should not be transient", k)
		}
	}
}

func TestCategory_String(t *testing.T) {
	if Terminal.String() != "terminal" || RetryImmediate.String() != "retry_immediate" || RetryBackoff.String() != "retry_backoff" {
		t.Error("unexpected category names")
	}
	if Category(9).String() != "category(9)" {
		t.Errorf("unknown category = %q", Category(9).String())
	}
}

func TestError_Predicates(t *testing.T) {
	tests := []struct {
		err           *Error
		wantTransient bool
		wantTerminal  bool
		wantRetryable bool
	}{
		{&Error{Category: RetryBackoff, Kind: KindRateLimited}, true, false, true},
		{&Error{Category: RetryImmediate, Kind: KindConnectionError}, true, false, true},
		{&Error{Category: Terminal, Kind: KindNotFound}, false, true, false},
		{Exhausted(4, &Error{Category: RetryBackoff, Kind: KindServerError}), false, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			if got := tt.err.Transient(); got != tt.wantTransient {
				t.Errorf("Transient() = %v, want %v", got, tt.wantTransient)
			}
			if got := tt.err.Terminal(); got != tt.wantTerminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.wantTerminal)
			}
			if got := tt.err.Retryable(); got != tt.wantRetryable {
				t.Errorf("Retryable() = %v, want %v", got, tt.wantRetryable)
			}
		})
	}
}
