package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
// It lets the classifier recognize transport errors without importing them.
type StatusCoder interface {
	HTTPStatusCode() int
}

// RetryAfterer is implemented by errors that carry a server wait hint.
type RetryAfterer interface {
	RetryAfter() (time.Duration, bool)
}

// Classifier turns a failure into a retry decision. op names the operation
// and only appears in the message.
type Classifier interface {
	Classify(op string, err error) *Error
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(op string, err error) *Error

// Classify calls f(op, err).
func (f ClassifierFunc) Classify(op string, err error) *Error {
	return f(op, err)
}

// Default is the status/condition policy table used when no classifier is configured.
var Default Classifier = ClassifierFunc(Classify)

// Classify applies the default policy:
//
//	400              terminal   bad_request
//	401, 403         terminal   unauthorized
//	404              terminal   not_found
//	429              backoff    rate_limited (Retry-After honored)
//	5xx              backoff    server_error
//	timeout          backoff    timeout
//	connection/DNS   backoff    connection_error
//	malformed body   terminal   malformed_response
//	cancelled ctx    terminal   cancelled
//	anything else    terminal   other
//
// An err that already is an *Error is returned unchanged. A nil err yields nil.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Category: Terminal, Kind: KindCancelled, Message: describe(op, "context cancelled"), Err: err}
	}

	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return &Error{Category: Terminal, Kind: KindMalformedResponse, Message: describe(op, "unexpected response envelope"), Err: err}
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return classifyStatus(op, sc.HTTPStatusCode(), err)
	}

	if isTimeout(err) {
		return &Error{Category: RetryBackoff, Kind: KindTimeout, Message: describe(op, "request timed out"), Err: err}
	}

	if isConnection(err) {
		return &Error{Category: RetryBackoff, Kind: KindConnectionError, Message: describe(op, "connection failed"), Err: err}
	}

	return &Error{Category: Terminal, Kind: KindOther, Message: describe(op, "unrecognized failure"), Err: err}
}

func classifyStatus(op string, status int, err error) *Error {
	e := &Error{StatusCode: status, Err: err}

	switch {
	case status == http.StatusBadRequest:
		e.Category, e.Kind = Terminal, KindBadRequest
		e.Message = describe(op, "malformed request")
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		e.Category, e.Kind = Terminal, KindUnauthorized
		e.Message = describe(op, "authorization failed, check the API key")
	case status == http.StatusNotFound:
		e.Category, e.Kind = Terminal, KindNotFound
		e.Message = describe(op, "resource not found")
	case status == http.StatusTooManyRequests:
		e.Category, e.Kind = RetryBackoff, KindRateLimited
		e.Message = describe(op, "rate limited")
	case status >= 500 && status <= 599:
		e.Category, e.Kind = RetryBackoff, KindServerError
		e.Message = describe(op, "server error")
	default:
		e.Category, e.Kind = Terminal, KindOther
		e.Message = describe(op, "unexpected status "+strconv.Itoa(status))
	}

	if e.Category == RetryBackoff {
		var ra RetryAfterer
		if errors.As(err, &ra) {
			if d, ok := ra.RetryAfter(); ok && d > 0 {
				e.RetryAfter = d
			}
		}
	}

	return e
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnection(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func describe(op, msg string) string {
	if op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", op, msg)
}

// maxRetryAfterSeconds is the largest delta-seconds value representable as a time.Duration.
const maxRetryAfterSeconds = math.MaxInt64 / int64(time.Second)

// ParseRetryAfter parses a Retry-After header value, either delta-seconds or an
// HTTP-date relative to now. Negative or unparseable values report false.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		if secs > maxRetryAfterSeconds {
			secs = maxRetryAfterSeconds
		}
		return time.Duration(secs) * time.Second, true
	}

	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			return 0, true
		}
		return d, true
	}

	return 0, false
}
