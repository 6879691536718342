package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/alchemy-client/pkg/classify"
)

// maxErrorBody bounds how much of a failed response body is kept on a StatusError.
const maxErrorBody = 512

// StatusError is an HTTP response with status >= 400. It satisfies
// classify.StatusCoder and classify.RetryAfterer.
type StatusError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Endpoint   string
	Body       []byte
	Header     http.Header

	// ReceivedAt anchors an HTTP-date Retry-After so repeated reads agree.
	ReceivedAt time.Time
}

// Error implements the error interface. The URL is omitted because it may
// carry credentials.
func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d %s", e.Method, e.Endpoint, e.StatusCode, status)
}

// HTTPStatusCode returns the response status.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// RetryAfter parses the Retry-After response header.
func (e *StatusError) RetryAfter() (time.Duration, bool) {
	if e.Header == nil {
		return 0, false
	}
	at := e.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	return classify.ParseRetryAfter(e.Header.Get("Retry-After"), at)
}

// CheckStatus returns a *StatusError when resp carries status >= 400.
func CheckStatus(resp *Response, req Request) error {
	if resp == nil {
		return classify.Malformed("nil response")
	}
	if resp.StatusCode < 400 {
		return nil
	}

	body := resp.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Method:     method,
		URL:        req.URL,
		Endpoint:   req.label(),
		Body:       append([]byte(nil), body...),
		Header:     resp.Header,
		ReceivedAt: time.Now(),
	}
}
