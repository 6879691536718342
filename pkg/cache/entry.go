package cache

import (
	"net/http"
	"time"

	"github.com/Sternrassler/alchemy-client/pkg/client"
)

// DefaultTTL is the fallback TTL when the response carries no usable Expires header.
const DefaultTTL = 5 * time.Minute

// Entry is a cached response body.
type Entry struct {
	Data       []byte    `json:"data"`
	StatusCode int       `json:"status_code"`
	Expires    time.Time `json:"expires"`
	CachedAt   time.Time `json:"cached_at"`
}

// IsExpired reports whether the entry is stale at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time left until expiration at now, or 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Response rebuilds a client.Response from the entry.
func (e *Entry) Response() *client.Response {
	return &client.Response{
		StatusCode: e.StatusCode,
		Header:     http.Header{"X-Cache": {"HIT"}},
		Body:       append([]byte(nil), e.Data...),
	}
}

// FromResponse builds an Entry, honoring the Expires header when present.
func FromResponse(resp *client.Response, now time.Time) *Entry {
	if resp == nil {
		return nil
	}
	return &Entry{
		Data:       append([]byte(nil), resp.Body...),
		StatusCode: resp.StatusCode,
		Expires:    parseExpires(resp.Header, now),
		CachedAt:   now,
	}
}

// parseExpires returns the Expires header time, now+DefaultTTL when the
// header is missing or unparseable, or now when it lies in the past.
func parseExpires(headers http.Header, now time.Time) time.Time {
	if headers == nil {
		return now.Add(DefaultTTL)
	}
	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return now.Add(DefaultTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return now.Add(DefaultTTL)
	}
	if expires.Before(now) {
		return now
	}
	return expires
}
