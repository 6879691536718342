// Package client provides the HTTP transport used by the fetcher and the
// Alchemy API glue. It performs exactly one HTTP exchange per call; retries,
// admission and classification live in the callers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for HTTP exchanges.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alchemy_requests_total",
		Help: "Total HTTP requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alchemy_request_duration_seconds",
		Help:    "HTTP request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

// Request describes one HTTP exchange.
type Request struct {
	Method string
	URL    string
	Query  url.Values

	// Body is JSON-encoded when non-nil.
	Body   any
	Header http.Header

	// Endpoint labels metrics and errors. It must not contain secrets;
	// when empty the URL path is used.
	Endpoint string

	// Timeout overrides the transport default for this request.
	Timeout time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Doer performs a single HTTP exchange. Any HTTP status is a successful
// exchange; only transport failures are returned as errors.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(ctx context.Context, req Request) (*Response, error)

// Do calls f(ctx, req).
func (f DoerFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Config holds the transport configuration.
type Config struct {
	// HTTPClient is used for every exchange (default: a client without its own timeout).
	HTTPClient *http.Client

	// UserAgent is sent on every request.
	UserAgent string

	// Timeout bounds each exchange unless the Request sets its own.
	Timeout time.Duration

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent:    "alchemy-client/1.0",
		Timeout:      30 * time.Second,
		MaxBodyBytes: 32 << 20,
	}
}

// HTTPTransport is the net/http implementation of Doer.
type HTTPTransport struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates an HTTPTransport.
func New(cfg Config) (*HTTPTransport, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %v)", cfg.Timeout)
	}
	if cfg.MaxBodyBytes < 0 {
		return nil, fmt.Errorf("max body bytes must be >= 0 (got %d)", cfg.MaxBodyBytes)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Deadlines come from the request context.
		httpClient = &http.Client{}
	}

	return &HTTPTransport{
		httpClient: httpClient,
		config:     cfg,
		logger:     log.With().Str("component", "http-transport").Logger(),
	}, nil
}

// Do performs the exchange and reads the full body.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (*Response, error) {
	endpoint := req.label()

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	timeout := t.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := req.build(ctx)
	if err != nil {
		return nil, err
	}
	if t.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", t.config.UserAgent)
	}
	httpReq.Header.Set("Accept", "application/json")

	t.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", httpReq.Method).
		Msg("Executing request")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, redactURL(err, endpoint)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if t.config.MaxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, t.config.MaxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (r Request) label() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	if u, err := url.Parse(r.URL); err == nil && u.Path != "" {
		return u.Path
	}
	return "unknown"
}

func (r Request) build(ctx context.Context) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", redactURL(err, r.label()))
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", redactURL(err, r.label()))
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if r.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

// redactURL replaces the request URL on a *url.Error with the endpoint label.
// Alchemy URLs carry the API key in their path. The wrapped cause is kept so
// net.Error and context errors still match through errors.As and errors.Is.
func redactURL(err error, endpoint string) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	return &url.Error{Op: ue.Op, URL: endpoint, Err: ue.Err}
}
