package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/client"
	"github.com/Sternrassler/alchemy-client/pkg/logging"
	"github.com/Sternrassler/alchemy-client/pkg/retry"
)

// Prometheus metrics for paginated fetches.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alchemy_pages_fetched_total",
		Help: "Total pages fetched successfully",
	})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alchemy_fetches_total",
		Help: "Total paginated fetches by outcome",
	}, []string{"outcome"})
)

// PageRequest identifies the page to request.
type PageRequest struct {
	// Cursor is the opaque token from the previous page; empty for the first page.
	Cursor   string
	PageSize int
	// Number is the 1-based page index.
	Number int
}

// RequestBuilder produces the HTTP request for one page.
type RequestBuilder func(PageRequest) (client.Request, error)

// Page is one decoded page.
type Page[T any] struct {
	Items []T
	// NextCursor is empty on the last page.
	NextCursor string
}

// PageParser decodes a successful response. A missing envelope must be
// reported as classify.Malformed.
type PageParser[T any] func(*client.Response) (Page[T], error)

// Result is the outcome of a Fetch. Items holds every page fetched before
// Err, in server order, even when Success is false.
type Result[T any] struct {
	Success      bool
	Items        []T
	PagesFetched int
	Err          *classify.Error
	Truncated    bool
}

// Config holds fetcher defaults.
type Config struct {
	// PageSize is used when Fetch is called with pageSize <= 0.
	PageSize int

	// MaxPages is used when Fetch is called with maxPages == 0. Zero means unlimited.
	MaxPages int

	// Policy is the retry policy applied to every page request.
	Policy retry.Policy

	// PageDelay is an optional pause between pages.
	PageDelay time.Duration
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		PageSize: 100,
		MaxPages: 0,
		Policy:   retry.DefaultPolicy(),
	}
}

// Fetcher walks a cursor-paginated endpoint.
type Fetcher[T any] struct {
	doer    client.Doer
	retrier *retry.Retrier
	config  Config
	sink    logging.Sink

	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a Fetcher. Pages are rate limited only when the retrier
// carries a limiter (see retry.Retrier.Throttled); an unthrottled retrier is
// accepted and the fetcher then sends pages as fast as retries allow.
func NewFetcher[T any](doer client.Doer, retrier *retry.Retrier, cfg Config, sink logging.Sink) (*Fetcher[T], error) {
	if doer == nil {
		return nil, errors.New("doer is required")
	}
	if retrier == nil {
		return nil, errors.New("retrier is required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive (got %d)", cfg.PageSize)
	}
	if cfg.MaxPages < 0 {
		return nil, fmt.Errorf("max pages must be >= 0 (got %d)", cfg.MaxPages)
	}
	if cfg.PageDelay < 0 {
		return nil, fmt.Errorf("page delay must be >= 0 (got %v)", cfg.PageDelay)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}

	sink = logging.OrNop(sink)
	if !retrier.Throttled() {
		sink.Log(logging.Info, "fetcher has no rate limiter, pages are not throttled", nil)
	}

	return &Fetcher[T]{
		doer:    doer,
		retrier: retrier,
		config:  cfg,
		sink:    sink,
		sleep:   sleepContext,
	}, nil
}

// Config returns the fetcher configuration.
func (f *Fetcher[T]) Config() Config {
	return f.config
}

// Fetch retrieves pages until the server returns no cursor, maxPages pages
// have been fetched, or a page fails. pageSize <= 0 uses the configured
// default; maxPages == 0 uses the configured default and a negative value
// means unlimited.
func (f *Fetcher[T]) Fetch(ctx context.Context, build RequestBuilder, parse PageParser[T], pageSize, maxPages int) Result[T] {
	if pageSize <= 0 {
		pageSize = f.config.PageSize
	}
	if maxPages == 0 {
		maxPages = f.config.MaxPages
	}

	var (
		res    Result[T]
		cursor string
	)
	res.Items = []T{}

	for {
		if err := ctx.Err(); err != nil {
			return f.fail(res, classify.Cancelled(err))
		}

		pr := PageRequest{Cursor: cursor, PageSize: pageSize, Number: res.PagesFetched + 1}

		page, err := retry.Execute(ctx, f.retrier, fmt.Sprintf("page %d", pr.Number), f.config.Policy, func(ctx context.Context) (Page[T], error) {
			return f.fetchPage(ctx, build, parse, pr)
		})
		if err != nil {
			return f.fail(res, asClassified(err))
		}

		res.Items = append(res.Items, page.Items...)
		res.PagesFetched++
		pagesFetchedTotal.Inc()

		f.sink.Log(logging.Info, "page fetched", logging.Fields{
			"page":  pr.Number,
			"items": len(page.Items),
			"total": len(res.Items),
		})

		if page.NextCursor == "" {
			res.Success = true
			fetchesTotal.WithLabelValues("complete").Inc()
			f.sink.Log(logging.Info, "fetch complete", logging.Fields{
				"pages": res.PagesFetched,
				"total": len(res.Items),
			})
			return res
		}

		if maxPages > 0 && res.PagesFetched >= maxPages {
			res.Success = true
			res.Truncated = true
			fetchesTotal.WithLabelValues("truncated").Inc()
			f.sink.Log(logging.Warn, "page limit reached, results truncated", logging.Fields{
				"pages":     res.PagesFetched,
				"max_pages": maxPages,
				"total":     len(res.Items),
			})
			return res
		}

		cursor = page.NextCursor

		if f.config.PageDelay > 0 {
			if err := f.sleep(ctx, f.config.PageDelay); err != nil {
				return f.fail(res, classify.Cancelled(err))
			}
		}
	}
}

// fetchPage is one attempt: build, send, check status, parse.
func (f *Fetcher[T]) fetchPage(ctx context.Context, build RequestBuilder, parse PageParser[T], pr PageRequest) (Page[T], error) {
	req, err := build(pr)
	if err != nil {
		return Page[T]{}, &classify.Error{
			Category: classify.Terminal,
			Kind:     classify.KindBadRequest,
			Message:  "build page request",
			Err:      err,
		}
	}

	resp, err := f.doer.Do(ctx, req)
	if err != nil {
		return Page[T]{}, err
	}
	if err := client.CheckStatus(resp, req); err != nil {
		return Page[T]{}, err
	}

	return parse(resp)
}

func (f *Fetcher[T]) fail(res Result[T], ce *classify.Error) Result[T] {
	res.Success = false
	res.Err = ce
	fetchesTotal.WithLabelValues(string(ce.Kind)).Inc()

	last := ce.Last()
	f.sink.Log(logging.Error, "fetch failed", logging.Fields{
		"pages":       res.PagesFetched,
		"total":       len(res.Items),
		"error_kind":  string(ce.Kind),
		"cause_kind":  string(last.Kind),
		"status_code": last.StatusCode,
		"error":       ce,
	})
	return res
}

func asClassified(err error) *classify.Error {
	var ce *classify.Error
	if errors.As(err, &ce) {
		return ce
	}
	return classify.Classify("", err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
