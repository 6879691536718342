package alchemy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/alchemy-client/internal/testutil"
	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/client"
	"github.com/Sternrassler/alchemy-client/pkg/logging"
)

func TestGetNFTsForOwner_AllPages(t *testing.T) {
	mock := newMock(t)
	mock.ServeNFTPages(3, 2, 0, 0)
	c := newTestClient(t, mock, Options{})

	res := c.GetNFTsForOwner(context.Background(), "0xowner", NFTOptions{PageSize: 2})
	if !res.Success || res.Err != nil {
		t.Fatalf("Success = %v, Err = %v", res.Success, res.Err)
	}
	if res.PagesFetched != 3 || len(res.Items) != 6 {
		t.Fatalf("PagesFetched = %d, items = %d, want 3 and 6", res.PagesFetched, len(res.Items))
	}
	for i, nft := range res.Items {
		if want := fmt.Sprintf("0x%x", i); nft.ID.TokenID != want {
			t.Errorf("item %d TokenID = %q, want %q", i, nft.ID.TokenID, want)
		}
	}
	if !res.Items[0].HasMetadata() {
		t.Error("HasMetadata() = false for fixture token")
	}

	q := mock.LastRequest().URL.Query()
	if got := q.Get("pageKey"); got != testutil.PageKey(3) {
		t.Errorf("pageKey = %q, want %q", got, testutil.PageKey(3))
	}
	if got := q.Get("pageSize"); got != "2" {
		t.Errorf("pageSize = %q, want 2", got)
	}
	if got := q.Get("excludeFilters[]"); got != "SPAM" {
		t.Errorf("excludeFilters[] = %q, want SPAM", got)
	}
	if got := q.Get("withMetadata"); got != "true" {
		t.Errorf("withMetadata = %q, want true", got)
	}
	if got := q.Get("owner"); got != "0xowner" {
		t.Errorf("owner = %q", got)
	}
}

func TestGetNFTsForOwner_QueryOptions(t *testing.T) {
	mock := newMock(t)
	mock.ServeNFTPages(1, 1, 0, 0)
	c := newTestClient(t, mock, Options{})

	res := c.GetNFTsForOwner(context.Background(), "0xowner", NFTOptions{
		IncludeSpam:     true,
		WithoutMetadata: true,
		Contracts:       []string{"0xc1", "0xc2"},
	})
	if !res.Success {
		t.Fatalf("Err = %v", res.Err)
	}

	q := mock.LastRequest().URL.Query()
	if _, ok := q["excludeFilters[]"]; ok {
		t.Error("excludeFilters[] sent with IncludeSpam")
	}
	if got := q.Get("withMetadata"); got != "false" {
		t.Errorf("withMetadata = %q, want false", got)
	}
	if got := q["contractAddresses[]"]; len(got) != 2 || got[0] != "0xc1" || got[1] != "0xc2" {
		t.Errorf("contractAddresses[] = %v", got)
	}
	if got := q.Get("pageSize"); got != "100" {
		t.Errorf("pageSize = %q, want configured default 100", got)
	}
	if _, ok := q["pageKey"]; ok {
		t.Error("pageKey sent on first page")
	}
}

func TestGetNFTsForOwner_MaxPages(t *testing.T) {
	mock := newMock(t)
	mock.ServeNFTPages(5, 2, 0, 0)
	c := newTestClient(t, mock, Options{})

	res := c.GetNFTsForOwner(context.Background(), "0xowner", NFTOptions{PageSize: 2, MaxPages: 2})
	if !res.Success || !res.Truncated {
		t.Fatalf("Success = %v, Truncated = %v", res.Success, res.Truncated)
	}
	if len(res.Items) != 4 {
		t.Errorf("items = %d, want 4", len(res.Items))
	}
	if got := mock.PathCount(mock.NFTPath("getNFTs")); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestGetNFTsForOwner_TerminalFailureKeepsPartial(t *testing.T) {
	mock := newMock(t)
	mock.ServeNFTPages(3, 2, 2, http.StatusNotFound)
	c := newTestClient(t, mock, Options{})

	res := c.GetNFTsForOwner(context.Background(), "0xowner", NFTOptions{PageSize: 2})
	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if len(res.Items) != 2 || res.PagesFetched != 1 {
		t.Errorf("items = %d, pages = %d, want 2 and 1", len(res.Items), res.PagesFetched)
	}
	if res.Err.Kind != classify.KindNotFound {
		t.Errorf("Kind = %s, want not_found", res.Err.Kind)
	}
	if got := mock.PathCount(mock.NFTPath("getNFTs")); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestGetNFTsForOwner_ServerErrorExhaustsRetries(t *testing.T) {
	mock := newMock(t)
	mock.ServeNFTPages(3, 2, 2, http.StatusInternalServerError)
	c := newTestClient(t, mock, Options{})

	res := c.GetNFTsForOwner(context.Background(), "0xowner", NFTOptions{PageSize: 2})
	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if res.Err.Kind != classify.KindRetriesExhausted {
		t.Fatalf("Kind = %s, want retries_exhausted", res.Err.Kind)
	}
	if last := res.Err.Last(); last.Kind != classify.KindServerError || last.StatusCode != 500 {
		t.Errorf("Last() = %s/%d, want server_error/500", last.Kind, last.StatusCode)
	}
	// One call for page 1, then three attempts for page 2.
	if got := mock.PathCount(mock.NFTPath("getNFTs")); got != 4 {
		t.Errorf("requests = %d, want 4", got)
	}
	if len(res.Items) != 2 {
		t.Errorf("items = %d, want 2", len(res.Items))
	}
}

func TestGetNFTsForOwner_RateLimitedThenSucceeds(t *testing.T) {
	mock := newMock(t)
	path := mock.NFTPath("getNFTs")
	mock.SetSequence(path,
		testutil.NewRateLimitResponse(1),
		testutil.MockResponse{Body: `{"ownedNfts":[{"contract":{"address":"0xc"},"id":{"tokenId":"0x1"}}],"totalCount":1}`},
	)
	c := newTestClient(t, mock, Options{})

	res := c.GetNFTsForOwner(context.Background(), "0xowner", NFTOptions{})
	if !res.Success {
		t.Fatalf("Err = %v", res.Err)
	}
	if len(res.Items) != 1 || res.Items[0].Contract.Address != "0xc" {
		t.Errorf("items = %+v", res.Items)
	}
	if got := mock.PathCount(path); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestGetNFTsForOwner_MissingOwnedNFTsIsMalformed(t *testing.T) {
	mock := newMock(t)
	path := mock.NFTPath("getNFTs")
	mock.SetResponse(path, testutil.MockResponse{Body: `{"totalCount":0}`})
	c := newTestClient(t, mock, Options{})

	res := c.GetNFTsForOwner(context.Background(), "0xowner", NFTOptions{})
	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if res.Err.Kind != classify.KindMalformedResponse {
		t.Errorf("Kind = %s, want malformed_response", res.Err.Kind)
	}
	if got := mock.PathCount(path); got != 1 {
		t.Errorf("requests = %d, want 1 (malformed is terminal)", got)
	}
}

func TestGetNFTsForOwner_EmptyOwner(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock, Options{})

	res := c.GetNFTsForOwner(context.Background(), "  ", NFTOptions{})
	if res.Success || res.Err == nil || res.Err.Kind != classify.KindBadRequest {
		t.Fatalf("Success = %v, Err = %v, want bad_request", res.Success, res.Err)
	}
	if res.Items == nil {
		t.Error("Items = nil, want empty slice")
	}
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount() = %d, want 0", mock.RequestCount())
	}
}

func TestGetNFTsForOwner_APIKeyNotLeaked(t *testing.T) {
	mock := newMock(t)
	mock.ServeNFTPages(1, 1, 1, http.StatusUnauthorized)
	c := newTestClient(t, mock, Options{})

	res := c.GetNFTsForOwner(context.Background(), "0xowner", NFTOptions{})
	if res.Err == nil || res.Err.Kind != classify.KindUnauthorized {
		t.Fatalf("Err = %v, want unauthorized", res.Err)
	}
	if msg := res.Err.Error(); strings.Contains(msg, testutil.TestAPIKey) {
		t.Errorf("error message leaks the api key: %s", msg)
	}
}

func TestGetNFTsForOwner_ConnectionErrorDoesNotLeakAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	rec := &logging.Recorder{}
	cfg := DefaultConfig(testutil.TestAPIKey)
	cfg.BaseURL = baseURL
	cfg.Retry = fastPolicy(1)
	cfg.RequestTimeout = time.Second
	c, err := New(cfg, Options{Sink: rec})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := c.GetNFTsForOwner(context.Background(), "0xowner", NFTOptions{})
	if res.Err == nil {
		t.Fatal("Err = nil, want a connection failure")
	}
	if last := res.Err.Last(); last.Kind != classify.KindConnectionError {
		t.Errorf("last Kind = %s, want connection_error (err: %v)", last.Kind, res.Err)
	}
	if msg := res.Err.Error(); strings.Contains(msg, testutil.TestAPIKey) {
		t.Errorf("error message leaks the api key: %s", msg)
	}

	events := rec.Events()
	if len(events) == 0 {
		t.Fatal("no events recorded")
	}
	for _, e := range events {
		for k, v := range e.Fields {
			if strings.Contains(fmt.Sprint(v), testutil.TestAPIKey) {
				t.Errorf("event %q field %q leaks the api key: %v", e.Message, k, v)
			}
		}
	}
}

func TestGetNFTsForOwners(t *testing.T) {
	mock := newMock(t)
	mock.ServeNFTPages(2, 2, 0, 0)
	c := newTestClient(t, mock, Options{})

	results := c.GetNFTsForOwners(context.Background(), []string{"0xa", "0xb", ""}, NFTOptions{PageSize: 2}, 2)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for _, owner := range []string{"0xa", "0xb"} {
		res := results[owner]
		if !res.Success || len(res.Items) != 4 {
			t.Errorf("%s: Success = %v, items = %d, Err = %v", owner, res.Success, len(res.Items), res.Err)
		}
	}
	if res := results[""]; res.Success || res.Err.Kind != classify.KindBadRequest {
		t.Errorf("empty owner: Success = %v, Err = %v", res.Success, res.Err)
	}
	if got := mock.PathCount(mock.NFTPath("getNFTs")); got != 4 {
		t.Errorf("requests = %d, want 4", got)
	}
}

func TestGetNFTsForOwners_DuplicateOwnerFetchedOnce(t *testing.T) {
	mock := newMock(t)
	mock.ServeNFTPages(2, 2, 0, 0)
	c := newTestClient(t, mock, Options{})

	results := c.GetNFTsForOwners(context.Background(), []string{"0xa", "0xa"}, NFTOptions{PageSize: 2}, 2)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if res := results["0xa"]; !res.Success || len(res.Items) != 4 {
		t.Errorf("Success = %v, items = %d, Err = %v", res.Success, len(res.Items), res.Err)
	}
	if got := mock.PathCount(mock.NFTPath("getNFTs")); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestParseNFTsPage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantItems int
		wantNext  string
		wantErr   bool
	}{
		{"page with cursor", `{"ownedNfts":[{},{}],"pageKey":"k2"}`, 2, "k2", false},
		{"last page", `{"ownedNfts":[]}`, 0, "", false},
		{"missing ownedNfts", `{"pageKey":"k2"}`, 0, "", true},
		{"not json", `<html>`, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := parseNFTsPage(&client.Response{StatusCode: 200, Body: []byte(tt.body)})
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if ce := classify.Classify("getNFTs", err); ce.Kind != classify.KindMalformedResponse {
					t.Errorf("Kind = %s, want malformed_response", ce.Kind)
				}
				return
			}
			if len(page.Items) != tt.wantItems || page.NextCursor != tt.wantNext {
				t.Errorf("page = %d items / %q, want %d / %q", len(page.Items), page.NextCursor, tt.wantItems, tt.wantNext)
			}
		})
	}
}
