package alchemy

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"testing"

	"github.com/Sternrassler/alchemy-client/internal/testutil"
	"github.com/Sternrassler/alchemy-client/pkg/classify"
)

const oneEtherHex = "0xde0b6b3a7640000"

func TestGetBalance(t *testing.T) {
	mock := newMock(t)
	mock.ServeBalances(map[string]string{"0xa": oneEtherHex})
	c := newTestClient(t, mock, Options{})

	wei, err := c.GetBalance(context.Background(), "0xa")
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	if wei.Cmp(want) != 0 {
		t.Errorf("GetBalance() = %s, want %s", wei, want)
	}
	if got := FormatEther(wei); got != "1" {
		t.Errorf("FormatEther() = %q, want 1", got)
	}
}

func TestGetBalance_EmptyAddress(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock, Options{})

	_, err := c.GetBalance(context.Background(), "")
	wantKind(t, err, classify.KindBadRequest)
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount() = %d, want 0", mock.RequestCount())
	}
}

func TestGetBalance_MethodNotFound(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock, Options{})

	// Unregistered methods answer -32601, which maps to a retryable rpc error.
	_, err := c.GetBalance(context.Background(), "0xa")
	ce := wantKind(t, err, classify.KindRetriesExhausted)
	if ce.Last().Kind != classify.KindServerError {
		t.Errorf("Last().Kind = %s, want server_error", ce.Last().Kind)
	}
}

func TestGetBalances_Batch(t *testing.T) {
	mock := newMock(t)
	mock.ServeBalances(map[string]string{"0xa": oneEtherHex, "0xb": "0x1"})
	c := newTestClient(t, mock, Options{})

	balances, err := c.GetBalances(context.Background(), []string{"0xa", "0xb", "0xc"})
	if err != nil {
		t.Fatalf("GetBalances() error = %v", err)
	}
	if len(balances) != 3 {
		t.Fatalf("balances = %v", balances)
	}
	if balances["0xb"].Int64() != 1 || balances["0xc"].Sign() != 0 {
		t.Errorf("balances = %v", balances)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount() = %d, want 1 batch request", mock.RequestCount())
	}
	if got := mock.MethodCount(methodGetBalance); got != 3 {
		t.Errorf("eth_getBalance calls = %d, want 3", got)
	}
}

func TestGetBalances_Empty(t *testing.T) {
	mock := newMock(t)
	c := newTestClient(t, mock, Options{})

	balances, err := c.GetBalances(context.Background(), nil)
	if err != nil || len(balances) != 0 {
		t.Errorf("GetBalances(nil) = %v, %v", balances, err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount() = %d, want 0", mock.RequestCount())
	}
}

func TestGetBalances_MissingResults(t *testing.T) {
	mock := newMock(t)
	mock.SetHandler(mock.RPCPath(), func(w http.ResponseWriter, r *http.Request) {
		var calls []struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&calls)
		w.Header().Set("Content-Type", "application/json")
		// Answer only the first call.
		json.NewEncoder(w).Encode([]map[string]any{{"jsonrpc": "2.0", "id": calls[0].ID, "result": "0x1"}})
	})
	c := newTestClient(t, mock, Options{})

	_, err := c.GetBalances(context.Background(), []string{"0xa", "0xb"})
	wantKind(t, err, classify.KindMalformedResponse)
}

func TestGetBalances_RPCErrorInBatch(t *testing.T) {
	mock := newMock(t)
	mock.SetRPCHandler(methodGetBalance, func(json.RawMessage) (any, *testutil.RPCError) {
		return nil, &testutil.RPCError{Code: -32602, Message: "invalid address"}
	})
	c := newTestClient(t, mock, Options{})

	_, err := c.GetBalances(context.Background(), []string{"0xa", "0xb"})
	wantKind(t, err, classify.KindBadRequest)
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount() = %d, want 1", mock.RequestCount())
	}
}

func TestBlockNumber(t *testing.T) {
	mock := newMock(t)
	mock.ServeBlockNumber(17_000_000)
	c := newTestClient(t, mock, Options{})

	n, err := c.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber() error = %v", err)
	}
	if n != 17_000_000 {
		t.Errorf("BlockNumber() = %d", n)
	}
}

func TestBlockNumber_HTTPServerErrorRetried(t *testing.T) {
	mock := newMock(t)
	mock.SetSequence(mock.RPCPath(),
		testutil.NewServerErrorResponse(),
		testutil.MockResponse{Body: `{"jsonrpc":"2.0","id":1,"result":"0x2a"}`},
	)
	c := newTestClient(t, mock, Options{})

	n, err := c.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber() error = %v", err)
	}
	if n != 42 {
		t.Errorf("BlockNumber() = %d, want 42", n)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount() = %d, want 2", mock.RequestCount())
	}
}

func TestDecodeRPC(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind classify.Kind
	}{
		{"ok", `{"jsonrpc":"2.0","id":1,"result":"0x1"}`, ""},
		{"null result", `{"jsonrpc":"2.0","id":1,"result":null}`, classify.KindMalformedResponse},
		{"missing result", `{"jsonrpc":"2.0","id":1}`, classify.KindMalformedResponse},
		{"not json", `oops`, classify.KindMalformedResponse},
		{"invalid params", `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"bad"}}`, classify.KindBadRequest},
		{"rate limited", `{"jsonrpc":"2.0","id":1,"error":{"code":429,"message":"slow down"}}`, classify.KindRateLimited},
		{"internal", `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"boom"}}`, classify.KindServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out string
			err := decodeRPC("eth_test", []byte(tt.body), &out)
			if tt.kind == "" {
				if err != nil || out != "0x1" {
					t.Fatalf("decodeRPC() = %q, %v", out, err)
				}
				return
			}
			if ce := classify.Classify("eth_test", err); ce == nil || ce.Kind != tt.kind {
				t.Errorf("Classify() = %v, want %s", ce, tt.kind)
			}
		})
	}
}

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei  string
		want string
	}{
		{"0", "0"},
		{"1", "0.000000000000000001"},
		{"1500000000000000000", "1.5"},
		{"123000000000000000000", "123"},
	}

	for _, tt := range tests {
		wei, _ := new(big.Int).SetString(tt.wei, 10)
		if got := FormatEther(wei); got != tt.want {
			t.Errorf("FormatEther(%s) = %q, want %q", tt.wei, got, tt.want)
		}
	}
	if got := FormatEther(nil); got != "0" {
		t.Errorf("FormatEther(nil) = %q", got)
	}
}

func TestParseWei(t *testing.T) {
	if wei, err := parseWei("0x"); err != nil || wei.Sign() != 0 {
		t.Errorf("parseWei(0x) = %v, %v", wei, err)
	}
	for _, bad := range []string{"100", "0xnothex"} {
		_, err := parseWei(bad)
		wantKind(t, err, classify.KindMalformedResponse)
	}
}
