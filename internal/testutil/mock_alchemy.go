// Package testutil provides a mock Alchemy server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// TestAPIKey satisfies the Alchemy key format.
const TestAPIKey = "test_key_0123456789abcdefghijklmnop"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RPCHandler answers one JSON-RPC call. Returning a non-nil *RPCError sends a
// JSON-RPC error object with HTTP 200.
type RPCHandler func(params json.RawMessage) (result any, rpcErr *RPCError)

// RPCError is the JSON-RPC error object written by the mock.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcCall struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// MockAlchemy is a configurable mock of the NFT and JSON-RPC APIs.
type MockAlchemy struct {
	server *httptest.Server
	apiKey string

	mu          sync.Mutex
	handlers    map[string]http.HandlerFunc
	sequences   map[string][]MockResponse
	rpcHandlers map[string]RPCHandler

	requestCount int
	pathCounts   map[string]int
	methodCounts map[string]int
	lastRequest  *http.Request
}

// NewMockAlchemy starts a mock server that expects apiKey in request paths.
func NewMockAlchemy(apiKey string) *MockAlchemy {
	m := &MockAlchemy{
		apiKey:       apiKey,
		handlers:     make(map[string]http.HandlerFunc),
		sequences:    make(map[string][]MockResponse),
		rpcHandlers:  make(map[string]RPCHandler),
		pathCounts:   make(map[string]int),
		methodCounts: make(map[string]int),
	}

	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the mock server URL, usable as the client's BaseURL.
func (m *MockAlchemy) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAlchemy) Close() {
	m.server.Close()
}

// NFTPath returns the path of an NFT API method, e.g. getNFTs.
func (m *MockAlchemy) NFTPath(method string) string {
	return fmt.Sprintf("/nft/v2/%s/%s", m.apiKey, method)
}

// RPCPath returns the JSON-RPC path.
func (m *MockAlchemy) RPCPath() string {
	return "/v2/" + m.apiKey
}

// Reset clears all tracking counters.
func (m *MockAlchemy) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.methodCounts = make(map[string]int)
	m.lastRequest = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAlchemy) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAlchemy) SetResponse(path string, resp MockResponse) {
	m.SetSequence(path, resp)
}

// SetSequence scripts successive responses for a path. The last response
// repeats once the sequence is used up.
func (m *MockAlchemy) SetSequence(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[path] = responses
}

// SetRPCHandler answers JSON-RPC calls of method.
func (m *MockAlchemy) SetRPCHandler(method string, handler RPCHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rpcHandlers[method] = handler
}

// RequestCount returns the number of requests made to the server.
func (m *MockAlchemy) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// PathCount returns the number of requests made to path.
func (m *MockAlchemy) PathCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pathCounts[path]
}

// MethodCount returns the number of JSON-RPC calls of method.
func (m *MockAlchemy) MethodCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.methodCounts[method]
}

// LastRequest returns a clone of the last request received.
func (m *MockAlchemy) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

func (m *MockAlchemy) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.pathCounts[r.URL.Path]++
	m.lastRequest = r.Clone(r.Context())

	handler, hasHandler := m.handlers[r.URL.Path]
	var scripted *MockResponse
	if seq := m.sequences[r.URL.Path]; len(seq) > 0 {
		resp := seq[0]
		scripted = &resp
		if len(seq) > 1 {
			m.sequences[r.URL.Path] = seq[1:]
		}
	}
	m.mu.Unlock()

	switch {
	case hasHandler:
		handler(w, r)
	case scripted != nil:
		writeMock(w, *scripted)
	case r.URL.Path == m.RPCPath():
		m.serveRPC(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no mock for " + r.URL.Path})
	}
}

func (m *MockAlchemy) serveRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// A JSON array is a batch request.
	if len(body) > 0 && body[0] == '[' {
		var calls []rpcCall
		if err := json.Unmarshal(body, &calls); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		out := make([]map[string]any, 0, len(calls))
		for _, call := range calls {
			out = append(out, m.answer(call))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	var call rpcCall
	if err := json.Unmarshal(body, &call); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, m.answer(call))
}

func (m *MockAlchemy) answer(call rpcCall) map[string]any {
	m.mu.Lock()
	m.methodCounts[call.Method]++
	handler, ok := m.rpcHandlers[call.Method]
	m.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": call.ID}
	if !ok {
		resp["error"] = RPCError{Code: -32601, Message: "method not found: " + call.Method}
		return resp
	}

	result, rpcErr := handler(call.Params)
	if rpcErr != nil {
		resp["error"] = rpcErr
		return resp
	}
	resp["result"] = result
	return resp
}

func writeMock(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter int) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Too many requests"}`,
	}
	if retryAfter > 0 {
		resp.Headers = map[string]string{"Retry-After": strconv.Itoa(retryAfter)}
	}
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}
