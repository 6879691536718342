package alchemy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/client"
	"github.com/Sternrassler/alchemy-client/pkg/retry"
)

// JSON-RPC error codes with a dedicated classification.
const (
	rpcInvalidParams = -32602
	rpcRateLimited   = 429
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is a JSON-RPC error object returned with HTTP 200.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// classifyRPCError maps a JSON-RPC error object onto the failure taxonomy.
func classifyRPCError(method string, e *RPCError) *classify.Error {
	ce := &classify.Error{Err: e}
	switch e.Code {
	case rpcInvalidParams:
		ce.Category, ce.Kind = classify.Terminal, classify.KindBadRequest
		ce.Message = method + ": invalid params"
	case rpcRateLimited:
		ce.Category, ce.Kind = classify.RetryBackoff, classify.KindRateLimited
		ce.StatusCode = http.StatusTooManyRequests
		ce.Message = method + ": rate limited"
	default:
		ce.Category, ce.Kind = classify.RetryBackoff, classify.KindServerError
		ce.Message = method + ": rpc error"
	}
	return ce
}

var rpcIDs atomic.Int64

func newRPCRequest(method string, params ...any) rpcRequest {
	if params == nil {
		params = []any{}
	}
	return rpcRequest{JSONRPC: "2.0", ID: rpcIDs.Add(1), Method: method, Params: params}
}

func (c *Client) rpcHTTPRequest(method string, body any) client.Request {
	return client.Request{
		Method:   http.MethodPost,
		URL:      c.config.rpcURL(),
		Body:     body,
		Endpoint: method,
		Timeout:  c.config.RequestTimeout,
	}
}

// decodeRPC unwraps a JSON-RPC response envelope into out.
func decodeRPC(method string, body []byte, out any) error {
	var env rpcResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return classify.Malformed("%s: decode json-rpc envelope: %v", method, err)
	}
	if env.Error != nil {
		return classifyRPCError(method, env.Error)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return classify.Malformed("%s: missing result", method)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return classify.Malformed("%s: decode result: %v", method, err)
	}
	return nil
}

// call performs a single JSON-RPC request through the limiter and retrier.
func (c *Client) call(ctx context.Context, method string, out any, params ...any) error {
	return retry.Do(ctx, c.retrier, method, c.config.Retry, func(ctx context.Context) error {
		req := c.rpcHTTPRequest(method, newRPCRequest(method, params...))
		resp, err := c.doer.Do(ctx, req)
		if err != nil {
			return err
		}
		if err := client.CheckStatus(resp, req); err != nil {
			return err
		}
		return decodeRPC(method, resp.Body, out)
	})
}
