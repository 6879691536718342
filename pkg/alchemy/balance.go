package alchemy

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/client"
	"github.com/Sternrassler/alchemy-client/pkg/retry"
)

const (
	methodGetBalance  = "eth_getBalance"
	methodBlockNumber = "eth_blockNumber"
)

// weiPerEther is 10^18.
var weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// GetBalance returns the latest balance of address in wei.
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, asBadRequest(methodGetBalance, errEmpty("address"))
	}

	var quantity string
	if err := c.call(ctx, methodGetBalance, &quantity, address, "latest"); err != nil {
		return nil, err
	}
	return parseWei(quantity)
}

// GetBalances returns the balances of several addresses using one JSON-RPC
// batch request. The batch is admitted and retried as a single call.
func (c *Client) GetBalances(ctx context.Context, addresses []string) (map[string]*big.Int, error) {
	if len(addresses) == 0 {
		return map[string]*big.Int{}, nil
	}

	batch := make([]rpcRequest, len(addresses))
	byID := make(map[int64]string, len(addresses))
	for i, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return nil, asBadRequest(methodGetBalance, errEmpty("address"))
		}
		batch[i] = newRPCRequest(methodGetBalance, addr, "latest")
		byID[batch[i].ID] = addr
	}

	return retry.Execute(ctx, c.retrier, methodGetBalance+" batch", c.config.Retry, func(ctx context.Context) (map[string]*big.Int, error) {
		req := c.rpcHTTPRequest(methodGetBalance, batch)
		resp, err := c.doer.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := client.CheckStatus(resp, req); err != nil {
			return nil, err
		}

		var responses []rpcResponse
		if err := json.Unmarshal(resp.Body, &responses); err != nil {
			return nil, classify.Malformed("%s batch: decode response: %v", methodGetBalance, err)
		}

		balances := make(map[string]*big.Int, len(responses))
		matched := 0
		for _, r := range responses {
			addr, ok := byID[r.ID]
			if !ok {
				continue
			}
			matched++
			if r.Error != nil {
				return nil, classifyRPCError(methodGetBalance, r.Error)
			}
			var quantity string
			if err := json.Unmarshal(r.Result, &quantity); err != nil {
				return nil, classify.Malformed("%s batch: decode result for %s: %v", methodGetBalance, addr, err)
			}
			wei, err := parseWei(quantity)
			if err != nil {
				return nil, err
			}
			balances[addr] = wei
		}
		if matched != len(byID) {
			return nil, classify.Malformed("%s batch: got %d results for %d requests", methodGetBalance, matched, len(byID))
		}
		return balances, nil
	})
}

// BlockNumber returns the latest block number. It doubles as a connectivity
// and API key check.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var quantity string
	if err := c.call(ctx, methodBlockNumber, &quantity); err != nil {
		return 0, err
	}
	n, err := parseHexQuantity(quantity)
	if err != nil {
		return 0, classify.Classify(methodBlockNumber, classify.Malformed("%s: %v", methodBlockNumber, err))
	}
	return n, nil
}

func parseWei(quantity string) (*big.Int, error) {
	s := strings.TrimSpace(quantity)
	if !strings.HasPrefix(s, "0x") {
		return nil, classify.Classify(methodGetBalance, classify.Malformed("balance %q lacks 0x prefix", quantity))
	}
	digits := s[2:]
	if digits == "" {
		digits = "0"
	}
	wei, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, classify.Classify(methodGetBalance, classify.Malformed("balance %q is not hex", quantity))
	}
	return wei, nil
}

// FormatEther renders a wei amount in ether with up to 18 decimals.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	ether := new(big.Float).SetPrec(256).SetInt(wei)
	ether.Quo(ether, weiPerEther)
	s := ether.Text('f', 18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}
