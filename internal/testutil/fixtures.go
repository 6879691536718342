package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// PageKey is the cursor the paged fixtures hand out for page n (1-based).
func PageKey(n int) string {
	return "page-" + strconv.Itoa(n)
}

func pageFromKey(key string) int {
	if key == "" {
		return 1
	}
	var n int
	if _, err := fmt.Sscanf(key, "page-%d", &n); err != nil || n < 1 {
		return -1
	}
	return n
}

// NFTFixture returns the JSON object of token i of contract.
func NFTFixture(contract string, i int) map[string]any {
	return map[string]any{
		"contract": map[string]any{"address": contract},
		"id": map[string]any{
			"tokenId":       fmt.Sprintf("0x%x", i),
			"tokenMetadata": map[string]any{"tokenType": "ERC721"},
		},
		"balance":     "1",
		"title":       fmt.Sprintf("Token #%d", i),
		"description": "fixture",
		"tokenUri": map[string]any{
			"raw":     fmt.Sprintf("ipfs://QmFixture/%d", i),
			"gateway": fmt.Sprintf("https://ipfs.io/ipfs/QmFixture/%d", i),
		},
		"metadata": map[string]any{"name": fmt.Sprintf("Token #%d", i)},
	}
}

// ServeNFTPages serves `pages` pages of getNFTs with perPage tokens each.
// Token ids run sequentially across pages; failAt, when > 0, makes that page
// answer with failStatus.
func (m *MockAlchemy) ServeNFTPages(pages, perPage, failAt, failStatus int) {
	m.SetHandler(m.NFTPath("getNFTs"), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("owner") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner is required"})
			return
		}

		page := pageFromKey(r.URL.Query().Get("pageKey"))
		if page < 1 || page > pages {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pageKey"})
			return
		}
		if page == failAt {
			writeJSON(w, failStatus, map[string]string{"error": "scripted failure"})
			return
		}

		nfts := make([]map[string]any, 0, perPage)
		for i := 0; i < perPage; i++ {
			nfts = append(nfts, NFTFixture("0xcontract", (page-1)*perPage+i))
		}
		body := map[string]any{
			"ownedNfts":  nfts,
			"totalCount": pages * perPage,
		}
		if page < pages {
			body["pageKey"] = PageKey(page + 1)
		}
		writeJSON(w, http.StatusOK, body)
	})
}

// TransferFixture returns the raw JSON-RPC object of transfer i.
func TransferFixture(i int) map[string]any {
	return map[string]any{
		"blockNum":      fmt.Sprintf("0x%x", 1000+i),
		"uniqueId":      fmt.Sprintf("0xhash%d:log:0", i),
		"hash":          fmt.Sprintf("0xhash%d", i),
		"from":          "0xfrom",
		"to":            "0xto",
		"value":         nil,
		"erc721TokenId": fmt.Sprintf("0x%x", i),
		"tokenId":       fmt.Sprintf("0x%x", i),
		"asset":         "BAYC",
		"category":      "erc721",
		"rawContract":   map[string]any{"address": "0xbc4c", "value": nil, "decimal": nil},
		"metadata":      map[string]any{"blockTimestamp": "2023-05-01T12:00:00.000Z"},
	}
}

// ServeTransferPages answers alchemy_getAssetTransfers with `pages` pages of
// perPage transfers each.
func (m *MockAlchemy) ServeTransferPages(pages, perPage int) {
	m.SetRPCHandler("alchemy_getAssetTransfers", func(params json.RawMessage) (any, *RPCError) {
		var args []struct {
			PageKey  string `json:"pageKey"`
			MaxCount string `json:"maxCount"`
		}
		if err := json.Unmarshal(params, &args); err != nil || len(args) != 1 {
			return nil, &RPCError{Code: -32602, Message: "invalid params"}
		}

		page := pageFromKey(args[0].PageKey)
		if page < 1 || page > pages {
			return nil, &RPCError{Code: -32602, Message: "invalid pageKey"}
		}

		transfers := make([]map[string]any, 0, perPage)
		for i := 0; i < perPage; i++ {
			transfers = append(transfers, TransferFixture((page-1)*perPage+i))
		}
		result := map[string]any{"transfers": transfers}
		if page < pages {
			result["pageKey"] = PageKey(page + 1)
		}
		return result, nil
	})
}

// ServeBalances answers eth_getBalance from balances (address -> hex wei).
// Unknown addresses have a zero balance.
func (m *MockAlchemy) ServeBalances(balances map[string]string) {
	m.SetRPCHandler("eth_getBalance", func(params json.RawMessage) (any, *RPCError) {
		var args []string
		if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 {
			return nil, &RPCError{Code: -32602, Message: "invalid params"}
		}
		if b, ok := balances[args[0]]; ok {
			return b, nil
		}
		return "0x0", nil
	})
}

// ServeBlockNumber answers eth_blockNumber.
func (m *MockAlchemy) ServeBlockNumber(n uint64) {
	m.SetRPCHandler("eth_blockNumber", func(json.RawMessage) (any, *RPCError) {
		return fmt.Sprintf("0x%x", n), nil
	})
}
