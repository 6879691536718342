package alchemy

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/client"
	"github.com/Sternrassler/alchemy-client/pkg/pagination"
)

const methodGetAssetTransfers = "alchemy_getAssetTransfers"

// DefaultTransferCategories selects NFT transfers only.
var DefaultTransferCategories = []string{"erc721", "erc1155"}

// Transfer is a normalized asset transfer.
type Transfer struct {
	Asset       string    `json:"asset"`
	TokenID     string    `json:"tokenId"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	BlockNumber uint64    `json:"blockNumber"`
	Hash        string    `json:"hash"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
	Value       float64   `json:"value"`
	Category    string    `json:"category"`
	Contract    string    `json:"contract,omitempty"`
	// ERC1155 lists every token moved by an erc1155 batch transfer.
	ERC1155 []ERC1155Token `json:"erc1155,omitempty"`
}

// ERC1155Token is one entry of an erc1155 transfer.
type ERC1155Token struct {
	TokenID string `json:"tokenId"`
	Value   string `json:"value"`
}

// Direction selects which side of the transfer the address is matched on.
type Direction int

const (
	// From matches transfers sent by the address.
	From Direction = iota
	// To matches transfers received by the address.
	To
)

// TransferOptions tunes GetAssetTransfers.
type TransferOptions struct {
	PageSize   int
	MaxPages   int
	Direction  Direction
	Categories []string
	// FromBlock and ToBlock default to "0x0" and "latest".
	FromBlock string
	ToBlock   string
}

type rawTransfer struct {
	BlockNum        string         `json:"blockNum"`
	Hash            string         `json:"hash"`
	From            string         `json:"from"`
	To              string         `json:"to"`
	Value           *float64       `json:"value"`
	TokenID         string         `json:"tokenId"`
	ERC721TokenID   string         `json:"erc721TokenId"`
	ERC1155Metadata []ERC1155Token `json:"erc1155Metadata"`
	Asset           string         `json:"asset"`
	Category        string         `json:"category"`
	RawContract     struct {
		Address string `json:"address"`
	} `json:"rawContract"`
	Metadata struct {
		BlockTimestamp string `json:"blockTimestamp"`
	} `json:"metadata"`
}

type transfersResult struct {
	Transfers *[]rawTransfer `json:"transfers"`
	PageKey   string         `json:"pageKey"`
}

// GetAssetTransfers fetches the NFT transfer history of address, page by page.
func (c *Client) GetAssetTransfers(ctx context.Context, address string, opts TransferOptions) pagination.Result[Transfer] {
	build, err := c.transfersRequestBuilder(address, opts)
	if err != nil {
		return pagination.Result[Transfer]{Items: []Transfer{}, Err: asBadRequest(methodGetAssetTransfers, err)}
	}
	return c.transfers.Fetch(ctx, build, parseTransfersPage, opts.PageSize, opts.MaxPages)
}

func (c *Client) transfersRequestBuilder(address string, opts TransferOptions) (pagination.RequestBuilder, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errEmpty("address")
	}

	categories := opts.Categories
	if len(categories) == 0 {
		categories = DefaultTransferCategories
	}
	fromBlock := opts.FromBlock
	if fromBlock == "" {
		fromBlock = "0x0"
	}
	toBlock := opts.ToBlock
	if toBlock == "" {
		toBlock = "latest"
	}

	return func(pr pagination.PageRequest) (client.Request, error) {
		params := map[string]any{
			"fromBlock":    fromBlock,
			"toBlock":      toBlock,
			"category":     categories,
			"withMetadata": true,
			"maxCount":     hexQuantity(uint64(pr.PageSize)),
		}
		if opts.Direction == To {
			params["toAddress"] = address
		} else {
			params["fromAddress"] = address
		}
		if pr.Cursor != "" {
			params["pageKey"] = pr.Cursor
		}

		return c.rpcHTTPRequest(methodGetAssetTransfers, newRPCRequest(methodGetAssetTransfers, params)), nil
	}, nil
}

func parseTransfersPage(resp *client.Response) (pagination.Page[Transfer], error) {
	var result transfersResult
	if err := decodeRPC(methodGetAssetTransfers, resp.Body, &result); err != nil {
		return pagination.Page[Transfer]{}, err
	}
	if result.Transfers == nil {
		return pagination.Page[Transfer]{}, classify.Malformed("%s: result has no transfers", methodGetAssetTransfers)
	}

	items := make([]Transfer, 0, len(*result.Transfers))
	for _, raw := range *result.Transfers {
		items = append(items, normalizeTransfer(raw))
	}
	return pagination.Page[Transfer]{Items: items, NextCursor: result.PageKey}, nil
}

func normalizeTransfer(raw rawTransfer) Transfer {
	t := Transfer{
		Asset:    raw.Asset,
		From:     raw.From,
		To:       raw.To,
		Hash:     raw.Hash,
		Category: raw.Category,
		Contract: raw.RawContract.Address,
		ERC1155:  raw.ERC1155Metadata,
	}

	switch {
	case raw.TokenID != "":
		t.TokenID = raw.TokenID
	case raw.ERC721TokenID != "":
		t.TokenID = raw.ERC721TokenID
	case len(raw.ERC1155Metadata) > 0:
		t.TokenID = raw.ERC1155Metadata[0].TokenID
	}

	if raw.Value != nil {
		t.Value = *raw.Value
	}
	if n, err := parseHexQuantity(raw.BlockNum); err == nil {
		t.BlockNumber = n
	}
	if ts, err := time.Parse(time.RFC3339, raw.Metadata.BlockTimestamp); err == nil {
		t.Timestamp = ts
	}
	return t
}

// hexQuantity encodes n as a JSON-RPC quantity ("0x" + lowercase hex).
func hexQuantity(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

func parseHexQuantity(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, fmt.Errorf("quantity %q lacks 0x prefix", s)
	}
	return strconv.ParseUint(s[2:], 16, 64)
}

// MarshalJSON omits a zero timestamp.
func (t Transfer) MarshalJSON() ([]byte, error) {
	type alias Transfer
	out := struct {
		alias
		Timestamp *time.Time `json:"timestamp,omitempty"`
	}{alias: alias(t)}
	if !t.Timestamp.IsZero() {
		ts := t.Timestamp
		out.Timestamp = &ts
	}
	return json.Marshal(out)
}
