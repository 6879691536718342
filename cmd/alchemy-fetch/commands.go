package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/alchemy-client/pkg/alchemy"
)

func newNFTsCmd(o *rootOptions) *cobra.Command {
	var (
		opts        alchemy.NFTOptions
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "nfts <owner> [owner...]",
		Short: "List the NFTs held by one or more owners",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := o.newClient(ctx, "")
			if err != nil {
				return err
			}
			defer closeFn()

			if len(args) == 1 {
				res := c.GetNFTsForOwner(ctx, args[0], opts)
				return o.emit(newFetchOutput(res), res.Success)
			}

			results := c.GetNFTsForOwners(ctx, args, opts, concurrency)
			out := make(map[string]fetchOutput[alchemy.NFT], len(results))
			ok := true
			for owner, res := range results {
				out[owner] = newFetchOutput(res)
				ok = ok && res.Success
			}
			return o.emit(out, ok)
		},
	}

	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "items per page (default from ALCHEMY_PAGE_SIZE)")
	cmd.Flags().IntVar(&opts.MaxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	cmd.Flags().BoolVar(&opts.IncludeSpam, "include-spam", false, "include tokens flagged as spam")
	cmd.Flags().BoolVar(&opts.WithoutMetadata, "without-metadata", false, "skip token metadata")
	cmd.Flags().StringSliceVar(&opts.Contracts, "contract", nil, "only include these contract addresses")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "owners fetched in parallel")
	return cmd
}

func newTransfersCmd(o *rootOptions) *cobra.Command {
	var (
		opts      alchemy.TransferOptions
		direction string
	)

	cmd := &cobra.Command{
		Use:   "transfers <address>",
		Short: "List the NFT transfers of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(direction) {
			case "from":
				opts.Direction = alchemy.From
			case "to":
				opts.Direction = alchemy.To
			default:
				return fmt.Errorf("invalid --direction %q: want from or to", direction)
			}

			ctx := cmd.Context()
			c, closeFn, err := o.newClient(ctx, "")
			if err != nil {
				return err
			}
			defer closeFn()

			res := c.GetAssetTransfers(ctx, args[0], opts)
			return o.emit(newFetchOutput(res), res.Success)
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "from", "match transfers sent (from) or received (to)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "transfers per page (default from ALCHEMY_PAGE_SIZE)")
	cmd.Flags().IntVar(&opts.MaxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	cmd.Flags().StringSliceVar(&opts.Categories, "category", nil, "transfer categories (default erc721,erc1155)")
	cmd.Flags().StringVar(&opts.FromBlock, "from-block", "", "first block, hex (default 0x0)")
	cmd.Flags().StringVar(&opts.ToBlock, "to-block", "", "last block, hex (default latest)")
	return cmd
}

type metadataOutput struct {
	NFT         *alchemy.NFT    `json:"nft,omitempty"`
	ResolvedURI string          `json:"resolved_uri,omitempty"`
	Document    json.RawMessage `json:"document,omitempty"`
	Error       *errorOutput    `json:"error,omitempty"`
}

func newMetadataCmd(o *rootOptions) *cobra.Command {
	var fetchURI bool

	cmd := &cobra.Command{
		Use:   "metadata <contract> <token-id>",
		Short: "Show the metadata of one token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := o.newClient(ctx, "")
			if err != nil {
				return err
			}
			defer closeFn()

			nft, err := c.GetNFTMetadata(ctx, args[0], args[1])
			if err != nil {
				return o.emit(metadataOutput{Error: newErrorOutput(err)}, false)
			}

			out := metadataOutput{NFT: nft}
			if fetchURI && nft.TokenURI.Raw != "" {
				out.ResolvedURI = alchemy.ResolveIPFS(nft.TokenURI.Raw)
				resp, err := c.FetchTokenURI(ctx, nft.TokenURI.Raw)
				if err != nil {
					out.Error = newErrorOutput(err)
					return o.emit(out, false)
				}
				if json.Valid(resp.Body) {
					out.Document = resp.Body
				} else {
					o.logger.Warn().Str("uri", out.ResolvedURI).Msg("token uri document is not json")
				}
			}
			return o.emit(out, true)
		},
	}

	cmd.Flags().BoolVar(&fetchURI, "fetch-uri", false, "also download the token URI document (IPFS via public gateways)")
	return cmd
}

type balanceOutput struct {
	Wei   string `json:"wei"`
	Ether string `json:"ether"`
}

func newBalanceCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address> [address...]",
		Short: "Show the ether balance of addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := o.newClient(ctx, "")
			if err != nil {
				return err
			}
			defer closeFn()

			balances, err := c.GetBalances(ctx, args)
			if err != nil {
				return o.emit(map[string]any{"error": newErrorOutput(err)}, false)
			}

			out := make(map[string]balanceOutput, len(balances))
			for addr, wei := range balances {
				out[addr] = balanceOutput{Wei: wei.String(), Ether: alchemy.FormatEther(wei)}
			}
			return o.emit(out, true)
		},
	}
}

type validateOutput struct {
	Valid       bool         `json:"valid"`
	Live        bool         `json:"live,omitempty"`
	BlockNumber uint64       `json:"block_number,omitempty"`
	Error       *errorOutput `json:"error,omitempty"`
}

func newValidateKeyCmd(o *rootOptions) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "validate-key [api-key]",
		Short: "Check the format of an API key, optionally against the API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := o.cfg.Alchemy.APIKey
			if len(args) == 1 {
				key = strings.TrimSpace(args[0])
			}
			if key == "" {
				return fmt.Errorf("no api key given and ALCHEMY_API_KEY is not set")
			}

			if !alchemy.ValidateAPIKey(key) {
				return o.emit(validateOutput{Error: newErrorOutput(alchemy.ErrInvalidAPIKey)}, false)
			}
			if !live {
				return o.emit(validateOutput{Valid: true}, true)
			}

			ctx := cmd.Context()
			c, closeFn, err := o.newClient(ctx, key)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := c.BlockNumber(ctx)
			if err != nil {
				return o.emit(validateOutput{Valid: true, Error: newErrorOutput(err)}, false)
			}
			return o.emit(validateOutput{Valid: true, Live: true, BlockNumber: n}, true)
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "confirm the key with an eth_blockNumber call")
	return cmd
}
