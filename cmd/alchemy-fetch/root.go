package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/alchemy-client/internal/config"
	"github.com/Sternrassler/alchemy-client/pkg/alchemy"
	"github.com/Sternrassler/alchemy-client/pkg/cache"
	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/logging"
	"github.com/Sternrassler/alchemy-client/pkg/pagination"
)

// errFailed signals exit code 1 after the output has been written.
var errFailed = errors.New("request failed")

type rootOptions struct {
	out    io.Writer
	errOut io.Writer

	logLevel string
	pretty   bool

	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	o := &rootOptions{out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:           "alchemy-fetch",
		Short:         "Fetch NFT data from the Alchemy API",
		Long:          `alchemy-fetch queries the Alchemy NFT and JSON-RPC APIs with client-side rate limiting, retries and pagination. Results are written as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
	}

	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")
	cmd.PersistentFlags().BoolVar(&o.pretty, "pretty", false, "human-readable console logs")

	cmd.AddCommand(
		newNFTsCmd(o),
		newTransfersCmd(o),
		newMetadataCmd(o),
		newBalanceCmd(o),
		newValidateKeyCmd(o),
		newWebhookCmd(o),
	)
	return cmd
}

// setup loads the environment and configures logging. Flags override env.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadOptional()
	if err != nil {
		return err
	}

	if o.logLevel != "" {
		cfg.Log.Level = logging.LogLevel(o.logLevel)
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Log.Pretty = o.pretty
	}
	cfg.Log.Output = o.errOut

	logging.Setup(cfg.Log)
	o.logger = logging.NewLogger("alchemy-fetch")
	o.cfg = cfg
	return nil
}

// newClient builds an API client from the loaded configuration. The cache is
// enabled when REDIS_URL is set and reachable.
func (o *rootOptions) newClient(ctx context.Context, apiKey string) (*alchemy.Client, func(), error) {
	clientCfg := o.cfg.Alchemy.ClientConfig()
	if apiKey != "" {
		clientCfg.APIKey = apiKey
	}
	if clientCfg.APIKey == "" {
		return nil, nil, fmt.Errorf("ALCHEMY_API_KEY is required")
	}

	opts := alchemy.Options{Sink: logging.NewSink(o.logger)}
	closeFn := func() {}

	if url := o.cfg.Redis.URL; url != "" {
		manager, rdb, err := cache.NewManagerFromURL(url)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		if err := manager.Ping(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("redis unreachable, continuing without cache")
			rdb.Close()
		} else {
			opts.Cache = manager
			closeFn = func() {
				if err := rdb.Close(); err != nil {
					o.logger.Warn().Err(err).Msg("failed to close redis client")
				}
			}
		}
	}

	c, err := alchemy.New(clientCfg, opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return c, closeFn, nil
}

func (o *rootOptions) writeJSON(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit writes v and turns an unsuccessful outcome into errFailed.
func (o *rootOptions) emit(v any, ok bool) error {
	if err := o.writeJSON(v); err != nil {
		return err
	}
	if !ok {
		return errFailed
	}
	return nil
}

type errorOutput struct {
	Kind       string `json:"kind"`
	Category   string `json:"category"`
	StatusCode int    `json:"status_code,omitempty"`
	Cause      string `json:"cause,omitempty"`
	Message    string `json:"message"`
}

func newErrorOutput(err error) *errorOutput {
	if err == nil {
		return nil
	}
	ce := classify.Classify("", err)
	out := &errorOutput{
		Kind:       string(ce.Kind),
		Category:   ce.Category.String(),
		StatusCode: ce.StatusCode,
		Message:    ce.Error(),
	}
	if last := ce.Last(); last != ce {
		out.Cause = string(last.Kind)
	}
	return out
}

type fetchOutput[T any] struct {
	Success   bool         `json:"success"`
	Pages     int          `json:"pages"`
	Truncated bool         `json:"truncated,omitempty"`
	Count     int          `json:"count"`
	Items     []T          `json:"items"`
	Error     *errorOutput `json:"error,omitempty"`
}

func newFetchOutput[T any](res pagination.Result[T]) fetchOutput[T] {
	out := fetchOutput[T]{
		Success:   res.Success,
		Pages:     res.PagesFetched,
		Truncated: res.Truncated,
		Count:     len(res.Items),
		Items:     res.Items,
	}
	if res.Err != nil {
		out.Error = newErrorOutput(res.Err)
	}
	return out
}
