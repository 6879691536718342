package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/alchemy-client/pkg/metrics"
	"github.com/Sternrassler/alchemy-client/pkg/webhook"
)

const shutdownTimeout = 10 * time.Second

func newWebhookCmd(o *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Receive signed Alchemy Notify webhooks",
		Long:  `Serves POST /webhook (signature-checked deliveries), GET /health and GET /metrics.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := o.cfg.Webhook.Secret
			if secret == "" {
				return fmt.Errorf("WEBHOOK_SECRET is required")
			}
			if addr == "" {
				addr = o.cfg.Webhook.Addr
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			return serve(cmd.Context(), ln, newRouter(newEventHandler(secret, o.logger)), o.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from WEBHOOK_ADDR)")
	return cmd
}

func newEventHandler(secret string, logger zerolog.Logger) *webhook.Handler {
	return webhook.NewHandler(secret).
		WithLogger(logger).
		On(webhook.TypeAddressActivity, func(ctx context.Context, e webhook.Event) error {
			activity, err := e.AddressActivity()
			if err != nil {
				return err
			}
			for _, a := range activity.Activity {
				logger.Info().
					Str("network", activity.Network).
					Str("category", a.Category).
					Str("from", a.FromAddress).
					Str("to", a.ToAddress).
					Str("hash", a.Hash).
					Msg("address activity")
			}
			return nil
		}).
		On(webhook.TypeMinedTransaction, func(ctx context.Context, e webhook.Event) error {
			mined, err := e.MinedTransaction()
			if err != nil {
				return err
			}
			logger.Info().
				Str("network", mined.Network).
				Str("hash", mined.Transaction.Hash).
				Str("from", mined.Transaction.From).
				Msg("mined transaction")
			return nil
		}).
		OnOther(func(ctx context.Context, e webhook.Event) error {
			logger.Info().Str("type", e.Type).Str("webhook_id", e.WebhookID).Msg("webhook event")
			return nil
		})
}

func newRouter(events http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/webhook", events.ServeHTTP)
	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// serve runs the server on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("webhook server listening")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
