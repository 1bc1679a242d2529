package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the JSON API over the protocol workflow.

Endpoints:
  POST   /v1/users/{userID}/events   send a command, text, voice or transcript event
  GET    /v1/users/{userID}/session  inspect the current session
  DELETE /v1/users/{userID}/session  cancel the current session
  GET    /v1/users/{userID}/stream   server-sent events with every reply
  GET    /metrics                    Prometheus metrics
  GET    /healthz                    liveness probe`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		addr := app.Config.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           app.HTTPServer().Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			if err := app.WatchAllowList(ctx); err != nil {
				app.Logger.Error("allow-list watcher stopped", "err", err)
			}
		}()

		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("HTTP server listening", "address", addr, "store", app.Config.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			app.Logger.Info("shutting down")
		}

		timeout := app.Config.HTTP.ShutdownTimeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("graceful shutdown did not complete", "timeout", timeout, "err", err)
			return srv.Close()
		}
		app.Logger.Info("HTTP server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (defaults to http.addr)")
}
