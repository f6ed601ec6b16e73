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
	"golang.org/x/sync/errgroup"

	"docchat.dev/pdf-rag/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	apiHandler := api.NewAPIHandler(app.chats, app.ingestor, app.auth, api.Options{
		MaxUploadBytes: app.cfg.Tuning.MaxUploadBytes,
		Production:     app.cfg.IsProduction(),
	}, app.log)

	serverAddr := fmt.Sprintf(":%s", app.cfg.HTTPPort)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           api.NewRouter(apiHandler),
		ReadHeaderTimeout: 15 * time.Second,
		// no WriteTimeout: upload streams stay open for the whole ingestion
		IdleTimeout: 120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.log.Info("Starting server", "addr", serverAddr, "env", app.cfg.AppEnv, "provider", app.cfg.LLMProvider, "database", app.cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		app.log.Error("Server stopped with error", "error", err)
		return err
	}
	app.log.Info("Server exiting gracefully")
	return nil
}
