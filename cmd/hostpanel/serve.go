package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/panelkit/hostpanel/internal/app"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runServe)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Override listen address (e.g., :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(a *app.App) error {
	logger := slog.Default()
	logger.Info("Starting hostpanel", "version", version)

	addr := a.Config.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}

	// Provisioning requests block for the whole workflow, so the write timeout
	// is longer than the router's request timeout.
	server := &http.Server{
		Addr:         addr,
		Handler:      a.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-quit:
	}

	logger.Info("Shutting down hostpanel...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("hostpanel stopped")
	return nil
}
