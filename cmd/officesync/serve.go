package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdesk/officesync/internal/config"
	"github.com/agentdesk/officesync/internal/server"
	"github.com/agentdesk/officesync/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat, email, and simulation servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return store.NewSQLite(ctx, cfg.SQLitePath)
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	slog.Info("store ready", "driver", cfg.DBDriver)

	logger := slog.Default()
	servers := []*http.Server{
		{Addr: fmt.Sprintf(":%d", cfg.ChatPort), Handler: server.NewChatServer(st, logger).Router()},
		{Addr: fmt.Sprintf(":%d", cfg.EmailPort), Handler: server.NewEmailServer(st, logger).Router()},
		{Addr: fmt.Sprintf(":%d", cfg.SimPort), Handler: server.NewSimServer(st, logger).Router()},
	}
	names := []string{"chat", "email", "sim"}

	errCh := make(chan error, len(servers))
	for i, srv := range servers {
		go func(name string, srv *http.Server) {
			slog.Info("server starting", "server", name, "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("%s server: %w", name, err)
			}
		}(names[i], srv)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("shutting down", "reason", ctx.Err())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for i, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown failed", "server", names[i], "error", err)
		}
	}
	slog.Info("servers stopped")
	return nil
}
