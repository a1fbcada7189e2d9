package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/agentdesk/officesync/internal/config"
	"github.com/agentdesk/officesync/internal/source"
)

func newFollowCmd() *cobra.Command {
	var (
		limit   int
		publish bool
	)
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Collect continuously until interrupted",
		Long: `Follow keeps collecting and printing new messages as JSON lines.
Against the live backends it polls incrementally on the configured interval.
Against a static dataset it watches the files and re-collects on change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			mgr, live, err := bindSource(ctx, cfg)
			if err != nil {
				return err
			}
			if live != nil {
				return followLive(ctx, cfg, mgr, live, limit, publish)
			}
			return followDataset(ctx, cfg, mgr, limit, publish)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "cap how many records each channel fetches per run")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish a collection event to NATS per run")
	return cmd
}

func followLive(ctx context.Context, cfg config.Config, mgr *source.Manager, live *source.LiveSource, limit int, publish bool) error {
	slog.Info("following live backends", "interval", cfg.PollInterval.String())
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	emit := json.NewEncoder(os.Stdout)
	for {
		msgs, err := collectOnce(ctx, cfg, mgr, live, true, limit, publish)
		if err != nil {
			// Degraded or unavailable runs are logged by the source; the
			// next tick tries again with cursors intact.
			slog.Warn("collection run failed", "error", err)
		}
		for _, m := range msgs {
			if err := emit.Encode(m); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			slog.Info("follow stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func followDataset(ctx context.Context, cfg config.Config, mgr *source.Manager, limit int, publish bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(cfg.DatasetRoot); err != nil {
		return err
	}
	slog.Info("watching dataset", "root", cfg.DatasetRoot)

	emit := json.NewEncoder(os.Stdout)
	run := func() {
		msgs, err := collectOnce(ctx, cfg, mgr, nil, false, limit, publish)
		if err != nil {
			slog.Warn("collection run failed", "error", err)
			return
		}
		for _, m := range msgs {
			if err := emit.Encode(m); err != nil {
				slog.Error("emit failed", "error", err)
				return
			}
		}
	}
	run()

	// Editors fire bursts of events per save; a short debounce collapses
	// them into one re-collect.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			slog.Info("follow stopped")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(500 * time.Millisecond)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		case <-pending:
			pending = nil
			run()
		}
	}
}
