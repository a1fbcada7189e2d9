package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentdesk/officesync/internal/config"
	"github.com/agentdesk/officesync/internal/metrics"
	"github.com/agentdesk/officesync/internal/model"
	"github.com/agentdesk/officesync/internal/notify"
	"github.com/agentdesk/officesync/internal/source"
	"github.com/agentdesk/officesync/internal/voclient"
)

func newCollectCmd() *cobra.Command {
	var (
		incremental bool
		limit       int
		publish     bool
	)
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect messages once and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mgr, live, err := bindSource(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			msgs, err := collectOnce(cmd.Context(), cfg, mgr, live, incremental, limit, publish)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(msgs)
		},
	}
	cmd.Flags().BoolVar(&incremental, "incremental", false, "only fetch records newer than the saved cursors")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap how many records each channel fetches")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish a collection event to NATS")
	return cmd
}

// bindSource builds the manager and binds either the static dataset source
// or the live polling source, depending on configuration. A configured
// dataset root wins.
func bindSource(ctx context.Context, cfg config.Config) (*source.Manager, *source.LiveSource, error) {
	logger := slog.Default()
	mgr := source.NewManager(logger)

	if cfg.DatasetRoot != "" {
		mgr.SetSource(source.NewStaticSource(cfg.DatasetRoot, logger), source.TypeJSON)
		return mgr, nil, nil
	}

	if cfg.PersonaHandle == "" {
		return nil, nil, fmt.Errorf("either a dataset root or a persona handle must be configured")
	}
	client := voclient.New(cfg.EmailURL, cfg.ChatURL, cfg.SimURL, cfg.HTTPTimeout, logger)
	live, err := source.NewLiveSource(ctx, client, cfg.PersonaHandle, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.CheckpointPath != "" {
		cursors, err := source.LoadCheckpoint(cfg.CheckpointPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load checkpoint: %w", err)
		}
		live.RestoreCursors(cursors)
	}
	mgr.SetSource(live, source.TypeVirtualOffice)
	return mgr, live, nil
}

func collectOnce(ctx context.Context, cfg config.Config, mgr *source.Manager, live *source.LiveSource, incremental bool, limit int, publish bool) ([]model.Message, error) {
	start := time.Now()
	msgs, err := mgr.CollectMessages(ctx, &source.CollectOptions{Incremental: incremental, Limit: limit})
	metrics.CollectionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollectionRuns.WithLabelValues(mgr.Type(), "error").Inc()
		return nil, err
	}
	metrics.CollectionRuns.WithLabelValues(mgr.Type(), "ok").Inc()

	var chatCount, emailCount int
	for _, m := range msgs {
		switch m.Channel {
		case model.ChannelChat:
			chatCount++
		case model.ChannelEmail:
			emailCount++
		}
	}
	metrics.MessagesCollected.WithLabelValues(string(model.ChannelChat)).Add(float64(chatCount))
	metrics.MessagesCollected.WithLabelValues(string(model.ChannelEmail)).Add(float64(emailCount))

	if live != nil && cfg.CheckpointPath != "" {
		if err := source.SaveCheckpoint(cfg.CheckpointPath, mgr.Type(), live.Cursors()); err != nil {
			slog.Warn("checkpoint save failed", "path", cfg.CheckpointPath, "error", err)
		}
	}

	if publish {
		if cfg.NatsURL == "" {
			slog.Warn("publish requested but no NATS URL configured")
		} else if pub, err := notify.NewPublisher(cfg.NatsURL, slog.Default()); err != nil {
			slog.Warn("nats connect failed", "error", err)
		} else {
			defer pub.Close()
			event := notify.BatchEvent{
				RunID:       uuid.New().String(),
				Source:      mgr.Type(),
				ChatCount:   chatCount,
				EmailCount:  emailCount,
				Incremental: incremental,
				CollectedAt: time.Now().UTC(),
			}
			if err := pub.PublishCollected(event); err != nil {
				slog.Warn("collection event publish failed", "error", err)
			}
		}
	}
	return msgs, nil
}
