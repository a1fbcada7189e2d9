package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectCollected is the NATS subject announcing a finished collection run.
const SubjectCollected = "officesync.collected"

// BatchEvent is emitted after every successful collection run so downstream
// consumers can react to fresh records without polling the layer themselves.
type BatchEvent struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	ChatCount   int       `json:"chat_count"`
	EmailCount  int       `json:"email_count"`
	Incremental bool      `json:"incremental"`
	CollectedAt time.Time `json:"collected_at"`
}

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: nc, logger: logger}, nil
}

func (p *Publisher) PublishCollected(event BatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(SubjectCollected, payload); err != nil {
		return fmt.Errorf("publish %s: %w", SubjectCollected, err)
	}
	p.logger.Debug("collection event published",
		"run_id", event.RunID, "chat", event.ChatCount, "email", event.EmailCount)
	return nil
}

func (p *Publisher) Close() {
	p.conn.Close()
}
