// Package source defines the data-source capability the rest of the
// application consumes, and its two backends: a static JSON dataset reader
// and a live polling client for the virtual office servers.
package source

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/agentdesk/officesync/internal/model"
)

var (
	// ErrNoActiveSource is returned by the Manager when no source is bound.
	ErrNoActiveSource = errors.New("no active data source")
	// ErrSourceUnavailable is returned when a source's backing files or
	// endpoints are unreachable for every channel.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// Source type tags.
const (
	TypeNone          = "none"
	TypeJSON          = "json"
	TypeVirtualOffice = "virtualoffice"
)

// CollectOptions tunes a single collection call.
type CollectOptions struct {
	// Incremental asks a cursor-capable source to return only records it
	// has not delivered before. Static sources ignore it.
	Incremental bool
	// Limit caps how many records each channel fetches. Zero means no cap.
	Limit int
}

// DataSource is the uniform capability every backend implements. Side
// effects are confined to the instance; Personas never triggers new I/O.
type DataSource interface {
	CollectMessages(ctx context.Context, opts *CollectOptions) ([]model.Message, error)
	Personas() []model.Persona
	Type() string
}

// Manager holds exactly one active data source and delegates to it.
// Switching sources discards whatever cursor state the previous source had
// accumulated; callers must not assume cursors survive a switch.
type Manager struct {
	mu         sync.Mutex
	source     DataSource
	sourceType string
	logger     *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{sourceType: TypeNone, logger: logger}
}

// SetSource atomically replaces the active source and its type tag.
func (m *Manager) SetSource(s DataSource, sourceType string) {
	m.mu.Lock()
	m.source = s
	m.sourceType = sourceType
	m.mu.Unlock()
	m.logger.Info("data source bound", "type", sourceType)
}

// HasSource reports whether a source is bound.
func (m *Manager) HasSource() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source != nil
}

// Type returns the active source's declared type tag, or "none".
func (m *Manager) Type() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sourceType
}

// CollectMessages delegates to the active source.
func (m *Manager) CollectMessages(ctx context.Context, opts *CollectOptions) ([]model.Message, error) {
	m.mu.Lock()
	src, typ := m.source, m.sourceType
	m.mu.Unlock()
	if src == nil {
		return nil, ErrNoActiveSource
	}

	runID := uuid.New().String()
	m.logger.Info("collection started", "run_id", runID, "source", typ)
	msgs, err := src.CollectMessages(ctx, opts)
	if err != nil {
		m.logger.Error("collection failed", "run_id", runID, "source", typ, "error", err)
		return msgs, err
	}
	m.logger.Info("collection finished", "run_id", runID, "source", typ, "messages", len(msgs))
	return msgs, nil
}

// Personas delegates to the active source's cached persona directory.
func (m *Manager) Personas() ([]model.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.source == nil {
		return nil, ErrNoActiveSource
	}
	return m.source.Personas(), nil
}
