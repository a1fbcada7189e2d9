package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/agentdesk/officesync/internal/model"
	"github.com/agentdesk/officesync/internal/normalize"
)

// Dataset file names under the dataset root. Each is optional; a missing or
// malformed file degrades that channel to an empty contribution.
const (
	personasFile = "team_personas.json"
	chatFile     = "chat_communications.json"
	emailFile    = "email_communications.json"
)

// StaticSource reads a fixed local dataset. It has no cursor concept: every
// collection call re-reads the files and rebuilds the full sorted set.
type StaticSource struct {
	root    string
	dir     *normalize.Directory
	builder *normalize.Builder
	logger  *slog.Logger
}

// NewStaticSource loads the persona directory once and keeps it for the
// lifetime of the instance. Messages are re-read on every collect.
func NewStaticSource(root string, logger *slog.Logger) *StaticSource {
	s := &StaticSource{root: root, logger: logger}

	var personas []model.Persona
	if err := s.loadJSON(personasFile, &personas); err != nil {
		logger.Warn("persona file unusable, continuing with empty directory", "error", err)
		personas = nil
	}
	s.dir = normalize.NewDirectory(personas)
	s.builder = normalize.NewBuilder(s.dir, logger)

	logger.Info("static dataset source ready", "root", root, "personas", len(personas))
	return s
}

func (s *StaticSource) Type() string { return TypeJSON }

func (s *StaticSource) Personas() []model.Persona { return s.dir.Personas() }

// CollectMessages re-reads both dataset files and returns the full
// normalized set, chat and email merged ascending by timestamp. A channel
// whose file is missing or malformed contributes nothing; the other channel
// is still returned.
func (s *StaticSource) CollectMessages(ctx context.Context, opts *CollectOptions) ([]model.Message, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("%w: dataset root %s: %v", ErrSourceUnavailable, s.root, err)
	}

	chat := s.buildChat()
	email := s.buildEmail()

	// Chat first so equal timestamps order chat before email, stably.
	all := make([]model.Message, 0, len(chat)+len(email))
	all = append(all, chat...)
	all = append(all, email...)
	normalize.SortMessages(all)

	s.logger.Info("dataset collection finished", "chat", len(chat), "email", len(email))
	return all, nil
}

func (s *StaticSource) buildChat() []model.Message {
	var payload struct {
		Rooms map[string]json.RawMessage `json:"rooms"`
	}
	if err := s.loadJSON(chatFile, &payload); err != nil {
		s.logger.Warn("chat dataset unusable", "error", err)
		return nil
	}

	var msgs []model.Message
	for _, room := range sortedKeys(payload.Rooms) {
		for _, entry := range decodeEntries[normalize.ChatEntry](payload.Rooms[room], s.logger, "room", room) {
			msgs = append(msgs, s.builder.ChatMessage(room, entry, true))
		}
	}
	normalize.SortMessages(msgs)
	return msgs
}

func (s *StaticSource) buildEmail() []model.Message {
	var payload struct {
		Mailboxes map[string]json.RawMessage `json:"mailboxes"`
	}
	if err := s.loadJSON(emailFile, &payload); err != nil {
		s.logger.Warn("email dataset unusable", "error", err)
		return nil
	}

	var msgs []model.Message
	for _, mailbox := range sortedKeys(payload.Mailboxes) {
		for _, entry := range decodeEntries[normalize.EmailEntry](payload.Mailboxes[mailbox], s.logger, "mailbox", mailbox) {
			msgs = append(msgs, s.builder.EmailMessage(mailbox, entry, true))
		}
	}
	normalize.SortMessages(msgs)
	return msgs
}

// sortedKeys fixes the container iteration order. Map iteration is
// randomized per run; combined with the stable timestamp sort, sorted keys
// make repeated collects on unchanged input order identically even when
// entries across containers share a timestamp.
func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decodeEntries unmarshals one container's entry list, skipping individual
// malformed entries instead of discarding the container.
func decodeEntries[T any](raw json.RawMessage, logger *slog.Logger, containerKind, container string) []T {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Warn("skipping malformed container", containerKind, container, "error", err)
		return nil
	}
	entries := make([]T, 0, len(items))
	for _, item := range items {
		var e T
		if err := json.Unmarshal(item, &e); err != nil {
			logger.Warn("skipping malformed entry", containerKind, container, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func (s *StaticSource) loadJSON(name string, out any) error {
	path := filepath.Join(s.root, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
