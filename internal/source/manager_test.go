package source

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/agentdesk/officesync/internal/model"
)

type stubSource struct {
	msgs []model.Message
	err  error
	typ  string
}

func (s *stubSource) CollectMessages(ctx context.Context, opts *CollectOptions) ([]model.Message, error) {
	return s.msgs, s.err
}
func (s *stubSource) Personas() []model.Persona { return nil }
func (s *stubSource) Type() string              { return s.typ }

func TestManagerNoActiveSource(t *testing.T) {
	mgr := NewManager(slog.Default())

	if mgr.HasSource() {
		t.Error("fresh manager reports a source")
	}
	if mgr.Type() != TypeNone {
		t.Errorf("type = %q, want %q", mgr.Type(), TypeNone)
	}
	if _, err := mgr.CollectMessages(context.Background(), nil); !errors.Is(err, ErrNoActiveSource) {
		t.Errorf("collect error = %v, want ErrNoActiveSource", err)
	}
	if _, err := mgr.Personas(); !errors.Is(err, ErrNoActiveSource) {
		t.Errorf("personas error = %v, want ErrNoActiveSource", err)
	}
}

func TestManagerDelegates(t *testing.T) {
	mgr := NewManager(slog.Default())
	mgr.SetSource(&stubSource{
		msgs: []model.Message{{ID: "chat_general_1"}},
		typ:  TypeJSON,
	}, TypeJSON)

	if !mgr.HasSource() {
		t.Error("source not bound")
	}
	msgs, err := mgr.CollectMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "chat_general_1" {
		t.Errorf("got %+v", msgs)
	}
}

func TestManagerRebind(t *testing.T) {
	mgr := NewManager(slog.Default())
	mgr.SetSource(&stubSource{typ: TypeJSON}, TypeJSON)
	mgr.SetSource(&stubSource{typ: TypeVirtualOffice}, TypeVirtualOffice)

	if mgr.Type() != TypeVirtualOffice {
		t.Errorf("type after rebind = %q", mgr.Type())
	}
}

func TestManagerPropagatesErrors(t *testing.T) {
	mgr := NewManager(slog.Default())
	mgr.SetSource(&stubSource{err: ErrSourceUnavailable, typ: TypeJSON}, TypeJSON)

	if _, err := mgr.CollectMessages(context.Background(), nil); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("got %v, want ErrSourceUnavailable", err)
	}
}

func TestCursorNeverRegresses(t *testing.T) {
	cs := NewCursorSet()
	t1 := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	cs.Advance("chat", "alice", 5, t2)
	cs.Advance("chat", "alice", 3, t1) // stale observation

	cur := cs.Get("chat", "alice")
	if cur.LastID != 5 {
		t.Errorf("last id = %d, want 5", cur.LastID)
	}
	if !cur.LastTimestamp.Equal(t2) {
		t.Errorf("last ts = %v, want %v", cur.LastTimestamp, t2)
	}
}

func TestCursorIsolationPerOrigin(t *testing.T) {
	cs := NewCursorSet()
	cs.Advance("chat", "alice", 10, time.Now())

	if got := cs.Get("chat", "bob").LastID; got != 0 {
		t.Errorf("unrelated cursor moved: %d", got)
	}
	if got := cs.Get("email", "alice").LastID; got != 0 {
		t.Errorf("other channel cursor moved: %d", got)
	}
}

func TestCursorReset(t *testing.T) {
	cs := NewCursorSet()
	cs.Advance("chat", "alice", 10, time.Now())
	cs.Reset()
	if got := cs.Get("chat", "alice").LastID; got != 0 {
		t.Errorf("cursor survived reset: %d", got)
	}
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	cs, err := LoadCheckpoint(t.TempDir() + "/absent.json")
	if err != nil {
		t.Fatalf("missing checkpoint should not error: %v", err)
	}
	if len(cs.Cursors) != 0 {
		t.Errorf("expected empty cursor set, got %d entries", len(cs.Cursors))
	}
}
