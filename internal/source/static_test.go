package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentdesk/officesync/internal/model"
)

const testPersonas = `[
	{"name": "Alice Wong", "email_address": "alice@office.test", "chat_handle": "alice", "role": "engineer"},
	{"name": "Bob Reyes", "email_address": "bob@office.test", "chat_handle": "bob", "role": "designer"}
]`

const testChat = `{
	"rooms": {
		"general": [
			{"id": 1, "sender": "alice", "body": "morning", "sent_at": "2024-03-15T09:00:00Z"},
			{"id": 2, "sender": "bob", "body": "hey", "sent_at": "2024-03-15T09:05:00Z"}
		],
		"dm:alice:bob": [
			{"id": 3, "sender": "bob", "body": "got a sec?", "sent_at": "2024-03-15T10:00:00Z"}
		]
	}
}`

const testEmail = `{
	"mailboxes": {
		"alice@office.test": [
			{"id": 1, "sender": "bob@office.test", "to": ["alice@office.test"], "subject": "specs", "body": "attached", "sent_at": "2024-03-15T08:00:00Z"}
		]
	}
}`

func writeDataset(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func fullDataset(t *testing.T) string {
	return writeDataset(t, map[string]string{
		personasFile: testPersonas,
		chatFile:     testChat,
		emailFile:    testEmail,
	})
}

func TestStaticCollectMergesAndSorts(t *testing.T) {
	src := NewStaticSource(fullDataset(t), slog.Default())
	msgs, err := src.CollectMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}

	// The 08:00 email precedes all chat records.
	want := []string{
		"email_1_bob@office.test",
		"chat_general_1",
		"chat_general_2",
		"chat_dm:alice:bob_3",
	}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("position %d = %q, want %q", i, msgs[i].ID, id)
		}
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Errorf("messages out of order at %d", i)
		}
	}
}

func TestStaticCollectResolvesPersonas(t *testing.T) {
	src := NewStaticSource(fullDataset(t), slog.Default())
	msgs, err := src.CollectMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, m := range msgs {
		if m.ID == "chat_general_1" && m.SenderDisplay != "Alice Wong" {
			t.Errorf("chat sender display = %q", m.SenderDisplay)
		}
		if m.ID == "email_1_bob@office.test" && m.SenderDisplay != "Bob Reyes" {
			t.Errorf("email sender display = %q", m.SenderDisplay)
		}
		if !m.IsRead {
			t.Errorf("static record %s not marked read", m.ID)
		}
	}
}

func TestStaticCollectIsIdempotent(t *testing.T) {
	src := NewStaticSource(fullDataset(t), slog.Default())
	first, err := src.CollectMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	second, err := src.CollectMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("position %d: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
}

func TestStaticOrderStableAcrossCollects(t *testing.T) {
	// Entries in different rooms sharing one timestamp must come back in
	// the same order on every collect: room keys ascending, then the
	// stable sort keeps that order for the tied timestamps.
	rooms := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}
	chat := `{"rooms": {`
	for i, room := range rooms {
		if i > 0 {
			chat += ","
		}
		chat += fmt.Sprintf(`%q: [{"id": 1, "sender": "alice", "body": "tie", "sent_at": "2024-01-01T09:00:00Z"}]`, room)
	}
	chat += `}}`

	dir := writeDataset(t, map[string]string{
		personasFile: testPersonas,
		chatFile:     chat,
	})
	src := NewStaticSource(dir, slog.Default())

	want := make([]string, len(rooms))
	for i, room := range rooms {
		want[i] = fmt.Sprintf("chat_%s_1", room)
	}
	for run := 0; run < 3; run++ {
		msgs, err := src.CollectMessages(context.Background(), nil)
		if err != nil {
			t.Fatalf("collect %d: %v", run, err)
		}
		if len(msgs) != len(want) {
			t.Fatalf("collect %d got %d messages, want %d", run, len(msgs), len(want))
		}
		for i, id := range want {
			if msgs[i].ID != id {
				t.Fatalf("collect %d position %d = %q, want %q", run, i, msgs[i].ID, id)
			}
		}
	}
}

func TestStaticMissingChannelDegrades(t *testing.T) {
	dir := writeDataset(t, map[string]string{
		personasFile: testPersonas,
		emailFile:    testEmail,
	})
	src := NewStaticSource(dir, slog.Default())
	msgs, err := src.CollectMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (email only)", len(msgs))
	}
	if msgs[0].Channel != model.ChannelEmail {
		t.Errorf("channel = %q", msgs[0].Channel)
	}
}

func TestStaticMalformedEntrySkipped(t *testing.T) {
	dir := writeDataset(t, map[string]string{
		personasFile: testPersonas,
		chatFile: `{"rooms": {"general": [
			{"id": 1, "sender": "alice", "body": "fine", "sent_at": "2024-03-15T09:00:00Z"},
			{"id": "not-a-number", "sender": 12}
		]}}`,
	})
	src := NewStaticSource(dir, slog.Default())
	msgs, err := src.CollectMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != "chat_general_1" {
		t.Errorf("kept %q", msgs[0].ID)
	}
}

func TestStaticMissingRootUnavailable(t *testing.T) {
	src := NewStaticSource(filepath.Join(t.TempDir(), "nope"), slog.Default())
	_, err := src.CollectMessages(context.Background(), nil)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("got %v, want ErrSourceUnavailable", err)
	}
}

func TestStaticMissingPersonasStillCollects(t *testing.T) {
	dir := writeDataset(t, map[string]string{chatFile: testChat})
	src := NewStaticSource(dir, slog.Default())
	msgs, err := src.CollectMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	// Without a roster, the raw handle is the display name.
	if msgs[0].SenderDisplay != "alice" {
		t.Errorf("display = %q", msgs[0].SenderDisplay)
	}
}
