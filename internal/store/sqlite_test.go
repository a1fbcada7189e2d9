package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/agentdesk/officesync/internal/model"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestEnsureUserIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, "Alice", "Alice Wong")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if u.Handle != "alice" {
		t.Errorf("handle = %q, want normalized alice", u.Handle)
	}

	// Re-ensuring without a display name keeps the existing one.
	u, err = s.EnsureUser(ctx, "alice", "")
	if err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	if u.DisplayName != "Alice Wong" {
		t.Errorf("display name = %q, want Alice Wong", u.DisplayName)
	}
}

func TestCreateRoomDuplicateSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRoom(ctx, "general", "General", []string{"alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateRoom(ctx, "general", "Again", nil); !errors.Is(err, ErrRoomExists) {
		t.Errorf("got %v, want ErrRoomExists", err)
	}
}

func TestPostMessageRequiresMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRoom(ctx, "general", "General", []string{"alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.PostMessage(ctx, "general", "bob", "hi", ""); !errors.Is(err, ErrNotMember) {
		t.Errorf("got %v, want ErrNotMember", err)
	}
	if _, err := s.PostMessage(ctx, "missing", "alice", "hi", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	msg, err := s.PostMessage(ctx, "general", "alice", "hi", "2024-03-15T09:00:00Z")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if msg.ID == 0 || msg.RoomSlug != "general" || msg.SentAt != "2024-03-15T09:00:00Z" {
		t.Errorf("message = %+v", msg)
	}
}

func TestMessageIDsStrictlyIncrease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRoom(ctx, "general", "General", []string{"alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	var last int64
	for i := 0; i < 5; i++ {
		msg, err := s.PostMessage(ctx, "general", "alice", fmt.Sprintf("msg %d", i), "")
		if err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
		if msg.ID <= last {
			t.Errorf("id %d not greater than %d", msg.ID, last)
		}
		last = msg.ID
	}
}

func TestRoomMessagesCursorFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRoom(ctx, "general", "General", []string{"alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	var ids []int64
	for i := 0; i < 4; i++ {
		msg, err := s.PostMessage(ctx, "general", "alice", "m",
			fmt.Sprintf("2024-03-15T09:0%d:00Z", i))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		ids = append(ids, msg.ID)
	}

	all, err := s.RoomMessages(ctx, "general", ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].SentAt < all[i-1].SentAt {
			t.Errorf("not ascending at %d", i)
		}
	}

	after, err := s.RoomMessages(ctx, "general", ListFilter{SinceID: ids[1]})
	if err != nil {
		t.Fatalf("list since_id: %v", err)
	}
	if len(after) != 2 || after[0].ID != ids[2] {
		t.Errorf("since_id result = %+v", after)
	}

	ts, err := s.RoomMessages(ctx, "general", ListFilter{SinceTimestamp: "2024-03-15T09:01:00Z"})
	if err != nil {
		t.Fatalf("list since_timestamp: %v", err)
	}
	if len(ts) != 2 {
		t.Errorf("since_timestamp got %d, want 2", len(ts))
	}

	// Limit truncates after ascending ordering: oldest two, not newest two.
	limited, err := s.RoomMessages(ctx, "general", ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list limit: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != ids[0] || limited[1].ID != ids[1] {
		t.Errorf("limit result = %+v", limited)
	}

	// Filters compose conjunctively.
	combo, err := s.RoomMessages(ctx, "general", ListFilter{SinceID: ids[0], Limit: 1})
	if err != nil {
		t.Fatalf("list combo: %v", err)
	}
	if len(combo) != 1 || combo[0].ID != ids[1] {
		t.Errorf("combo result = %+v", combo)
	}
}

func TestDMRoomIsSharedBetweenDirections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.PostDM(ctx, "bob", "alice", "hi alice", "2024-03-15T09:00:00Z")
	if err != nil {
		t.Fatalf("dm 1: %v", err)
	}
	second, err := s.PostDM(ctx, "alice", "bob", "hi bob", "2024-03-15T09:01:00Z")
	if err != nil {
		t.Fatalf("dm 2: %v", err)
	}
	if first.RoomSlug != "dm:alice:bob" || second.RoomSlug != first.RoomSlug {
		t.Errorf("slugs = %q, %q", first.RoomSlug, second.RoomSlug)
	}

	for _, handle := range []string{"alice", "bob"} {
		dms, err := s.UserDMs(ctx, handle, ListFilter{})
		if err != nil {
			t.Fatalf("dms for %s: %v", handle, err)
		}
		if len(dms) != 2 {
			t.Errorf("%s sees %d dms, want 2", handle, len(dms))
		}
	}
}

func TestUserDMsUnionAcrossRooms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.PostDM(ctx, "alice", "bob", "to bob", "2024-03-15T09:00:00Z"); err != nil {
		t.Fatalf("dm: %v", err)
	}
	if _, err := s.PostDM(ctx, "carol", "alice", "from carol", "2024-03-15T09:01:00Z"); err != nil {
		t.Fatalf("dm: %v", err)
	}
	// A regular room must not leak into the DM listing.
	if _, err := s.CreateRoom(ctx, "general", "General", []string{"alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.PostMessage(ctx, "general", "alice", "room talk", "2024-03-15T09:02:00Z"); err != nil {
		t.Fatalf("post: %v", err)
	}

	dms, err := s.UserDMs(ctx, "alice", ListFilter{})
	if err != nil {
		t.Fatalf("dms: %v", err)
	}
	if len(dms) != 2 {
		t.Fatalf("got %d dms, want 2", len(dms))
	}
	if dms[0].RoomSlug != "dm:alice:bob" || dms[1].RoomSlug != "dm:alice:carol" {
		t.Errorf("slugs = %q, %q", dms[0].RoomSlug, dms[1].RoomSlug)
	}
	// bob only sees his own room.
	bobDMs, err := s.UserDMs(ctx, "bob", ListFilter{})
	if err != nil {
		t.Fatalf("bob dms: %v", err)
	}
	if len(bobDMs) != 1 {
		t.Errorf("bob sees %d dms, want 1", len(bobDMs))
	}
}

func TestSendEmailRecipientsSurvive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sent, err := s.SendEmail(ctx, OutgoingEmail{
		Sender:  "bob@office.test",
		To:      []string{"alice@office.test"},
		CC:      []string{"carol@office.test"},
		BCC:     []string{"dave@office.test"},
		Subject: "specs",
		Body:    "attached",
		SentAt:  "2024-03-15T08:00:00Z",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	got, err := s.GetEmail(ctx, sent.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.To) != 1 || got.To[0] != "alice@office.test" {
		t.Errorf("to = %v", got.To)
	}
	if len(got.CC) != 1 || got.CC[0] != "carol@office.test" {
		t.Errorf("cc = %v", got.CC)
	}
	if len(got.BCC) != 1 || got.BCC[0] != "dave@office.test" {
		t.Errorf("bcc = %v", got.BCC)
	}

	// Every recipient's mailbox, including BCC, sees the email.
	for _, addr := range []string{"alice@office.test", "carol@office.test", "dave@office.test"} {
		emails, err := s.MailboxEmails(ctx, addr, ListFilter{})
		if err != nil {
			t.Fatalf("mailbox %s: %v", addr, err)
		}
		if len(emails) != 1 {
			t.Errorf("mailbox %s has %d emails, want 1", addr, len(emails))
		}
	}
}

func TestMailboxEmailsCursorFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		e, err := s.SendEmail(ctx, OutgoingEmail{
			Sender:  "bob@office.test",
			To:      []string{"alice@office.test"},
			Subject: fmt.Sprintf("mail %d", i),
			SentAt:  fmt.Sprintf("2024-03-15T08:0%d:00Z", i),
		})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		ids = append(ids, e.ID)
	}

	after, err := s.MailboxEmails(ctx, "alice@office.test", ListFilter{SinceID: ids[0]})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(after) != 2 || after[0].ID != ids[1] {
		t.Errorf("since_id result = %+v", after)
	}

	limited, err := s.MailboxEmails(ctx, "alice@office.test", ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != ids[0] {
		t.Errorf("limit keeps oldest first: %+v", limited)
	}
}

func TestMailboxEmailsUnknownMailbox(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.MailboxEmails(context.Background(), "ghost@office.test", ListFilter{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestNormalizeAddressRejectsMalformed(t *testing.T) {
	for _, addr := range []string{"", "no-at-sign", "@leading", "trailing@"} {
		if _, err := NormalizeAddress(addr); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("NormalizeAddress(%q) = %v, want ErrInvalidAddress", addr, err)
		}
	}
	got, err := NormalizeAddress("  Alice@Office.Test ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "alice@office.test" {
		t.Errorf("got %q", got)
	}
}

func TestDraftsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.SaveDraft(ctx, "alice@office.test", "wip", "unsent thoughts", "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if d.ID == 0 || d.Mailbox != "alice@office.test" {
		t.Errorf("draft = %+v", d)
	}

	drafts, err := s.MailboxDrafts(ctx, "alice@office.test")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Subject != "wip" {
		t.Errorf("drafts = %+v", drafts)
	}
}

func TestPersonaUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := model.Persona{Name: "Alice Wong", EmailAddress: "alice@office.test", ChatHandle: "alice", Role: "engineer", Skills: []string{"go", "sql"}}
	if err := s.UpsertPersona(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p.Role = "staff engineer"
	if err := s.UpsertPersona(ctx, p); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	personas, err := s.Personas(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(personas) != 1 {
		t.Fatalf("got %d personas, want 1", len(personas))
	}
	if personas[0].Role != "staff engineer" {
		t.Errorf("role = %q", personas[0].Role)
	}
	if len(personas[0].Skills) != 2 || personas[0].Skills[0] != "go" {
		t.Errorf("skills = %v", personas[0].Skills)
	}
}

func TestDMSlugDeterministic(t *testing.T) {
	if DMSlug("bob", "alice") != "dm:alice:bob" {
		t.Errorf("got %q", DMSlug("bob", "alice"))
	}
	if DMSlug("Alice", "BOB") != DMSlug("bob", "alice") {
		t.Error("slug not case-insensitive")
	}
}
