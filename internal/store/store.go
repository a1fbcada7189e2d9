// Package store is the relational backing for the virtual office servers.
// Two implementations exist: SQLite (default, per-process file) and
// Postgres. Record identifiers are assigned by autoincrement at insert time,
// strictly increasing and never reused, which is what makes since_id a
// sufficient cursor on its own.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/agentdesk/officesync/internal/model"
)

var (
	// ErrNotFound covers missing rooms, mailboxes, emails and drafts.
	ErrNotFound = errors.New("not found")
	// ErrNotMember is returned when a sender posts to a room they are not in.
	ErrNotMember = errors.New("sender not in room")
	// ErrRoomExists is returned when a room slug is already taken.
	ErrRoomExists = errors.New("room slug already exists")
	// ErrInvalidAddress is returned for malformed email addresses.
	ErrInvalidAddress = errors.New("invalid email address")
)

// ListFilter carries the three composable cursor filters of the sync
// protocol. Filters compose conjunctively; ordering (chronological
// ascending) is applied before Limit truncates.
type ListFilter struct {
	SinceID        int64
	SinceTimestamp string
	Limit          int
}

type User struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
}

type Room struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
	IsDM         bool     `json:"is_dm"`
}

type ChatMessage struct {
	ID       int64  `json:"id"`
	RoomSlug string `json:"room_slug"`
	Sender   string `json:"sender"`
	Body     string `json:"body"`
	SentAt   string `json:"sent_at"`
}

type Mailbox struct {
	Address     string `json:"address"`
	DisplayName string `json:"display_name,omitempty"`
}

type Email struct {
	ID       int64    `json:"id"`
	Sender   string   `json:"sender"`
	To       []string `json:"to"`
	CC       []string `json:"cc"`
	BCC      []string `json:"bcc"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	ThreadID string   `json:"thread_id,omitempty"`
	SentAt   string   `json:"sent_at"`
}

// OutgoingEmail is a send request. SentAt optionally overrides the server
// clock with a simulated timestamp.
type OutgoingEmail struct {
	Sender   string   `json:"sender"`
	To       []string `json:"to"`
	CC       []string `json:"cc"`
	BCC      []string `json:"bcc"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	ThreadID string   `json:"thread_id,omitempty"`
	SentAt   string   `json:"sent_at,omitempty"`
}

// Recipients returns all distinct recipient addresses in to, cc, bcc order.
func (e *OutgoingEmail) Recipients() []string {
	seen := make(map[string]bool)
	var out []string
	for _, bucket := range [][]string{e.To, e.CC, e.BCC} {
		for _, addr := range bucket {
			if !seen[addr] {
				seen[addr] = true
				out = append(out, addr)
			}
		}
	}
	return out
}

type Draft struct {
	ID        int64  `json:"id"`
	Mailbox   string `json:"mailbox"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	ThreadID  string `json:"thread_id,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// Store is the capability both relational backends implement. Writes are
// transactional per call; a failed insert leaves no partial row.
type Store interface {
	Ping(ctx context.Context) error
	Close()

	// Chat.
	EnsureUser(ctx context.Context, handle, displayName string) (*User, error)
	CreateRoom(ctx context.Context, slug, name string, participants []string) (*Room, error)
	GetRoom(ctx context.Context, slug string) (*Room, error)
	PostMessage(ctx context.Context, slug, sender, body, sentAt string) (*ChatMessage, error)
	PostDM(ctx context.Context, sender, recipient, body, sentAt string) (*ChatMessage, error)
	RoomMessages(ctx context.Context, slug string, f ListFilter) ([]ChatMessage, error)
	UserDMs(ctx context.Context, handle string, f ListFilter) ([]ChatMessage, error)

	// Email.
	EnsureMailbox(ctx context.Context, address, displayName string) (*Mailbox, error)
	SendEmail(ctx context.Context, e OutgoingEmail) (*Email, error)
	MailboxEmails(ctx context.Context, address string, f ListFilter) ([]Email, error)
	GetEmail(ctx context.Context, id int64) (*Email, error)
	SaveDraft(ctx context.Context, mailbox, subject, body, threadID string) (*Draft, error)
	MailboxDrafts(ctx context.Context, mailbox string) ([]Draft, error)

	// Personas.
	UpsertPersona(ctx context.Context, p model.Persona) error
	Personas(ctx context.Context) ([]model.Persona, error)
}

// NormalizeHandle canonicalizes a chat handle.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// NormalizeAddress canonicalizes an email address or rejects it.
func NormalizeAddress(address string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(address))
	if !strings.Contains(cleaned, "@") || strings.HasPrefix(cleaned, "@") || strings.HasSuffix(cleaned, "@") {
		return "", ErrInvalidAddress
	}
	return cleaned, nil
}

// DMSlug computes the deterministic room slug for a direct-message pair:
// the two handles sorted lexicographically, so either participant resolves
// the same room.
func DMSlug(a, b string) string {
	handles := []string{NormalizeHandle(a), NormalizeHandle(b)}
	sort.Strings(handles)
	return "dm:" + handles[0] + ":" + handles[1]
}
