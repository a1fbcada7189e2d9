package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentdesk/officesync/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chat_users (
	handle TEXT PRIMARY KEY,
	display_name TEXT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_rooms (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	is_dm INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_members (
	room_id INTEGER NOT NULL,
	handle TEXT NOT NULL,
	added_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, handle),
	FOREIGN KEY(room_id) REFERENCES chat_rooms(id) ON DELETE CASCADE,
	FOREIGN KEY(handle) REFERENCES chat_users(handle) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id INTEGER NOT NULL,
	sender TEXT NOT NULL,
	body TEXT NOT NULL,
	sent_at TEXT NOT NULL,
	FOREIGN KEY(room_id) REFERENCES chat_rooms(id) ON DELETE CASCADE,
	FOREIGN KEY(sender) REFERENCES chat_users(handle)
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages(room_id, sent_at);

CREATE TABLE IF NOT EXISTS mailboxes (
	address TEXT PRIMARY KEY,
	display_name TEXT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS emails (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender TEXT NOT NULL,
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	thread_id TEXT,
	sent_at TEXT NOT NULL,
	FOREIGN KEY(sender) REFERENCES mailboxes(address)
);

CREATE TABLE IF NOT EXISTS email_recipients (
	email_id INTEGER NOT NULL,
	address TEXT NOT NULL,
	kind TEXT NOT NULL CHECK(kind IN ('to', 'cc', 'bcc')),
	FOREIGN KEY(email_id) REFERENCES emails(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_email_recipient_address ON email_recipients(address);

CREATE TABLE IF NOT EXISTS drafts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mailbox TEXT NOT NULL,
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	thread_id TEXT,
	updated_at TEXT NOT NULL,
	FOREIGN KEY(mailbox) REFERENCES mailboxes(address)
);

CREATE INDEX IF NOT EXISTS idx_drafts_mailbox ON drafts(mailbox);

CREATE TABLE IF NOT EXISTS people (
	name TEXT NOT NULL,
	email_address TEXT NOT NULL DEFAULT '',
	chat_handle TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT '',
	skills TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (email_address, chat_handle)
);
`

// SQLite is the default store backend: one database file shared by the
// chat, email, and sim servers of a process.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and bootstraps
// the schema.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() { s.db.Close() }

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func sentAtOrNow(sentAt string) string {
	if sentAt != "" {
		return sentAt
	}
	return nowISO()
}

func (s *SQLite) EnsureUser(ctx context.Context, handle, displayName string) (*User, error) {
	h := NormalizeHandle(handle)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_users(handle, display_name) VALUES(?, ?)
		ON CONFLICT(handle) DO UPDATE SET display_name = COALESCE(NULLIF(?, ''), display_name)
	`, h, displayName, displayName)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	u := &User{}
	var display sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT handle, display_name FROM chat_users WHERE handle = ?`, h,
	).Scan(&u.Handle, &display)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	u.DisplayName = display.String
	return u, nil
}

func (s *SQLite) ensureUsersTx(ctx context.Context, tx *sql.Tx, handles []string) error {
	for _, h := range handles {
		h = NormalizeHandle(h)
		if h == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_users(handle) VALUES(?) ON CONFLICT(handle) DO NOTHING`, h,
		); err != nil {
			return fmt.Errorf("ensure user %s: %w", h, err)
		}
	}
	return nil
}

func (s *SQLite) CreateRoom(ctx context.Context, slug, name string, participants []string) (*Room, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_rooms WHERE slug = ?`, slug).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check slug: %w", err)
	}
	if exists > 0 {
		return nil, ErrRoomExists
	}

	if err := s.ensureUsersTx(ctx, tx, participants); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO chat_rooms(slug, name, is_dm) VALUES(?, ?, 0)`, slug, name)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	roomID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("room id: %w", err)
	}

	for _, h := range participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO chat_members(room_id, handle) VALUES(?, ?)`,
			roomID, NormalizeHandle(h)); err != nil {
			return nil, fmt.Errorf("insert member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetRoom(ctx, slug)
}

func (s *SQLite) GetRoom(ctx context.Context, slug string) (*Room, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))

	room := &Room{}
	var roomID int64
	var isDM int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, is_dm FROM chat_rooms WHERE slug = ?`, slug,
	).Scan(&roomID, &room.Slug, &room.Name, &isDM)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	room.IsDM = isDM != 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT handle FROM chat_members WHERE room_id = ? ORDER BY handle`, roomID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		room.Participants = append(room.Participants, h)
	}
	return room, rows.Err()
}

func (s *SQLite) roomID(ctx context.Context, slug string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM chat_rooms WHERE slug = ?`, strings.ToLower(strings.TrimSpace(slug)),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("room %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("load room: %w", err)
	}
	return id, nil
}

func (s *SQLite) PostMessage(ctx context.Context, slug, sender, body, sentAt string) (*ChatMessage, error) {
	roomID, err := s.roomID(ctx, slug)
	if err != nil {
		return nil, err
	}
	sender = NormalizeHandle(sender)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensureUsersTx(ctx, tx, []string{sender}); err != nil {
		return nil, err
	}

	var member int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_members WHERE room_id = ? AND handle = ?`,
		roomID, sender).Scan(&member); err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if member == 0 {
		return nil, ErrNotMember
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages(room_id, sender, body, sent_at) VALUES(?, ?, ?, ?)`,
		roomID, sender, body, sentAtOrNow(sentAt))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	msgID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.chatMessage(ctx, msgID)
}

func (s *SQLite) PostDM(ctx context.Context, sender, recipient, body, sentAt string) (*ChatMessage, error) {
	slug := DMSlug(sender, recipient)
	a, b := NormalizeHandle(sender), NormalizeHandle(recipient)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensureUsersTx(ctx, tx, []string{a, b}); err != nil {
		return nil, err
	}

	var roomID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM chat_rooms WHERE slug = ?`, slug).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chat_rooms(slug, name, is_dm) VALUES(?, ?, 1)`,
			slug, fmt.Sprintf("DM %s<->%s", minStr(a, b), maxStr(a, b)))
		if err != nil {
			return nil, fmt.Errorf("insert dm room: %w", err)
		}
		roomID, err = res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("dm room id: %w", err)
		}
		for _, h := range []string{a, b} {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO chat_members(room_id, handle) VALUES(?, ?)`, roomID, h); err != nil {
				return nil, fmt.Errorf("insert dm member: %w", err)
			}
		}
	} else if err != nil {
		return nil, fmt.Errorf("load dm room: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages(room_id, sender, body, sent_at) VALUES(?, ?, ?, ?)`,
		roomID, a, body, sentAtOrNow(sentAt))
	if err != nil {
		return nil, fmt.Errorf("insert dm: %w", err)
	}
	msgID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("dm id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.chatMessage(ctx, msgID)
}

func (s *SQLite) chatMessage(ctx context.Context, id int64) (*ChatMessage, error) {
	m := &ChatMessage{}
	err := s.db.QueryRowContext(ctx, `
		SELECT m.id, r.slug, m.sender, m.body, m.sent_at
		FROM chat_messages m JOIN chat_rooms r ON m.room_id = r.id
		WHERE m.id = ?
	`, id).Scan(&m.ID, &m.RoomSlug, &m.Sender, &m.Body, &m.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}
	return m, nil
}

func (s *SQLite) RoomMessages(ctx context.Context, slug string, f ListFilter) ([]ChatMessage, error) {
	roomID, err := s.roomID(ctx, slug)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT m.id, r.slug, m.sender, m.body, m.sent_at
		FROM chat_messages m JOIN chat_rooms r ON m.room_id = r.id
		WHERE m.room_id = ?`
	args := []any{roomID}
	query, args = appendChatFilter(query, args, f)

	return s.queryChatMessages(ctx, query, args)
}

func (s *SQLite) UserDMs(ctx context.Context, handle string, f ListFilter) ([]ChatMessage, error) {
	h := NormalizeHandle(handle)

	// Union across every DM room the handle is a member of, then apply the
	// cursor filters over the combined set.
	rows, err := s.db.QueryContext(ctx, `
		SELECT cm.room_id
		FROM chat_members cm JOIN chat_rooms cr ON cm.room_id = cr.id
		WHERE cm.handle = ? AND cr.is_dm = 1
	`, h)
	if err != nil {
		return nil, fmt.Errorf("load dm rooms: %w", err)
	}
	defer rows.Close()

	var roomIDs []any
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan room id: %w", err)
		}
		roomIDs = append(roomIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(roomIDs) == 0 {
		return []ChatMessage{}, nil
	}

	placeholders := strings.Repeat("?,", len(roomIDs))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(`
		SELECT m.id, r.slug, m.sender, m.body, m.sent_at
		FROM chat_messages m JOIN chat_rooms r ON m.room_id = r.id
		WHERE m.room_id IN (%s)`, placeholders)
	args := roomIDs
	query, args = appendChatFilter(query, args, f)

	return s.queryChatMessages(ctx, query, args)
}

// appendChatFilter applies since_id/since_timestamp conjunctively, orders
// chronologically ascending, then caps with limit.
func appendChatFilter(query string, args []any, f ListFilter) (string, []any) {
	if f.SinceID > 0 {
		query += " AND m.id > ?"
		args = append(args, f.SinceID)
	}
	if f.SinceTimestamp != "" {
		query += " AND m.sent_at > ?"
		args = append(args, f.SinceTimestamp)
	}
	query += " ORDER BY m.sent_at, m.id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return query, args
}

func (s *SQLite) queryChatMessages(ctx context.Context, query string, args []any) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []ChatMessage{}
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomSlug, &m.Sender, &m.Body, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLite) EnsureMailbox(ctx context.Context, address, displayName string) (*Mailbox, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mailboxes(address, display_name) VALUES(?, ?)
		ON CONFLICT(address) DO UPDATE SET display_name = COALESCE(NULLIF(?, ''), display_name)
	`, addr, displayName, displayName)
	if err != nil {
		return nil, fmt.Errorf("ensure mailbox: %w", err)
	}

	mb := &Mailbox{}
	var display sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT address, display_name FROM mailboxes WHERE address = ?`, addr,
	).Scan(&mb.Address, &display)
	if err != nil {
		return nil, fmt.Errorf("load mailbox: %w", err)
	}
	mb.DisplayName = display.String
	return mb, nil
}

func (s *SQLite) SendEmail(ctx context.Context, e OutgoingEmail) (*Email, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, addr := range append([]string{e.Sender}, e.Recipients()...) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mailboxes(address) VALUES(?) ON CONFLICT(address) DO NOTHING`, addr); err != nil {
			return nil, fmt.Errorf("ensure mailbox %s: %w", addr, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO emails(sender, subject, body, thread_id, sent_at) VALUES(?, ?, ?, NULLIF(?, ''), ?)`,
		e.Sender, e.Subject, e.Body, e.ThreadID, sentAtOrNow(e.SentAt))
	if err != nil {
		return nil, fmt.Errorf("insert email: %w", err)
	}
	emailID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("email id: %w", err)
	}

	for kind, bucket := range map[string][]string{"to": e.To, "cc": e.CC, "bcc": e.BCC} {
		for _, addr := range bucket {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO email_recipients(email_id, address, kind) VALUES(?, ?, ?)`,
				emailID, addr, kind); err != nil {
				return nil, fmt.Errorf("insert recipient: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetEmail(ctx, emailID)
}

func (s *SQLite) GetEmail(ctx context.Context, id int64) (*Email, error) {
	e := &Email{To: []string{}, CC: []string{}, BCC: []string{}}
	var threadID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sender, subject, body, thread_id, sent_at FROM emails WHERE id = ?`, id,
	).Scan(&e.ID, &e.Sender, &e.Subject, &e.Body, &threadID, &e.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("email %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load email: %w", err)
	}
	e.ThreadID = threadID.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT address, kind FROM email_recipients WHERE email_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var addr, kind string
		if err := rows.Scan(&addr, &kind); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		switch kind {
		case "to":
			e.To = append(e.To, addr)
		case "cc":
			e.CC = append(e.CC, addr)
		case "bcc":
			e.BCC = append(e.BCC, addr)
		}
	}
	return e, rows.Err()
}

func (s *SQLite) MailboxEmails(ctx context.Context, address string, f ListFilter) ([]Email, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mailboxes WHERE address = ?`, addr).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check mailbox: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("mailbox %s: %w", addr, ErrNotFound)
	}

	// Oldest qualifying first; limit truncates after ordering, so a caller
	// wanting the newest N pages forward with since_id instead.
	query := `
		SELECT DISTINCT er.email_id
		FROM email_recipients er JOIN emails e ON er.email_id = e.id
		WHERE er.address = ?`
	args := []any{addr}
	if f.SinceID > 0 {
		query += " AND er.email_id > ?"
		args = append(args, f.SinceID)
	}
	if f.SinceTimestamp != "" {
		query += " AND e.sent_at > ?"
		args = append(args, f.SinceTimestamp)
	}
	query += " ORDER BY e.sent_at, er.email_id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query emails: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan email id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	emails := []Email{}
	for _, id := range ids {
		e, err := s.GetEmail(ctx, id)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}
	return emails, nil
}

func (s *SQLite) SaveDraft(ctx context.Context, mailbox, subject, body, threadID string) (*Draft, error) {
	addr, err := NormalizeAddress(mailbox)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO mailboxes(address) VALUES(?) ON CONFLICT(address) DO NOTHING`, addr); err != nil {
		return nil, fmt.Errorf("ensure mailbox: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO drafts(mailbox, subject, body, thread_id, updated_at) VALUES(?, ?, ?, NULLIF(?, ''), ?)`,
		addr, subject, body, threadID, nowISO())
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	draftID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("draft id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.draft(ctx, draftID)
}

func (s *SQLite) draft(ctx context.Context, id int64) (*Draft, error) {
	d := &Draft{}
	var threadID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, mailbox, subject, body, thread_id, updated_at FROM drafts WHERE id = ?`, id,
	).Scan(&d.ID, &d.Mailbox, &d.Subject, &d.Body, &threadID, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draft %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	d.ThreadID = threadID.String
	return d, nil
}

func (s *SQLite) MailboxDrafts(ctx context.Context, mailbox string) ([]Draft, error) {
	addr, err := NormalizeAddress(mailbox)
	if err != nil {
		return nil, err
	}
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mailboxes WHERE address = ?`, addr).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check mailbox: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("mailbox %s: %w", addr, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM drafts WHERE mailbox = ? ORDER BY updated_at DESC`, addr)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan draft id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	drafts := []Draft{}
	for _, id := range ids {
		d, err := s.draft(ctx, id)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *d)
	}
	return drafts, nil
}

func (s *SQLite) UpsertPersona(ctx context.Context, p model.Persona) error {
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO people(name, email_address, chat_handle, role, skills)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(email_address, chat_handle) DO UPDATE SET name = ?, role = ?, skills = ?
	`, p.Name, strings.ToLower(p.EmailAddress), strings.ToLower(p.ChatHandle), p.Role, string(skills),
		p.Name, p.Role, string(skills))
	if err != nil {
		return fmt.Errorf("upsert persona: %w", err)
	}
	return nil
}

func (s *SQLite) Personas(ctx context.Context) ([]model.Persona, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, email_address, chat_handle, role, skills FROM people ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query personas: %w", err)
	}
	defer rows.Close()

	personas := []model.Persona{}
	for rows.Next() {
		var p model.Persona
		var skills string
		if err := rows.Scan(&p.Name, &p.EmailAddress, &p.ChatHandle, &p.Role, &skills); err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
			p.Skills = nil
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

func minStr(a, b string) string {
	if a < b {
		return a
	}
	return b
}

func maxStr(a, b string) string {
	if a < b {
		return b
	}
	return a
}
