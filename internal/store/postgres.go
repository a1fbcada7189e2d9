package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentdesk/officesync/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS chat_users (
	handle TEXT PRIMARY KEY,
	display_name TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chat_rooms (
	id BIGSERIAL PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	is_dm BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chat_members (
	room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
	handle TEXT NOT NULL REFERENCES chat_users(handle) ON DELETE CASCADE,
	added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (room_id, handle)
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id BIGSERIAL PRIMARY KEY,
	room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
	sender TEXT NOT NULL REFERENCES chat_users(handle),
	body TEXT NOT NULL,
	sent_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages(room_id, sent_at);

CREATE TABLE IF NOT EXISTS mailboxes (
	address TEXT PRIMARY KEY,
	display_name TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS emails (
	id BIGSERIAL PRIMARY KEY,
	sender TEXT NOT NULL REFERENCES mailboxes(address),
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	thread_id TEXT,
	sent_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS email_recipients (
	id BIGSERIAL PRIMARY KEY,
	email_id BIGINT NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
	address TEXT NOT NULL,
	kind TEXT NOT NULL CHECK(kind IN ('to', 'cc', 'bcc'))
);

CREATE INDEX IF NOT EXISTS idx_email_recipient_address ON email_recipients(address);

CREATE TABLE IF NOT EXISTS drafts (
	id BIGSERIAL PRIMARY KEY,
	mailbox TEXT NOT NULL REFERENCES mailboxes(address),
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	thread_id TEXT,
	updated_at TEXT NOT NULL
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

// Postgres backs the office servers when several processes need a shared
// database. Timestamps stay TEXT in ISO-8601 so lexical comparison matches
// the SQLite backend exactly.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) EnsureUser(ctx context.Context, handle, displayName string) (*User, error) {
	h := NormalizeHandle(handle)
	_, err := p.pool.Exec(ctx, `
		INSERT INTO chat_users(handle, display_name) VALUES($1, $2)
		ON CONFLICT(handle) DO UPDATE SET display_name = COALESCE(NULLIF($2, ''), chat_users.display_name)
	`, h, displayName)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	u := &User{}
	var display *string
	err = p.pool.QueryRow(ctx,
		`SELECT handle, display_name FROM chat_users WHERE handle = $1`, h,
	).Scan(&u.Handle, &display)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if display != nil {
		u.DisplayName = *display
	}
	return u, nil
}

func (p *Postgres) ensureUsersTx(ctx context.Context, tx pgx.Tx, handles []string) error {
	for _, h := range handles {
		h = NormalizeHandle(h)
		if h == "" {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_users(handle) VALUES($1) ON CONFLICT(handle) DO NOTHING`, h); err != nil {
			return fmt.Errorf("ensure user %s: %w", h, err)
		}
	}
	return nil
}

func (p *Postgres) CreateRoom(ctx context.Context, slug, name string, participants []string) (*Room, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM chat_rooms WHERE slug = $1`, slug).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check slug: %w", err)
	}
	if exists > 0 {
		return nil, ErrRoomExists
	}

	if err := p.ensureUsersTx(ctx, tx, participants); err != nil {
		return nil, err
	}

	var roomID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO chat_rooms(slug, name, is_dm) VALUES($1, $2, FALSE) RETURNING id`,
		slug, name).Scan(&roomID)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	for _, h := range participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_members(room_id, handle) VALUES($1, $2) ON CONFLICT DO NOTHING`,
			roomID, NormalizeHandle(h)); err != nil {
			return nil, fmt.Errorf("insert member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p.GetRoom(ctx, slug)
}

func (p *Postgres) GetRoom(ctx context.Context, slug string) (*Room, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))

	room := &Room{}
	var roomID int64
	err := p.pool.QueryRow(ctx,
		`SELECT id, slug, name, is_dm FROM chat_rooms WHERE slug = $1`, slug,
	).Scan(&roomID, &room.Slug, &room.Name, &room.IsDM)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT handle FROM chat_members WHERE room_id = $1 ORDER BY handle`, roomID)
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

func (p *Postgres) roomID(ctx context.Context, slug string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`SELECT id FROM chat_rooms WHERE slug = $1`, strings.ToLower(strings.TrimSpace(slug)),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("room %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("load room: %w", err)
	}
	return id, nil
}

func (p *Postgres) PostMessage(ctx context.Context, slug, sender, body, sentAt string) (*ChatMessage, error) {
	roomID, err := p.roomID(ctx, slug)
	if err != nil {
		return nil, err
	}
	sender = NormalizeHandle(sender)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := p.ensureUsersTx(ctx, tx, []string{sender}); err != nil {
		return nil, err
	}

	var member int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_members WHERE room_id = $1 AND handle = $2`,
		roomID, sender).Scan(&member); err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if member == 0 {
		return nil, ErrNotMember
	}

	var msgID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO chat_messages(room_id, sender, body, sent_at) VALUES($1, $2, $3, $4) RETURNING id`,
		roomID, sender, body, sentAtOrNow(sentAt)).Scan(&msgID)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p.chatMessage(ctx, msgID)
}

func (p *Postgres) PostDM(ctx context.Context, sender, recipient, body, sentAt string) (*ChatMessage, error) {
	slug := DMSlug(sender, recipient)
	a, b := NormalizeHandle(sender), NormalizeHandle(recipient)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := p.ensureUsersTx(ctx, tx, []string{a, b}); err != nil {
		return nil, err
	}

	var roomID int64
	err = tx.QueryRow(ctx, `SELECT id FROM chat_rooms WHERE slug = $1`, slug).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx,
			`INSERT INTO chat_rooms(slug, name, is_dm) VALUES($1, $2, TRUE) RETURNING id`,
			slug, fmt.Sprintf("DM %s<->%s", minStr(a, b), maxStr(a, b))).Scan(&roomID)
		if err != nil {
			return nil, fmt.Errorf("insert dm room: %w", err)
		}
		for _, h := range []string{a, b} {
			if _, err := tx.Exec(ctx,
				`INSERT INTO chat_members(room_id, handle) VALUES($1, $2) ON CONFLICT DO NOTHING`, roomID, h); err != nil {
				return nil, fmt.Errorf("insert dm member: %w", err)
			}
		}
	} else if err != nil {
		return nil, fmt.Errorf("load dm room: %w", err)
	}

	var msgID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO chat_messages(room_id, sender, body, sent_at) VALUES($1, $2, $3, $4) RETURNING id`,
		roomID, a, body, sentAtOrNow(sentAt)).Scan(&msgID)
	if err != nil {
		return nil, fmt.Errorf("insert dm: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p.chatMessage(ctx, msgID)
}

func (p *Postgres) chatMessage(ctx context.Context, id int64) (*ChatMessage, error) {
	m := &ChatMessage{}
	err := p.pool.QueryRow(ctx, `
		SELECT m.id, r.slug, m.sender, m.body, m.sent_at
		FROM chat_messages m JOIN chat_rooms r ON m.room_id = r.id
		WHERE m.id = $1
	`, id).Scan(&m.ID, &m.RoomSlug, &m.Sender, &m.Body, &m.SentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}
	return m, nil
}

func (p *Postgres) RoomMessages(ctx context.Context, slug string, f ListFilter) ([]ChatMessage, error) {
	roomID, err := p.roomID(ctx, slug)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT m.id, r.slug, m.sender, m.body, m.sent_at
		FROM chat_messages m JOIN chat_rooms r ON m.room_id = r.id
		WHERE m.room_id = $1`
	args := []any{roomID}
	query, args = appendChatFilterPG(query, args, f)

	return p.queryChatMessages(ctx, query, args)
}

func (p *Postgres) UserDMs(ctx context.Context, handle string, f ListFilter) ([]ChatMessage, error) {
	h := NormalizeHandle(handle)

	query := `
		SELECT m.id, r.slug, m.sender, m.body, m.sent_at
		FROM chat_messages m
		JOIN chat_rooms r ON m.room_id = r.id
		JOIN chat_members cm ON cm.room_id = r.id AND cm.handle = $1
		WHERE r.is_dm`
	args := []any{h}
	query, args = appendChatFilterPG(query, args, f)

	return p.queryChatMessages(ctx, query, args)
}

func appendChatFilterPG(query string, args []any, f ListFilter) (string, []any) {
	if f.SinceID > 0 {
		args = append(args, f.SinceID)
		query += fmt.Sprintf(" AND m.id > $%d", len(args))
	}
	if f.SinceTimestamp != "" {
		args = append(args, f.SinceTimestamp)
		query += fmt.Sprintf(" AND m.sent_at > $%d", len(args))
	}
	query += " ORDER BY m.sent_at, m.id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

func (p *Postgres) queryChatMessages(ctx context.Context, query string, args []any) ([]ChatMessage, error) {
	rows, err := p.pool.Query(ctx, query, args...)
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

func (p *Postgres) EnsureMailbox(ctx context.Context, address, displayName string) (*Mailbox, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO mailboxes(address, display_name) VALUES($1, $2)
		ON CONFLICT(address) DO UPDATE SET display_name = COALESCE(NULLIF($2, ''), mailboxes.display_name)
	`, addr, displayName)
	if err != nil {
		return nil, fmt.Errorf("ensure mailbox: %w", err)
	}

	mb := &Mailbox{}
	var display *string
	err = p.pool.QueryRow(ctx,
		`SELECT address, display_name FROM mailboxes WHERE address = $1`, addr,
	).Scan(&mb.Address, &display)
	if err != nil {
		return nil, fmt.Errorf("load mailbox: %w", err)
	}
	if display != nil {
		mb.DisplayName = *display
	}
	return mb, nil
}

func (p *Postgres) SendEmail(ctx context.Context, e OutgoingEmail) (*Email, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, addr := range append([]string{e.Sender}, e.Recipients()...) {
		if _, err := tx.Exec(ctx,
			`INSERT INTO mailboxes(address) VALUES($1) ON CONFLICT(address) DO NOTHING`, addr); err != nil {
			return nil, fmt.Errorf("ensure mailbox %s: %w", addr, err)
		}
	}

	var emailID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO emails(sender, subject, body, thread_id, sent_at) VALUES($1, $2, $3, NULLIF($4, ''), $5) RETURNING id`,
		e.Sender, e.Subject, e.Body, e.ThreadID, sentAtOrNow(e.SentAt)).Scan(&emailID)
	if err != nil {
		return nil, fmt.Errorf("insert email: %w", err)
	}

	for kind, bucket := range map[string][]string{"to": e.To, "cc": e.CC, "bcc": e.BCC} {
		for _, addr := range bucket {
			if _, err := tx.Exec(ctx,
				`INSERT INTO email_recipients(email_id, address, kind) VALUES($1, $2, $3)`,
				emailID, addr, kind); err != nil {
				return nil, fmt.Errorf("insert recipient: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p.GetEmail(ctx, emailID)
}

func (p *Postgres) GetEmail(ctx context.Context, id int64) (*Email, error) {
	e := &Email{To: []string{}, CC: []string{}, BCC: []string{}}
	var threadID *string
	err := p.pool.QueryRow(ctx,
		`SELECT id, sender, subject, body, thread_id, sent_at FROM emails WHERE id = $1`, id,
	).Scan(&e.ID, &e.Sender, &e.Subject, &e.Body, &threadID, &e.SentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("email %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load email: %w", err)
	}
	if threadID != nil {
		e.ThreadID = *threadID
	}

	rows, err := p.pool.Query(ctx,
		`SELECT address, kind FROM email_recipients WHERE email_id = $1 ORDER BY id`, id)
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

func (p *Postgres) MailboxEmails(ctx context.Context, address string, f ListFilter) ([]Email, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	var exists int
	if err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM mailboxes WHERE address = $1`, addr).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check mailbox: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("mailbox %s: %w", addr, ErrNotFound)
	}

	query := `
		SELECT DISTINCT er.email_id, e.sent_at
		FROM email_recipients er JOIN emails e ON er.email_id = e.id
		WHERE er.address = $1`
	args := []any{addr}
	if f.SinceID > 0 {
		args = append(args, f.SinceID)
		query += fmt.Sprintf(" AND er.email_id > $%d", len(args))
	}
	if f.SinceTimestamp != "" {
		args = append(args, f.SinceTimestamp)
		query += fmt.Sprintf(" AND e.sent_at > $%d", len(args))
	}
	query += " ORDER BY e.sent_at, er.email_id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query emails: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var sentAt string
		if err := rows.Scan(&id, &sentAt); err != nil {
			return nil, fmt.Errorf("scan email id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	emails := []Email{}
	for _, id := range ids {
		e, err := p.GetEmail(ctx, id)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}
	return emails, nil
}

func (p *Postgres) SaveDraft(ctx context.Context, mailbox, subject, body, threadID string) (*Draft, error) {
	addr, err := NormalizeAddress(mailbox)
	if err != nil {
		return nil, err
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO mailboxes(address) VALUES($1) ON CONFLICT(address) DO NOTHING`, addr); err != nil {
		return nil, fmt.Errorf("ensure mailbox: %w", err)
	}
	var draftID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO drafts(mailbox, subject, body, thread_id, updated_at) VALUES($1, $2, $3, NULLIF($4, ''), $5) RETURNING id`,
		addr, subject, body, threadID, nowISO()).Scan(&draftID)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p.draft(ctx, draftID)
}

func (p *Postgres) draft(ctx context.Context, id int64) (*Draft, error) {
	d := &Draft{}
	var threadID *string
	err := p.pool.QueryRow(ctx,
		`SELECT id, mailbox, subject, body, thread_id, updated_at FROM drafts WHERE id = $1`, id,
	).Scan(&d.ID, &d.Mailbox, &d.Subject, &d.Body, &threadID, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("draft %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if threadID != nil {
		d.ThreadID = *threadID
	}
	return d, nil
}

func (p *Postgres) MailboxDrafts(ctx context.Context, mailbox string) ([]Draft, error) {
	addr, err := NormalizeAddress(mailbox)
	if err != nil {
		return nil, err
	}
	var exists int
	if err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM mailboxes WHERE address = $1`, addr).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check mailbox: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("mailbox %s: %w", addr, ErrNotFound)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id FROM drafts WHERE mailbox = $1 ORDER BY updated_at DESC`, addr)
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
		d, err := p.draft(ctx, id)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *d)
	}
	return drafts, nil
}

func (p *Postgres) UpsertPersona(ctx context.Context, persona model.Persona) error {
	skills, err := json.Marshal(persona.Skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO people(name, email_address, chat_handle, role, skills)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT(email_address, chat_handle) DO UPDATE SET name = $1, role = $4, skills = $5
	`, persona.Name, strings.ToLower(persona.EmailAddress), strings.ToLower(persona.ChatHandle), persona.Role, string(skills))
	if err != nil {
		return fmt.Errorf("upsert persona: %w", err)
	}
	return nil
}

func (p *Postgres) Personas(ctx context.Context) ([]model.Persona, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT name, email_address, chat_handle, role, skills FROM people ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query personas: %w", err)
	}
	defer rows.Close()

	personas := []model.Persona{}
	for rows.Next() {
		var persona model.Persona
		var skills string
		if err := rows.Scan(&persona.Name, &persona.EmailAddress, &persona.ChatHandle, &persona.Role, &skills); err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		if err := json.Unmarshal([]byte(skills), &persona.Skills); err != nil {
			persona.Skills = nil
		}
		personas = append(personas, persona)
	}
	return personas, rows.Err()
}
