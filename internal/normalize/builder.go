package normalize

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/agentdesk/officesync/internal/model"
)

// ChatEntry is a raw chat record as both the dataset files and the chat
// server emit it.
type ChatEntry struct {
	ID       int64  `json:"id"`
	RoomSlug string `json:"room_slug,omitempty"`
	Sender   string `json:"sender"`
	Body     string `json:"body"`
	SentAt   string `json:"sent_at"`
}

// EmailEntry is a raw email record as both the dataset files and the email
// server emit it.
type EmailEntry struct {
	ID       int64    `json:"id"`
	Sender   string   `json:"sender"`
	To       []string `json:"to,omitempty"`
	CC       []string `json:"cc,omitempty"`
	BCC      []string `json:"bcc,omitempty"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	ThreadID string   `json:"thread_id,omitempty"`
	SentAt   string   `json:"sent_at"`
}

// Builder maps raw source records into canonical Messages, resolving sender
// identity through the Directory and timestamps through the normalizer.
// Building the same raw record twice yields an identical Message.
type Builder struct {
	dir    *Directory
	logger *slog.Logger
}

func NewBuilder(dir *Directory, logger *slog.Logger) *Builder {
	return &Builder{dir: dir, logger: logger}
}

// ChatMessage builds the canonical Message for a chat entry. The room slug
// argument wins over the one embedded in the entry, so dataset readers can
// pass the containing room while live records carry their own.
func (b *Builder) ChatMessage(room string, e ChatEntry, isRead bool) model.Message {
	if room == "" {
		room = e.RoomSlug
	}
	persona := b.dir.ByHandle(e.Sender)

	display := e.Sender
	senderEmail := ""
	if persona != nil {
		if persona.Name != "" {
			display = persona.Name
		}
		senderEmail = persona.EmailAddress
	}
	if display == "" {
		display = "Unknown"
	}

	origin := room
	if origin == "" {
		origin = "chat"
	}

	msg := model.Message{
		ID:            fmt.Sprintf("chat_%s_%d", room, e.ID),
		SenderDisplay: display,
		SenderEmail:   senderEmail,
		SenderHandle:  e.Sender,
		SenderPersona: persona,
		Subject:       "",
		Body:          e.Body,
		Timestamp:     NormalizeTimestamp(e.SentAt, b.logger),
		Channel:       model.ChannelChat,
		Origin:        origin,
		IsRead:        isRead,
		Metadata: map[string]any{
			"chat_id":    e.ID,
			"raw_sender": e.Sender,
			"room_slug":  room,
		},
	}
	if persona != nil {
		msg.Metadata["persona"] = persona
	}
	return msg
}

// EmailMessage builds the canonical Message for an email entry observed in
// the given mailbox.
func (b *Builder) EmailMessage(mailbox string, e EmailEntry, isRead bool) model.Message {
	persona := b.dir.ByEmail(e.Sender)

	display := e.Sender
	senderHandle := ""
	if persona != nil {
		if persona.Name != "" {
			display = persona.Name
		}
		senderHandle = persona.ChatHandle
	}
	if display == "" {
		display = "Unknown"
	}

	// The id embeds the sender address, falling back to the mailbox, so
	// the same native id observed in two mailboxes stays distinct.
	suffix := e.Sender
	if suffix == "" {
		suffix = mailbox
	}

	msg := model.Message{
		ID:            fmt.Sprintf("email_%d_%s", e.ID, suffix),
		SenderDisplay: display,
		SenderEmail:   e.Sender,
		SenderHandle:  senderHandle,
		SenderPersona: persona,
		Subject:       e.Subject,
		Body:          e.Body,
		Timestamp:     NormalizeTimestamp(e.SentAt, b.logger),
		Channel:       model.ChannelEmail,
		Origin:        mailbox,
		ThreadID:      e.ThreadID,
		Recipients:    e.To,
		CC:            e.CC,
		BCC:           e.BCC,
		IsRead:        isRead,
		Metadata: map[string]any{
			"email_id": e.ID,
			"mailbox":  mailbox,
		},
	}
	if persona != nil {
		msg.Metadata["persona"] = persona
	}
	return msg
}

// SortMessages orders messages ascending by timestamp. The sort is stable,
// so records with equal timestamps keep their input order; merging chat
// before email therefore produces the same ordering on every rebuild.
func SortMessages(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
