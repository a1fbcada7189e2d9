package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentdesk/officesync/internal/model"
	"github.com/agentdesk/officesync/internal/normalize"
	"github.com/agentdesk/officesync/internal/voclient"
)

// LiveSource polls the virtual office backends incrementally. It owns one
// cursor per (channel, origin) and passes the highest seen id back as
// since_id on the next poll. Cursors advance only after a successful fetch;
// a failed fetch leaves them untouched so nothing is skipped.
//
// Concurrent overlapping collects on one instance race on the cursors and
// must be serialized by the caller.
type LiveSource struct {
	client  *voclient.Client
	me      model.Persona
	dir     *normalize.Directory
	builder *normalize.Builder
	cursors *CursorSet
	logger  *slog.Logger
}

// NewLiveSource fetches and caches the persona roster once, then resolves
// the selected handle against it. The selected persona decides which
// mailbox and DM history get polled.
func NewLiveSource(ctx context.Context, client *voclient.Client, selectedHandle string, logger *slog.Logger) (*LiveSource, error) {
	personas, err := client.Personas(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	dir := normalize.NewDirectory(personas)
	me := dir.ByHandle(selectedHandle)
	if me == nil {
		return nil, fmt.Errorf("persona %q not found in roster", selectedHandle)
	}
	if me.EmailAddress == "" || me.ChatHandle == "" {
		return nil, fmt.Errorf("persona %q lacks an email address or chat handle", selectedHandle)
	}

	logger.Info("live poll source ready", "persona", me.Name, "mailbox", me.EmailAddress, "handle", me.ChatHandle)
	return &LiveSource{
		client:  client,
		me:      *me,
		dir:     dir,
		builder: normalize.NewBuilder(dir, logger),
		cursors: NewCursorSet(),
		logger:  logger,
	}, nil
}

func (s *LiveSource) Type() string { return TypeVirtualOffice }

func (s *LiveSource) Personas() []model.Persona { return s.dir.Personas() }

// SelectedPersona returns the identity whose mailbox and DMs are polled.
func (s *LiveSource) SelectedPersona() model.Persona { return s.me }

// Cursors exposes the live cursor set for checkpointing.
func (s *LiveSource) Cursors() *CursorSet { return s.cursors }

// RestoreCursors replaces the cursor set, typically from a checkpoint.
func (s *LiveSource) RestoreCursors(cs *CursorSet) {
	if cs != nil {
		s.cursors = cs
	}
}

// ResetCursors forces the next incremental collect to start from scratch.
func (s *LiveSource) ResetCursors() { s.cursors.Reset() }

// CollectMessages fetches the selected persona's DMs and mailbox
// sequentially, chat first, then merges ascending by timestamp. Each
// channel degrades independently: if one fetch fails the other channel's
// contribution is still returned and the failed channel's cursor stays
// where it was. Only when both channels fail is an error returned.
func (s *LiveSource) CollectMessages(ctx context.Context, opts *CollectOptions) ([]model.Message, error) {
	if opts == nil {
		opts = &CollectOptions{}
	}
	handle := s.me.ChatHandle
	mailbox := s.me.EmailAddress

	chatMsgs, chatErr := s.collectChat(ctx, handle, opts)
	emailMsgs, emailErr := s.collectEmail(ctx, mailbox, opts)

	if chatErr != nil && emailErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, errors.Join(chatErr, emailErr))
	}

	all := make([]model.Message, 0, len(chatMsgs)+len(emailMsgs))
	all = append(all, chatMsgs...)
	all = append(all, emailMsgs...)
	normalize.SortMessages(all)

	s.logger.Info("live collection finished",
		"chat", len(chatMsgs), "email", len(emailMsgs),
		"chat_cursor", s.cursors.Get(string(model.ChannelChat), handle).LastID,
		"email_cursor", s.cursors.Get(string(model.ChannelEmail), mailbox).LastID)
	return all, nil
}

func (s *LiveSource) collectChat(ctx context.Context, handle string, opts *CollectOptions) ([]model.Message, error) {
	listOpts := voclient.ListOptions{Limit: opts.Limit}
	if opts.Incremental {
		listOpts.SinceID = s.cursors.Get(string(model.ChannelChat), handle).LastID
	}

	raw, err := s.client.UserDMs(ctx, handle, listOpts)
	if err != nil {
		s.logger.Error("chat fetch failed, cursor unchanged", "handle", handle, "error", err, "retryable", voclient.Retryable(err))
		return nil, err
	}

	msgs := make([]model.Message, 0, len(raw))
	for _, r := range raw {
		m := s.builder.ChatMessage(r.RoomSlug, normalize.ChatEntry{
			ID:     r.ID,
			Sender: r.Sender,
			Body:   r.Body,
			SentAt: r.SentAt,
		}, false)
		msgs = append(msgs, m)
		s.cursors.Advance(string(model.ChannelChat), handle, r.ID, m.Timestamp)
	}
	return msgs, nil
}

func (s *LiveSource) collectEmail(ctx context.Context, mailbox string, opts *CollectOptions) ([]model.Message, error) {
	listOpts := voclient.ListOptions{Limit: opts.Limit}
	if opts.Incremental {
		listOpts.SinceID = s.cursors.Get(string(model.ChannelEmail), mailbox).LastID
	}

	raw, err := s.client.MailboxEmails(ctx, mailbox, listOpts)
	if err != nil {
		s.logger.Error("email fetch failed, cursor unchanged", "mailbox", mailbox, "error", err, "retryable", voclient.Retryable(err))
		return nil, err
	}

	msgs := make([]model.Message, 0, len(raw))
	for _, r := range raw {
		m := s.builder.EmailMessage(mailbox, normalize.EmailEntry{
			ID:       r.ID,
			Sender:   r.Sender,
			To:       r.To,
			CC:       r.CC,
			BCC:      r.BCC,
			Subject:  r.Subject,
			Body:     r.Body,
			ThreadID: r.ThreadID,
			SentAt:   r.SentAt,
		}, false)
		msgs = append(msgs, m)
		s.cursors.Advance(string(model.ChannelEmail), mailbox, r.ID, m.Timestamp)
	}
	return msgs, nil
}
