package model

import "time"

// Channel identifies which communication medium a message arrived on.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

// Message is the canonical record every data source produces. IDs are
// derived deterministically from the source record's native key and origin,
// so rebuilding from the same raw input yields the same ID.
type Message struct {
	ID             string         `json:"id"`
	SenderDisplay  string         `json:"sender_display"`
	SenderEmail    string         `json:"sender_email,omitempty"`
	SenderHandle   string         `json:"sender_handle,omitempty"`
	SenderPersona  *Persona       `json:"sender_persona,omitempty"`
	Subject        string         `json:"subject"`
	Body           string         `json:"body"`
	Timestamp      time.Time      `json:"timestamp"`
	Channel        Channel        `json:"channel"`
	Origin         string         `json:"origin"`
	ThreadID       string         `json:"thread_id,omitempty"`
	Recipients     []string       `json:"recipients,omitempty"`
	CC             []string       `json:"cc,omitempty"`
	BCC            []string       `json:"bcc,omitempty"`
	IsRead         bool           `json:"is_read"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
