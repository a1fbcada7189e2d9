package model

// Persona is a named identity correlated across a chat handle and an email
// address. Role and skills are carried through untouched; the sync layer
// only keys on the address and handle.
type Persona struct {
	Name         string   `json:"name"`
	EmailAddress string   `json:"email_address,omitempty"`
	ChatHandle   string   `json:"chat_handle,omitempty"`
	Role         string   `json:"role,omitempty"`
	Skills       []string `json:"skills,omitempty"`
}
