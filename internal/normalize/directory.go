package normalize

import (
	"strings"

	"github.com/agentdesk/officesync/internal/model"
)

// Directory is the persona lookup built once per dataset load: two parallel
// case-insensitive tables, one keyed by email address and one by chat
// handle. It is immutable after construction.
type Directory struct {
	personas []model.Persona
	byEmail  map[string]*model.Persona
	byHandle map[string]*model.Persona
}

// NewDirectory builds both lookup tables from the given personas. Entries
// without an address (or handle) simply don't appear in that table.
func NewDirectory(personas []model.Persona) *Directory {
	d := &Directory{
		personas: personas,
		byEmail:  make(map[string]*model.Persona, len(personas)),
		byHandle: make(map[string]*model.Persona, len(personas)),
	}
	for i := range personas {
		p := &personas[i]
		if p.EmailAddress != "" {
			d.byEmail[strings.ToLower(p.EmailAddress)] = p
		}
		if p.ChatHandle != "" {
			d.byHandle[strings.ToLower(p.ChatHandle)] = p
		}
	}
	return d
}

// ByEmail resolves a persona by email address, case-insensitively.
func (d *Directory) ByEmail(address string) *model.Persona {
	return d.byEmail[strings.ToLower(strings.TrimSpace(address))]
}

// ByHandle resolves a persona by chat handle, case-insensitively.
func (d *Directory) ByHandle(handle string) *model.Persona {
	return d.byHandle[strings.ToLower(strings.TrimSpace(handle))]
}

// Personas returns the personas the directory was built from.
func (d *Directory) Personas() []model.Persona {
	return d.personas
}
