package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// checkpoint is the on-disk shape of a saved cursor set. Checkpointing is
// an explicit opt-in for crash recovery; nothing loads it unless asked.
type checkpoint struct {
	SavedAt time.Time         `json:"saved_at"`
	Source  string            `json:"source"`
	Cursors map[string]Cursor `json:"cursors"`
}

// SaveCheckpoint persists the cursor set to path.
func SaveCheckpoint(path, sourceType string, cursors *CursorSet) error {
	cp := checkpoint{
		SavedAt: time.Now().UTC(),
		Source:  sourceType,
		Cursors: cursors.Cursors,
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadCheckpoint restores a cursor set from path. A missing file yields an
// empty set, not an error.
func LoadCheckpoint(path string) (*CursorSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCursorSet(), nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	set := NewCursorSet()
	if cp.Cursors != nil {
		set.Cursors = cp.Cursors
	}
	return set, nil
}
