package source

import (
	"time"
)

// Cursor is the highest identifier and latest timestamp observed for one
// (channel, origin) pair. The id is the primary cursor; the timestamp is a
// redundant fallback since bulk inserts can share a clock reading while ids
// are strictly ordered.
type Cursor struct {
	LastID        int64     `json:"last_id"`
	LastTimestamp time.Time `json:"last_timestamp"`
}

// CursorSet tracks cursors per (channel, origin). It is owned by a single
// live source instance and reset only by discarding that instance.
type CursorSet struct {
	Cursors map[string]Cursor `json:"cursors"`
}

func NewCursorSet() *CursorSet {
	return &CursorSet{Cursors: make(map[string]Cursor)}
}

func cursorKey(channel, origin string) string {
	return channel + "/" + origin
}

// Get returns the cursor for a channel/origin, zero if none yet.
func (s *CursorSet) Get(channel, origin string) Cursor {
	return s.Cursors[cursorKey(channel, origin)]
}

// Advance raises the cursor for a channel/origin. It never moves backwards,
// so replayed or out-of-order observations cannot regress it.
func (s *CursorSet) Advance(channel, origin string, id int64, ts time.Time) {
	key := cursorKey(channel, origin)
	cur := s.Cursors[key]
	if id > cur.LastID {
		cur.LastID = id
	}
	if ts.After(cur.LastTimestamp) {
		cur.LastTimestamp = ts
	}
	s.Cursors[key] = cur
}

// Reset clears every cursor, forcing the next incremental poll to fetch
// from the beginning.
func (s *CursorSet) Reset() {
	s.Cursors = make(map[string]Cursor)
}
