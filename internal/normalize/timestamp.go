package normalize

import (
	"log/slog"
	"strings"
	"time"

	"github.com/agentdesk/officesync/internal/metrics"
)

// Timestamp layouts tried in order. Offset-bearing layouts first, then naive
// ISO forms interpreted as UTC, then the loose "YYYY-MM-DD HH:MM:SS" shape
// some dataset exports carry.
var timestampLayouts = []struct {
	layout string
	naive  bool
}{
	{layout: "2006-01-02T15:04:05.999999999Z07:00"},
	{layout: "2006-01-02T15:04Z07:00"},
	{layout: "2006-01-02T15:04:05.999999999", naive: true},
	{layout: "2006-01-02T15:04", naive: true},
	{layout: "2006-01-02 15:04:05", naive: true},
	{layout: "2006-01-02", naive: true},
}

// ParseTimestamp converts a raw textual timestamp into a UTC instant. A
// trailing "Z" is treated as "+00:00"; a timestamp without any offset is
// assumed to already be UTC rather than rejected. The second return reports
// whether parsing succeeded.
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "+00:00"
	}
	for _, l := range timestampLayouts {
		if l.naive {
			if t, err := time.ParseInLocation(l.layout, s, time.UTC); err == nil {
				return t, true
			}
			continue
		}
		if t, err := time.Parse(l.layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizeTimestamp is ParseTimestamp with the self-healing default: when
// the input is absent or unparsable it returns the current instant so that
// downstream ordering stays total. The anomaly is logged, not raised.
func NormalizeTimestamp(raw string, logger *slog.Logger) time.Time {
	if t, ok := ParseTimestamp(raw); ok {
		return t
	}
	if logger != nil {
		logger.Warn("unparsable timestamp, substituting current time", "raw", raw)
	}
	metrics.TimestampFallbacks.Inc()
	return time.Now().UTC()
}
