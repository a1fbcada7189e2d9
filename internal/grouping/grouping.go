// Package grouping partitions an already time-sorted message set into
// day, week, or month buckets for periodic reporting.
package grouping

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agentdesk/officesync/internal/model"
)

// Unit selects the bucketing granularity.
type Unit string

const (
	Daily   Unit = "daily"
	Weekly  Unit = "weekly"
	Monthly Unit = "monthly"
)

// ErrUnsupportedUnit is returned for a Unit the engine does not know.
var ErrUnsupportedUnit = errors.New("unsupported grouping unit")

// Bucket is one grouping key and the messages that fall into it. Message
// order within a bucket is the input order; the engine never re-sorts.
type Bucket struct {
	Key      string
	Messages []model.Message
}

// ByDay groups messages into "YYYY-MM-DD" buckets, ascending by key.
func ByDay(msgs []model.Message) []Bucket {
	return group(msgs, func(t time.Time) string {
		return t.Format("2006-01-02")
	})
}

// ByWeek groups messages into ISO weeks keyed by the date of the Monday
// that starts the week, ascending by key.
func ByWeek(msgs []model.Message) []Bucket {
	return group(msgs, func(t time.Time) string {
		return mondayOf(t).Format("2006-01-02")
	})
}

// ByMonth groups messages into "YYYY-MM" buckets, ascending by key.
func ByMonth(msgs []model.Message) []Bucket {
	return group(msgs, func(t time.Time) string {
		return t.Format("2006-01")
	})
}

// By dispatches on the unit.
func By(unit Unit, msgs []model.Message) ([]Bucket, error) {
	switch unit {
	case Daily:
		return ByDay(msgs), nil
	case Weekly:
		return ByWeek(msgs), nil
	case Monthly:
		return ByMonth(msgs), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedUnit, unit)
}

// DateRange resolves a bucket key to the inclusive UTC range it covers:
// [start, start+period) expressed as (start, end-1µs) so the range is
// closed on both ends.
func DateRange(key string, unit Unit) (start, end time.Time, err error) {
	switch unit {
	case Daily:
		start, err = time.ParseInLocation("2006-01-02", key, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse day key %q: %w", key, err)
		}
		end = start.AddDate(0, 0, 1).Add(-time.Microsecond)
	case Weekly:
		start, err = time.ParseInLocation("2006-01-02", key, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse week key %q: %w", key, err)
		}
		end = start.AddDate(0, 0, 7).Add(-time.Microsecond)
	case Monthly:
		start, err = time.ParseInLocation("2006-01", key, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse month key %q: %w", key, err)
		}
		end = start.AddDate(0, 1, 0).Add(-time.Microsecond)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedUnit, unit)
	}
	return start, end, nil
}

func group(msgs []model.Message, keyFn func(time.Time) string) []Bucket {
	byKey := make(map[string][]model.Message)
	for _, m := range msgs {
		k := keyFn(m.Timestamp.UTC())
		byKey[k] = append(byKey[k], m)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	// Lexicographic ascending coincides with chronological order for all
	// three key formats.
	sort.Strings(keys)

	buckets := make([]Bucket, len(keys))
	for i, k := range keys {
		buckets[i] = Bucket{Key: k, Messages: byKey[k]}
	}
	return buckets
}

// mondayOf returns midnight UTC of the Monday starting the ISO week that
// contains t.
func mondayOf(t time.Time) time.Time {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
