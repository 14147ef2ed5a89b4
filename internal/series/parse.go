package series

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when a date label is a string.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// ParseDate coerces a date label to a calendar date at midnight UTC.
// Strings are matched against common layouts; integers and floats are unix
// seconds. The calendar day of a time.Time is taken in its own location.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, false
		}
		return dateOf(d), true
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return dateOf(ts), true
			}
		}
		return time.Time{}, false
	case int64:
		return dateOf(time.Unix(d, 0).UTC()), true
	case int:
		return dateOf(time.Unix(int64(d), 0).UTC()), true
	case float64:
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return time.Time{}, false
		}
		return dateOf(time.Unix(int64(d), 0).UTC()), true
	case json.Number:
		n, err := d.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return dateOf(time.Unix(n, 0).UTC()), true
	default:
		return time.Time{}, false
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseValue coerces a cell to a finite float64. NaN, infinities, blanks,
// nil and unparseable strings are rejected.
func ParseValue(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
