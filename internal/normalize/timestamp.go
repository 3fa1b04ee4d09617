package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Accepted textual layouts, tried in order. Everything is normalized to UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// unix timestamps at or above this magnitude are taken as milliseconds.
const unixMillisThreshold = 1e12

// parseTime resolves one raw timestamp token. Tokens may be an ISO-8601
// string in any accepted layout, or a unix epoch in seconds or milliseconds
// (number or numeric string). Returns false when every strategy fails.
func parseTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
		return parseTimeString(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return time.Time{}, false
	}
	return fromEpoch(f), true
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f), true
	}
	return time.Time{}, false
}

func fromEpoch(v float64) time.Time {
	if v >= unixMillisThreshold || v <= -unixMillisThreshold {
		return time.UnixMilli(int64(v)).UTC()
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
