package courier

import (
	"strings"
	"time"
)

// Delhivery reports local Indian time, usually without a zone.
var courierZone = time.FixedZone("IST", 5*60*60+30*60)

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02",
}

// ParseStatusTime parses a StatusDateTime value. Values without a zone are
// read as IST. ok is false when no known layout matches.
func ParseStatusTime(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, courierZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
