package timeutil

import (
	"fmt"
	"strconv"
	"time"
)

// ISOLayout is the canonical UTC timestamp format sent to the PACS API.
const ISOLayout = "2006-01-02T15:04:05Z"

// FormatISO renders t in UTC using ISOLayout.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseInLocation parses value with layout as wall time in loc and returns it
// in UTC.
func ParseInLocation(layout, value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseOffset turns a "+HHMM"/"-HHMM" offset into a fixed zone.
func ParseOffset(offset string) (*time.Location, error) {
	if len(offset) < 3 {
		return nil, fmt.Errorf("timezone offset %q needs to be at least length 3", offset)
	}
	sign := offset[0]
	if sign != '+' && sign != '-' {
		return nil, fmt.Errorf("timezone offset %q must start with + or -", offset)
	}
	hours, err := strconv.Atoi(offset[1:3])
	if err != nil {
		return nil, fmt.Errorf("timezone offset %q: invalid hours: %w", offset, err)
	}
	minutes := 0
	if len(offset) > 3 {
		minutes, err = strconv.Atoi(offset[3:])
		if err != nil {
			return nil, fmt.Errorf("timezone offset %q: invalid minutes: %w", offset, err)
		}
	}
	total := hours*3600 + minutes*60
	if sign == '-' {
		total = -total
	}
	return time.FixedZone(offset, total), nil
}

// ResolveLocation picks the zone used to interpret vendor timestamps. A
// non-empty offset wins over name. Any parse failure falls back to UTC and is
// reported through the returned error so callers can log it.
func ResolveLocation(offset, name string) (*time.Location, error) {
	if offset != "" {
		loc, err := ParseOffset(offset)
		if err != nil {
			return time.UTC, err
		}
		return loc, nil
	}
	if name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return time.UTC, fmt.Errorf("timezone name %q: %w", name, err)
		}
		return loc, nil
	}
	return time.UTC, nil
}
