package dates

import (
	"strings"
	"time"
)

const (
	DisplayLayout = "02/01/2006"
	ISOLayout     = "2006-01-02"
)

var (
	ART *time.Location // UTC-3 - Argentina, no DST
	BRT *time.Location // UTC-3 - Brasilia
	CLT *time.Location // UTC-4 - Chile continental (standard time)
)

func init() {
	ART = time.FixedZone("ART", -3*60*60)
	BRT = time.FixedZone("BRT", -3*60*60)
	CLT = time.FixedZone("CLT", -4*60*60)
}

// LocationByName maps the agency configured zone to a location, ART when unknown.
func LocationByName(name string) *time.Location {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "ART", "UTC-3", "AMERICA/ARGENTINA/BUENOS_AIRES":
		return ART
	case "BRT", "AMERICA/SAO_PAULO":
		return BRT
	case "CLT", "UTC-4":
		return CLT
	default:
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
		return ART
	}
}

// Parse accepts what the date field and the stored previous values may contain and
// returns the calendar day at midnight in loc.
func Parse(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = ART
	}

	withZone := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05-0700", // Without colon
		"2006-01-02T15:04:05Z",
	}
	for _, format := range withZone {
		if t, err := time.Parse(format, value); err == nil {
			return Day(t.In(loc)), nil
		}
	}

	local := []string{
		DisplayLayout,
		ISOLayout,
		"2/1/2006",
		"02-01-2006",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, format := range local {
		if t, err := time.ParseInLocation(format, value, loc); err == nil {
			return Day(t), nil
		}
	}

	return time.Time{}, &time.ParseError{
		Value:   value,
		Message: "unable to parse date string",
	}
}

func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func Display(t time.Time) string {
	return t.Format(DisplayLayout)
}

func ISO(t time.Time) string {
	return t.Format(ISOLayout)
}
