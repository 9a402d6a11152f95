package reconcile

import (
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"airsync/internal/airtable"
)

var (
	// cellForm is the canonical comparison form, e.g. "2024-01-15 09:30:00".
	cellForm = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

	// isoMillisUTC is the strict ISO-8601 millisecond UTC form Airtable
	// emits for date fields.
	isoMillisUTC = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)
)

const isoMillisLayout = "2006-01-02T15:04:05.000Z"

// genericLayouts are tried in order for strings that are neither canonical
// nor strict ISO. Last-ditch parsing for hand-edited or legacy cells.
var genericLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// Standardize collapses a fetched field value to the canonical
// "YYYY-MM-DD HH:mm:ss" comparison form, or "" when the value holds no
// usable timestamp. Both sides of every comparison pass through here (or
// StandardizeString for cells already read back from the sheet), so two
// representations of the same instant always compare equal.
func Standardize(v airtable.Value, recordID, source string, loc *time.Location) string {
	switch v.Kind {
	case airtable.KindNull:
		return ""
	case airtable.KindString:
		return StandardizeString(v.Str, recordID, source, loc)
	case airtable.KindNumber:
		// Epoch milliseconds, matching how the upstream API serializes
		// time-typed formula results.
		t := time.UnixMilli(int64(v.Num))
		if t.Year() < 1971 || t.Year() > 9999 {
			log.Warn().
				Str("record", recordID).
				Str("source", source).
				Float64("value", v.Num).
				Msg("Numeric timestamp out of plausible range, treating as empty")
			return ""
		}
		return t.In(loc).Format(airtable.CellLayout)
	default:
		log.Warn().
			Str("record", recordID).
			Str("source", source).
			Stringer("kind", v.Kind).
			Msg("Timestamp field has non-temporal shape, treating as empty")
		return ""
	}
}

// StandardizeString is Standardize for values that are already plain
// strings, such as cells read back from the sheet.
func StandardizeString(s, recordID, source string, loc *time.Location) string {
	if s == "" {
		return ""
	}
	if cellForm.MatchString(s) {
		return s
	}
	if isoMillisUTC.MatchString(s) {
		t, err := time.Parse(isoMillisLayout, s)
		if err != nil {
			log.Warn().
				Str("record", recordID).
				Str("source", source).
				Str("value", s).
				Err(err).
				Msg("ISO timestamp failed to parse, treating as empty")
			return ""
		}
		return t.In(loc).Format(airtable.CellLayout)
	}
	for _, layout := range genericLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc).Format(airtable.CellLayout)
		}
	}
	log.Debug().
		Str("record", recordID).
		Str("source", source).
		Str("value", s).
		Msg("Unparseable timestamp, treating as empty")
	return ""
}
