package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"airsync/internal/airtable"
)

func TestStandardizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"canonical passthrough", "2024-01-15 09:30:00", "2024-01-15 09:30:00"},
		{"iso millis", "2024-01-15T09:30:00.000Z", "2024-01-15 09:30:00"},
		{"rfc3339 fallback", "2024-01-15T09:30:00Z", "2024-01-15 09:30:00"},
		{"date only fallback", "2024-01-15", "2024-01-15 00:00:00"},
		{"garbage collapses to empty", "soon-ish", ""},
		{"five digit year", "12345-99-99 00:00:00", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StandardizeString(tt.input, "rec1", "test", time.UTC))
		})
	}
}

func TestStandardizeValueKinds(t *testing.T) {
	assert.Equal(t, "", Standardize(airtable.Value{Kind: airtable.KindNull}, "rec1", "test", time.UTC))
	assert.Equal(t, "", Standardize(airtable.Value{Kind: airtable.KindBool, Bool: true}, "rec1", "test", time.UTC))

	strVal := airtable.DecodeValue("2024-01-15T09:30:00.000Z")
	assert.Equal(t, "2024-01-15 09:30:00", Standardize(strVal, "rec1", "test", time.UTC))

	millis := float64(time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC).UnixMilli())
	numVal := airtable.Value{Kind: airtable.KindNumber, Num: millis}
	assert.Equal(t, "2024-01-15 09:30:00", Standardize(numVal, "rec1", "test", time.UTC))

	implausible := airtable.Value{Kind: airtable.KindNumber, Num: 1}
	assert.Equal(t, "", Standardize(implausible, "rec1", "test", time.UTC))
}

// The cell a sync writes must standardize back to the same string the
// source timestamp standardized to, otherwise every later run would see a
// phantom change.
func TestStandardizeRoundTripsDisplayedCell(t *testing.T) {
	iso := "2024-03-07T22:05:41.000Z"
	fromSource := StandardizeString(iso, "rec1", "airtable", time.UTC)
	cell := airtable.DecodeValue(iso).Display(time.UTC)
	fromSheet := StandardizeString(cell, "rec1", "sheet", time.UTC)
	assert.Equal(t, fromSource, fromSheet)
}
