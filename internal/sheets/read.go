package sheets

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"airsync/internal/reconcile"
)

// ParseRows splits raw sheet data into the stored header and the
// materialized rows, standardizing each row's change timestamp for
// comparison. tsCol is the 0-based column holding the timestamp; column 0
// holds the record id. Rows with an empty id are skipped.
func ParseRows(data [][]interface{}, tsCol int, loc *time.Location) (header []string, existing []reconcile.Existing) {
	if len(data) == 0 {
		return nil, nil
	}

	header = make([]string, 0, len(data[0]))
	for _, cell := range data[0] {
		header = append(header, cellString(cell))
	}

	for i, row := range data[1:] {
		position := i + 2 // 1-based, row 1 is the header
		id := ""
		if len(row) > 0 {
			id = cellString(row[0])
		}
		if id == "" {
			log.Debug().Int("row", position).Msg("Skipping row with empty record id")
			continue
		}
		ts := ""
		if tsCol >= 0 && len(row) > tsCol {
			ts = reconcile.StandardizeString(cellString(row[tsCol]), id, "sheet", loc)
		}
		existing = append(existing, reconcile.Existing{
			ID:        id,
			Position:  position,
			Timestamp: ts,
		})
	}

	log.Debug().
		Int("total_rows", len(data)).
		Int("parsed_rows", len(existing)).
		Msg("Parsed existing sheet rows")
	return header, existing
}

func cellString(cell interface{}) string {
	if cell == nil {
		return ""
	}
	if s, ok := cell.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", cell)
}
