// Package reconcile computes the minimal set of sheet mutations needed to
// bring previously materialized rows in line with a freshly fetched record
// set. Timestamp inequality is the sole change signal; rows without an
// external id are ignored on both sides.
package reconcile

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// Row is one fully rendered sheet row for a fetched record.
type Row struct {
	ID        string
	Cells     []string
	Timestamp string // standardized comparison form
}

// Existing describes a row already materialized in the sheet.
type Existing struct {
	ID        string
	Position  int // 1-based sheet row number (header is row 1)
	Timestamp string
}

// Update pairs a fresh row with the sheet position it overwrites.
type Update struct {
	Position int
	Row      Row
}

// Plan is the disjoint operation set produced by Diff. Deletes is sorted
// by position descending so sequential removal never shifts an
// unprocessed target.
type Plan struct {
	Creates []Row
	Updates []Update
	Deletes []int
	Skipped int
}

// Empty reports whether the plan contains no mutations.
func (p Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

type existingEntry struct {
	position  int
	timestamp string
}

// Diff compares fresh rows against existing rows and returns the create,
// update and delete sets. Rows with an empty id are skipped entirely and
// never appear in any set.
func Diff(fresh []Row, existing []Existing) Plan {
	existingByID := make(map[string]existingEntry, len(existing))
	for _, e := range existing {
		if e.ID == "" {
			continue
		}
		existingByID[e.ID] = existingEntry{position: e.Position, timestamp: e.Timestamp}
	}

	freshIDs := make(map[string]struct{}, len(fresh))
	var plan Plan
	for _, row := range fresh {
		if row.ID == "" {
			log.Debug().Msg("Fetched record has no id, skipping")
			continue
		}
		freshIDs[row.ID] = struct{}{}
		entry, ok := existingByID[row.ID]
		if !ok {
			plan.Creates = append(plan.Creates, row)
			continue
		}
		if row.Timestamp == entry.timestamp {
			plan.Skipped++
			continue
		}
		plan.Updates = append(plan.Updates, Update{Position: entry.position, Row: row})
	}

	for id, entry := range existingByID {
		if _, ok := freshIDs[id]; !ok {
			plan.Deletes = append(plan.Deletes, entry.position)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(plan.Deletes)))

	log.Debug().
		Int("creates", len(plan.Creates)).
		Int("updates", len(plan.Updates)).
		Int("deletes", len(plan.Deletes)).
		Int("skipped", plan.Skipped).
		Msg("Reconciliation plan computed")
	return plan
}
