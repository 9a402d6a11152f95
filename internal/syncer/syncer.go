// Package syncer runs one end-to-end sync: fetch every source record,
// render it to sheet cells, diff against what the sheet already holds and
// apply the resulting plan.
package syncer

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"airsync/internal/airtable"
	"airsync/internal/reconcile"
	"airsync/internal/sheets"
)

// Fetcher pulls the full record set from the source of truth.
// *airtable.Client satisfies it.
type Fetcher interface {
	FetchAll(ctx context.Context, baseID, tableID, view string, fields []string) ([]airtable.Record, error)
}

type Syncer struct {
	fetcher        Fetcher
	tab            sheets.Store
	baseID         string
	tableID        string
	view           string
	fields         []string
	timestampField string
	loc            *time.Location
}

func New(fetcher Fetcher, tab sheets.Store, baseID, tableID, view string, fields []string, timestampField string, loc *time.Location) *Syncer {
	return &Syncer{
		fetcher:        fetcher,
		tab:            tab,
		baseID:         baseID,
		tableID:        tableID,
		view:           view,
		fields:         fields,
		timestampField: timestampField,
		loc:            loc,
	}
}

// Header returns the sheet header: the record id column followed by the
// configured fields in order.
func (s *Syncer) Header() []string {
	header := make([]string, 0, len(s.fields)+1)
	header = append(header, "Record ID")
	return append(header, s.fields...)
}

func (s *Syncer) timestampCol() int {
	for i, f := range s.fields {
		if f == s.timestampField {
			return i + 1 // offset for the id column
		}
	}
	return -1
}

// Run performs one sync pass and reports what changed.
func (s *Syncer) Run(ctx context.Context) sheets.Result {
	started := time.Now()
	log.Info().Str("table", s.tableID).Str("view", s.view).Msg("Starting sync run")

	records, err := s.fetcher.FetchAll(ctx, s.baseID, s.tableID, s.view, s.fields)
	if err != nil {
		log.Error().Err(err).Msg("Record fetch failed, sheet untouched")
		return sheets.Result{Err: err}
	}

	data, err := s.tab.Read(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Sheet read failed")
		return sheets.Result{Err: err}
	}
	existingHeader, existing := sheets.ParseRows(data, s.timestampCol(), s.loc)
	priorRows := 0
	if len(data) > 1 {
		priorRows = len(data) - 1
	}

	fresh := s.render(records)
	plan := reconcile.Diff(fresh, existing)
	result := sheets.Materialize(ctx, s.tab, s.Header(), fresh, existingHeader, priorRows, plan)

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("skipped", result.Skipped).
		Bool("success", result.Success()).
		Dur("elapsed", time.Since(started)).
		Msg("Sync run finished")
	return result
}

// render turns fetched records into sheet rows in header order, with the
// change timestamp standardized for comparison.
func (s *Syncer) render(records []airtable.Record) []reconcile.Row {
	tsField := s.timestampField
	rows := make([]reconcile.Row, 0, len(records))
	for _, rec := range records {
		cells := make([]string, 0, len(s.fields)+1)
		cells = append(cells, rec.ID)
		for _, f := range s.fields {
			cells = append(cells, rec.Fields[f].Display(s.loc))
		}
		rows = append(rows, reconcile.Row{
			ID:        rec.ID,
			Cells:     cells,
			Timestamp: reconcile.Standardize(rec.Fields[tsField], rec.ID, "airtable", s.loc),
		})
	}
	return rows
}
