package callback

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"airsync/internal/wpimport"
)

var resultsHeader = []interface{}{
	"Import ID", "Start Time", "End Time", "Duration (Min)",
	"Posts Created", "Posts Updated", "Posts Deleted", "Posts Skipped",
	"Callback Received", "Start Unix", "End Unix",
}

// LogTab is the slice of the sheet surface the results log needs.
// *sheets.Tab satisfies it.
type LogTab interface {
	Read(ctx context.Context) ([][]interface{}, error)
	Append(ctx context.Context, rows [][]interface{}) error
}

// ResultsLog appends one row per completed import to a log sheet,
// writing the header first if the sheet is empty.
type ResultsLog struct {
	tab LogTab
	loc *time.Location
	now func() time.Time
}

func NewResultsLog(tab LogTab, loc *time.Location) *ResultsLog {
	return &ResultsLog{
		tab: tab,
		loc: loc,
		now: time.Now,
	}
}

func (l *ResultsLog) LogCompletion(ctx context.Context, importID string, comp wpimport.Completion) error {
	data, err := l.tab.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read results log: %w", err)
	}
	if len(data) == 0 {
		if err := l.tab.Append(ctx, [][]interface{}{resultsHeader}); err != nil {
			return fmt.Errorf("failed to write results log header: %w", err)
		}
	}

	duration := "N/A"
	if comp.StartTime > 0 && comp.EndTime >= comp.StartTime {
		duration = strconv.FormatFloat(float64(comp.EndTime-comp.StartTime)/60, 'f', 2, 64)
	}

	row := []interface{}{
		importID,
		l.formatUnix(comp.StartTime),
		l.formatUnix(comp.EndTime),
		duration,
		comp.Created, comp.Updated, comp.Deleted, comp.Skipped,
		l.now().In(l.loc).Format("2006-01-02 15:04:05"),
		unixCell(comp.StartTime), unixCell(comp.EndTime),
	}
	if err := l.tab.Append(ctx, [][]interface{}{row}); err != nil {
		return fmt.Errorf("failed to append results row: %w", err)
	}

	log.Info().Str("import_id", importID).Msg("Logged import results to sheet")
	return nil
}

func (l *ResultsLog) formatUnix(ts int64) string {
	if ts <= 0 {
		return "N/A"
	}
	return time.Unix(ts, 0).In(l.loc).Format("2006-01-02 15:04:05")
}

func unixCell(ts int64) interface{} {
	if ts <= 0 {
		return ""
	}
	return ts
}
