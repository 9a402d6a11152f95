package sheets

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"airsync/internal/reconcile"
)

// Store is the mutable sheet surface the materializer writes through.
// *Tab implements it against the live API; tests substitute an in-memory
// fake.
type Store interface {
	Read(ctx context.Context) ([][]interface{}, error)
	Update(ctx context.Context, startRow int, values [][]interface{}) error
	Append(ctx context.Context, rows [][]interface{}) error
	Clear(ctx context.Context) error
	Resize(ctx context.Context, rows, cols int) error
	DeleteRow(ctx context.Context, position int) error
}

// Result summarizes one materialization pass. Err aggregates any batch
// failures; counts reflect only the batches that actually succeeded.
type Result struct {
	Created int
	Updated int
	Deleted int
	Skipped int
	Actions []string
	Err     error
}

func (r Result) Success() bool {
	return r.Err == nil
}

// Materialize applies a reconciliation plan to the store. An empty store
// or a header mismatch forces a full rewrite; otherwise the plan is
// applied incrementally. Batches that fail are recorded in Result.Err,
// but batches that already succeeded are not undone.
func Materialize(ctx context.Context, store Store, header []string, fresh []reconcile.Row, existingHeader []string, priorRows int, plan reconcile.Plan) Result {
	if len(existingHeader) == 0 {
		log.Info().Int("rows", len(fresh)).Msg("Sheet is empty, writing all rows")
		return fullWrite(ctx, store, header, fresh, 0)
	}
	if !slices.Equal(existingHeader, header) {
		// Schema drift gets the blunt treatment: rewrite everything
		// rather than attempt per-column migration.
		log.Warn().
			Strs("stored", existingHeader).
			Strs("fresh", header).
			Msg("Header changed, rewriting sheet")
		return fullWrite(ctx, store, header, fresh, priorRows)
	}
	return incremental(ctx, store, plan)
}

func fullWrite(ctx context.Context, store Store, header []string, fresh []reconcile.Row, priorRows int) Result {
	result := Result{Deleted: priorRows}

	if err := store.Clear(ctx); err != nil {
		result.Err = fmt.Errorf("clearing sheet: %w", err)
		return result
	}
	if err := store.Resize(ctx, len(fresh)+1, len(header)); err != nil {
		result.Err = fmt.Errorf("resizing sheet: %w", err)
		return result
	}

	values := make([][]interface{}, 0, len(fresh)+1)
	values = append(values, toCells(header))
	for _, row := range fresh {
		values = append(values, toCells(row.Cells))
	}
	if err := store.Update(ctx, 1, values); err != nil {
		result.Err = fmt.Errorf("writing rows: %w", err)
		return result
	}

	result.Created = len(fresh)
	result.Actions = append(result.Actions, fmt.Sprintf("full write: %d rows", len(fresh)))
	log.Info().Int("created", result.Created).Int("deleted", result.Deleted).Msg("Full write complete")
	return result
}

func incremental(ctx context.Context, store Store, plan reconcile.Plan) Result {
	result := Result{Skipped: plan.Skipped}
	var errs []error

	for _, u := range plan.Updates {
		if err := store.Update(ctx, u.Position, [][]interface{}{toCells(u.Row.Cells)}); err != nil {
			errs = append(errs, fmt.Errorf("updating row %d: %w", u.Position, err))
			log.Error().Err(err).Int("row", u.Position).Str("record", u.Row.ID).Msg("Row update failed")
			break
		}
		result.Updated++
		result.Actions = append(result.Actions, fmt.Sprintf("updated row %d (%s)", u.Position, u.Row.ID))
	}

	if len(plan.Creates) > 0 {
		rows := make([][]interface{}, 0, len(plan.Creates))
		for _, row := range plan.Creates {
			rows = append(rows, toCells(row.Cells))
		}
		if err := store.Append(ctx, rows); err != nil {
			errs = append(errs, fmt.Errorf("appending %d rows: %w", len(rows), err))
			log.Error().Err(err).Int("rows", len(rows)).Msg("Row append failed")
		} else {
			result.Created = len(plan.Creates)
			result.Actions = append(result.Actions, fmt.Sprintf("appended %d rows", len(rows)))
		}
	}

	// Positions arrive descending, so each removal leaves the remaining
	// targets where they were.
	for _, position := range plan.Deletes {
		if err := store.DeleteRow(ctx, position); err != nil {
			errs = append(errs, fmt.Errorf("deleting row %d: %w", position, err))
			log.Error().Err(err).Int("row", position).Msg("Row delete failed")
			break
		}
		result.Deleted++
		result.Actions = append(result.Actions, fmt.Sprintf("deleted row %d", position))
	}

	result.Err = errors.Join(errs...)
	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("skipped", result.Skipped).
		Bool("success", result.Success()).
		Msg("Incremental sync complete")
	return result
}

func toCells(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
