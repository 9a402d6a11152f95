package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshRow(id, ts string) Row {
	return Row{ID: id, Cells: []string{id, "x", ts}, Timestamp: ts}
}

func TestDiffBothEmpty(t *testing.T) {
	plan := Diff(nil, nil)
	assert.True(t, plan.Empty())
	assert.Zero(t, plan.Skipped)
}

func TestDiffCreatesUpdatesDeletesSkips(t *testing.T) {
	fresh := []Row{
		freshRow("recA", "2024-01-15 09:30:00"), // unchanged
		freshRow("recB", "2024-02-01 12:00:00"), // changed
		freshRow("recC", "2024-03-01 08:00:00"), // new
	}
	existing := []Existing{
		{ID: "recA", Position: 2, Timestamp: "2024-01-15 09:30:00"},
		{ID: "recB", Position: 3, Timestamp: "2024-01-20 12:00:00"},
		{ID: "recGone", Position: 4, Timestamp: "2023-12-01 00:00:00"},
	}

	plan := Diff(fresh, existing)

	require.Len(t, plan.Creates, 1)
	assert.Equal(t, "recC", plan.Creates[0].ID)

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, 3, plan.Updates[0].Position)
	assert.Equal(t, "recB", plan.Updates[0].Row.ID)

	assert.Equal(t, []int{4}, plan.Deletes)
	assert.Equal(t, 1, plan.Skipped)
}

// Re-running against an unchanged source must be a no-op.
func TestDiffIdempotent(t *testing.T) {
	fresh := []Row{
		freshRow("recA", "2024-01-15 09:30:00"),
		freshRow("recB", "2024-01-20 12:00:00"),
	}
	existing := []Existing{
		{ID: "recA", Position: 2, Timestamp: "2024-01-15 09:30:00"},
		{ID: "recB", Position: 3, Timestamp: "2024-01-20 12:00:00"},
	}

	plan := Diff(fresh, existing)
	assert.True(t, plan.Empty())
	assert.Equal(t, 2, plan.Skipped)
}

func TestDiffDeletesDescending(t *testing.T) {
	existing := []Existing{
		{ID: "a", Position: 5, Timestamp: ""},
		{ID: "b", Position: 2, Timestamp: ""},
		{ID: "c", Position: 9, Timestamp: ""},
	}

	plan := Diff(nil, existing)
	assert.Equal(t, []int{9, 5, 2}, plan.Deletes)
}

func TestDiffSkipsRowsWithoutID(t *testing.T) {
	fresh := []Row{
		freshRow("", "2024-01-15 09:30:00"),
		freshRow("recA", "2024-01-15 09:30:00"),
	}
	existing := []Existing{
		{ID: "", Position: 2, Timestamp: "whatever"},
	}

	plan := Diff(fresh, existing)
	require.Len(t, plan.Creates, 1)
	assert.Equal(t, "recA", plan.Creates[0].ID)
	assert.Empty(t, plan.Deletes)
	assert.Empty(t, plan.Updates)
}

// Both sides collapsing to "" counts as equal, so an unparseable pair
// does not churn the row every run.
func TestDiffUnparseableTimestampsCompareEqual(t *testing.T) {
	fresh := []Row{freshRow("recA", "")}
	existing := []Existing{{ID: "recA", Position: 2, Timestamp: ""}}

	plan := Diff(fresh, existing)
	assert.True(t, plan.Empty())
	assert.Equal(t, 1, plan.Skipped)
}
