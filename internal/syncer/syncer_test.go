package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airsync/internal/airtable"
)

type fakeFetcher struct {
	records []airtable.Record
	err     error
}

func (f *fakeFetcher) FetchAll(ctx context.Context, baseID, tableID, view string, fields []string) ([]airtable.Record, error) {
	return f.records, f.err
}

type fakeTab struct {
	data [][]interface{}

	cleared  bool
	updates  map[int][][]interface{}
	appended [][]interface{}
	deleted  []int
}

func newFakeTab(data [][]interface{}) *fakeTab {
	return &fakeTab{data: data, updates: make(map[int][][]interface{})}
}

func (f *fakeTab) Read(ctx context.Context) ([][]interface{}, error) { return f.data, nil }
func (f *fakeTab) Update(ctx context.Context, startRow int, values [][]interface{}) error {
	f.updates[startRow] = values
	return nil
}
func (f *fakeTab) Append(ctx context.Context, rows [][]interface{}) error {
	f.appended = append(f.appended, rows...)
	return nil
}
func (f *fakeTab) Clear(ctx context.Context) error { f.cleared = true; return nil }
func (f *fakeTab) Resize(ctx context.Context, rows, cols int) error {
	return nil
}
func (f *fakeTab) DeleteRow(ctx context.Context, position int) error {
	f.deleted = append(f.deleted, position)
	return nil
}

func record(id, name, iso string) airtable.Record {
	return airtable.Record{
		ID: id,
		Fields: map[string]airtable.Value{
			"Name":     airtable.DecodeValue(name),
			"Modified": airtable.DecodeValue(iso),
		},
	}
}

func newTestSyncer(fetcher *fakeFetcher, tab *fakeTab) *Syncer {
	return New(fetcher, tab, "appBase", "tblTable", "Grid view",
		[]string{"Name", "Modified"}, "Modified", time.UTC)
}

func TestRunFullWriteOnEmptySheet(t *testing.T) {
	fetcher := &fakeFetcher{records: []airtable.Record{
		record("rec1", "one", "2024-01-15T09:30:00.000Z"),
		record("rec2", "two", "2024-01-16T09:30:00.000Z"),
	}}
	tab := newFakeTab(nil)

	result := newTestSyncer(fetcher, tab).Run(context.Background())

	require.True(t, result.Success())
	assert.Equal(t, 2, result.Created)
	assert.True(t, tab.cleared)

	written := tab.updates[1]
	require.Len(t, written, 3)
	assert.Equal(t, []interface{}{"Record ID", "Name", "Modified"}, written[0])
	assert.Equal(t, []interface{}{"rec1", "one", "2024-01-15 09:30:00"}, written[1])
}

func TestRunIncremental(t *testing.T) {
	fetcher := &fakeFetcher{records: []airtable.Record{
		record("rec1", "one", "2024-01-15T09:30:00.000Z"),      // unchanged
		record("rec2", "two renamed", "2024-02-01T00:00:00.000Z"), // newer timestamp
		record("rec4", "four", "2024-03-01T00:00:00.000Z"),     // new
	}}
	tab := newFakeTab([][]interface{}{
		{"Record ID", "Name", "Modified"},
		{"rec1", "one", "2024-01-15 09:30:00"},
		{"rec2", "two", "2024-01-20 09:30:00"},
		{"rec3", "three", "2024-01-01 00:00:00"}, // gone upstream
	})

	result := newTestSyncer(fetcher, tab).Run(context.Background())

	require.True(t, result.Success())
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Skipped)

	assert.False(t, tab.cleared)
	require.Len(t, tab.updates[3], 1)
	assert.Equal(t, "two renamed", tab.updates[3][0][1])
	require.Len(t, tab.appended, 1)
	assert.Equal(t, "rec4", tab.appended[0][0])
	assert.Equal(t, []int{4}, tab.deleted)
}

// Rerunning with the same source data must leave the sheet untouched.
func TestRunIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{records: []airtable.Record{
		record("rec1", "one", "2024-01-15T09:30:00.000Z"),
	}}
	tab := newFakeTab([][]interface{}{
		{"Record ID", "Name", "Modified"},
		{"rec1", "one", "2024-01-15 09:30:00"},
	})

	result := newTestSyncer(fetcher, tab).Run(context.Background())

	require.True(t, result.Success())
	assert.Zero(t, result.Created)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Deleted)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, tab.updates)
	assert.Empty(t, tab.appended)
}

func TestRunFetchFailureLeavesSheetAlone(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("airtable down")}
	tab := newFakeTab([][]interface{}{
		{"Record ID", "Name", "Modified"},
		{"rec1", "one", "2024-01-15 09:30:00"},
	})

	result := newTestSyncer(fetcher, tab).Run(context.Background())

	assert.False(t, result.Success())
	assert.False(t, tab.cleared)
	assert.Empty(t, tab.updates)
	assert.Empty(t, tab.appended)
	assert.Empty(t, tab.deleted)
}

func TestRunHeaderDriftForcesRewrite(t *testing.T) {
	fetcher := &fakeFetcher{records: []airtable.Record{
		record("rec1", "one", "2024-01-15T09:30:00.000Z"),
	}}
	tab := newFakeTab([][]interface{}{
		{"Record ID", "Title", "Modified"}, // old column name
		{"rec1", "one", "2024-01-15 09:30:00"},
	})

	result := newTestSyncer(fetcher, tab).Run(context.Background())

	require.True(t, result.Success())
	assert.True(t, tab.cleared)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Deleted)
}
