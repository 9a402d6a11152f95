package sheets

import (
	"context"
	"fmt"
)

// Tab binds a Client to a single sheet of a single spreadsheet so callers
// can address it by row position alone.
type Tab struct {
	client        *Client
	spreadsheetID string
	name          string
}

func NewTab(client *Client, spreadsheetID, name string) *Tab {
	return &Tab{
		client:        client,
		spreadsheetID: spreadsheetID,
		name:          name,
	}
}

func (t *Tab) Name() string {
	return t.name
}

// Read returns the occupied data region of the tab, header row included.
func (t *Tab) Read(ctx context.Context) ([][]interface{}, error) {
	return t.client.ReadSheet(ctx, t.spreadsheetID, t.name)
}

// Update overwrites a block of cells starting at column A of the given
// 1-based row.
func (t *Tab) Update(ctx context.Context, startRow int, values [][]interface{}) error {
	range_ := fmt.Sprintf("%s!A%d", t.name, startRow)
	return t.client.UpdateRange(ctx, t.spreadsheetID, range_, values)
}

// Append adds rows below the last occupied row.
func (t *Tab) Append(ctx context.Context, rows [][]interface{}) error {
	range_ := fmt.Sprintf("%s!A1", t.name)
	return t.client.AppendRows(ctx, t.spreadsheetID, range_, rows)
}

func (t *Tab) Clear(ctx context.Context) error {
	return t.client.ClearRange(ctx, t.spreadsheetID, t.name)
}

func (t *Tab) Resize(ctx context.Context, rows, cols int) error {
	return t.client.Resize(ctx, t.spreadsheetID, t.name, rows, cols)
}

func (t *Tab) DeleteRow(ctx context.Context, position int) error {
	return t.client.DeleteRow(ctx, t.spreadsheetID, t.name, position)
}
