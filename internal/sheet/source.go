// Package sheet fetches the lecture schedule from a Google Sheet and turns
// its raw rows into lecture rows.
package sheet

import (
	"context"
	"fmt"
	"strings"
)

// DefaultSelect reads every column of the sheet.
const DefaultSelect = "SELECT *"

// Query identifies one tabular fetch.
type Query struct {
	URL    string // spreadsheet URL as copied from the browser
	Select string // Google Visualization query statement
	Range  string // A1 range for the Sheets API backend; empty means the first sheet
}

// String renders the query text, which is also the cache key.
func (q Query) String() string {
	sel := strings.TrimSpace(q.Select)
	if sel == "" {
		sel = DefaultSelect
	}
	s := fmt.Sprintf("%s FROM %q", sel, q.URL)
	if q.Range != "" {
		s += " RANGE " + q.Range
	}
	return s
}

// RawRow is one sheet row keyed by column header.
type RawRow map[string]string

// Source returns the full table for a query.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]RawRow, error)
}

// rowsFromRecords pairs every record after the first with the header record.
// Short records leave the missing cells empty.
func rowsFromRecords(records [][]string) []RawRow {
	if len(records) == 0 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	rows := make([]RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(RawRow, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}
