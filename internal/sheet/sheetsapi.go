package sheet

import (
	"context"
	"fmt"
	"net/url"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsAPISource reads a sheet through the Google Sheets v4 API. The query
// statement is not interpreted; Range picks the cells.
type SheetsAPISource struct {
	svc *sheets.Service
}

var _ Source = (*SheetsAPISource)(nil)

// NewSheetsAPISource builds a Sheets client. opts usually carry an API key
// (option.WithAPIKey) or credentials.
func NewSheetsAPISource(ctx context.Context, opts ...option.ClientOption) (*SheetsAPISource, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsAPISource{svc: svc}, nil
}

// Fetch reads q.Range, or the first tab when it is empty. The first row is
// the header.
func (s *SheetsAPISource) Fetch(ctx context.Context, q Query) ([]RawRow, error) {
	u, err := url.Parse(q.URL)
	if err != nil {
		return nil, fmt.Errorf("parse sheet url: %w", err)
	}
	m := spreadsheetIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, fmt.Errorf("sheet url %q has no spreadsheet id", q.URL)
	}
	id := m[1]

	rng := q.Range
	if rng == "" {
		meta, err := s.svc.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get spreadsheet %s: %w", id, err)
		}
		if len(meta.Sheets) == 0 || meta.Sheets[0].Properties == nil {
			return nil, fmt.Errorf("spreadsheet %s has no sheets", id)
		}
		rng = meta.Sheets[0].Properties.Title
	}

	resp, err := s.svc.Spreadsheets.Values.Get(id, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get values %s!%s: %w", id, rng, err)
	}

	records := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		rec := make([]string, len(row))
		for i, cell := range row {
			rec[i] = fmt.Sprint(cell)
		}
		records = append(records, rec)
	}
	return rowsFromRecords(records), nil
}
