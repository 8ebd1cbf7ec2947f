package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// GVizSource reads a sheet through the Google Visualization CSV endpoint.
// The sheet must be shared as "anyone with the link can view".
type GVizSource struct {
	client *http.Client
}

var _ Source = (*GVizSource)(nil)

// NewGVizSource uses client, or a client with timeout when client is nil.
func NewGVizSource(client *http.Client, timeout time.Duration) *GVizSource {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &GVizSource{client: client}
}

// Fetch downloads and decodes the query result.
func (s *GVizSource) Fetch(ctx context.Context, q Query) ([]RawRow, error) {
	endpoint, err := GVizURL(q)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return rowsFromRecords(records), nil
}

// GVizURL builds the CSV export URL for q. The gid of the browser URL, in
// the fragment or the query string, selects the tab.
func GVizURL(q Query) (string, error) {
	u, err := url.Parse(q.URL)
	if err != nil {
		return "", fmt.Errorf("parse sheet url: %w", err)
	}
	m := spreadsheetIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", fmt.Errorf("sheet url %q has no spreadsheet id", q.URL)
	}

	gid := u.Query().Get("gid")
	if frag, err := url.ParseQuery(u.Fragment); err == nil && frag.Get("gid") != "" {
		gid = frag.Get("gid")
	}

	sel := strings.TrimSpace(q.Select)
	if sel == "" {
		sel = DefaultSelect
	}
	params := url.Values{}
	params.Set("tqx", "out:csv")
	params.Set("headers", "1")
	params.Set("tq", sel)
	if gid != "" {
		params.Set("gid", gid)
	}

	out := url.URL{
		Scheme:   u.Scheme,
		Host:     u.Host,
		Path:     "/spreadsheets/d/" + m[1] + "/gviz/tq",
		RawQuery: params.Encode(),
	}
	return out.String(), nil
}
