package sheet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGVizURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		query   Query
		wantGID string
		wantTQ  string
	}{
		{
			name:    "edit url with gid fragment",
			query:   Query{URL: "https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=42"},
			wantGID: "42",
			wantTQ:  DefaultSelect,
		},
		{
			name:   "share url without gid",
			query:  Query{URL: "https://docs.google.com/spreadsheets/d/1AbC-d_9/edit?usp=sharing", Select: "SELECT A, B"},
			wantTQ: "SELECT A, B",
		},
		{
			name:    "gid in query string",
			query:   Query{URL: "https://docs.google.com/spreadsheets/d/1AbC-d_9/edit?gid=7"},
			wantGID: "7",
			wantTQ:  DefaultSelect,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw, err := GVizURL(tt.query)
			require.NoError(t, err)
			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "docs.google.com", u.Host)
			assert.Equal(t, "/spreadsheets/d/1AbC-d_9/gviz/tq", u.Path)
			assert.Equal(t, "out:csv", u.Query().Get("tqx"))
			assert.Equal(t, "1", u.Query().Get("headers"))
			assert.Equal(t, tt.wantTQ, u.Query().Get("tq"))
			assert.Equal(t, tt.wantGID, u.Query().Get("gid"))
		})
	}
}

func TestGVizURLRejectsForeignURL(t *testing.T) {
	t.Parallel()
	_, err := GVizURL(Query{URL: "https://example.com/sheet.csv"})
	require.Error(t, err)
}

const sampleCSV = "\"THỜI_GIAN\",\"NGÀY\",\"THỨ\",\"CÔNG_VIỆC\",\"THỜI_HẠN\",\"HOÀN_THÀNH\",\"LINK\",\"ĐẢM_NHẬN\",\"THÁNG\",\"TUẦN\"\n" +
	"\"10/01/2024 20:00:00\",\"10/01/2024\",\"Thứ 4\",\"L1, part one\",\"\",\"TRUE\",\"https://example.com/l1\",\"Alice\",\"1\",\"2\"\n" +
	"\"05/01/2024 20:00:00\",\"05/01/2024\",\"Thứ 6\",\"L2\",\"\",\"FALSE\",\"\",\"Bob\",\"1\",\"1\"\n"

func TestGVizSourceFetch(t *testing.T) {
	t.Parallel()
	requests := make(chan *url.URL, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.URL
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	src := NewGVizSource(srv.Client(), 0)
	rows, err := src.Fetch(context.Background(), Query{URL: srv.URL + "/spreadsheets/d/sheet1/edit#gid=0"})
	require.NoError(t, err)

	got := <-requests
	assert.Equal(t, "/spreadsheets/d/sheet1/gviz/tq", got.Path)
	assert.Equal(t, DefaultSelect, got.Query().Get("tq"))
	require.Len(t, rows, 2)
	assert.Equal(t, "L1, part one", rows[0]["CÔNG_VIỆC"])
	assert.Equal(t, "Bob", rows[1]["ĐẢM_NHẬN"])

	parsed, err := ParseRows(rows, time.UTC)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), parsed[0].Date)
}

func TestGVizSourceFetchStatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not shared", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewGVizSource(srv.Client(), 0).Fetch(context.Background(), Query{URL: srv.URL + "/spreadsheets/d/x/edit"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
