package sheet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newSheetsAPITestSource(t *testing.T, handler http.HandlerFunc) *SheetsAPISource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src, err := NewSheetsAPISource(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return src
}

func TestSheetsAPISourceFirstTab(t *testing.T) {
	t.Parallel()
	var metaCalls atomic.Int32
	src := newSheetsAPITestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v4/spreadsheets/1AbC-d_9":
			metaCalls.Add(1)
			_, _ = w.Write([]byte(`{"sheets":[{"properties":{"title":"Schedule"}},{"properties":{"title":"Archive"}}]}`))
		case "/v4/spreadsheets/1AbC-d_9/values/Schedule":
			assert.Equal(t, "FORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
			_, _ = w.Write([]byte(`{
				"range": "Schedule!A1:D3",
				"majorDimension": "ROWS",
				"values": [
					["THỜI_GIAN", "CÔNG_VIỆC", "STT", "LINK"],
					["10/01/2024 20:00:00", "Bài 1", 1, true],
					["12/01/2024 20:00:00", "Bài 2"]
				]
			}`))
		default:
			http.NotFound(w, r)
		}
	})

	rows, err := src.Fetch(context.Background(), Query{URL: "https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, RawRow{"THỜI_GIAN": "10/01/2024 20:00:00", "CÔNG_VIỆC": "Bài 1", "STT": "1", "LINK": "true"}, rows[0])
	assert.Equal(t, RawRow{"THỜI_GIAN": "12/01/2024 20:00:00", "CÔNG_VIỆC": "Bài 2", "STT": "", "LINK": ""}, rows[1])
	assert.Equal(t, int32(1), metaCalls.Load())
}

func TestSheetsAPISourceExplicitRange(t *testing.T) {
	t.Parallel()
	src := newSheetsAPITestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/spreadsheets/xyz/values/Archive" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"values":[["CÔNG_VIỆC"],["Bài 9"]]}`))
	})

	rows, err := src.Fetch(context.Background(), Query{URL: "https://docs.google.com/spreadsheets/d/xyz/edit", Range: "Archive"})
	require.NoError(t, err)
	assert.Equal(t, []RawRow{{"CÔNG_VIỆC": "Bài 9"}}, rows)
}

func TestSheetsAPISourceErrors(t *testing.T) {
	t.Parallel()
	src := newSheetsAPITestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
	})

	_, err := src.Fetch(context.Background(), Query{URL: "https://docs.google.com/spreadsheets/d/xyz/edit", Range: "A1:B2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission")

	_, err = src.Fetch(context.Background(), Query{URL: "https://example.com/not-a-sheet"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no spreadsheet id")
}
