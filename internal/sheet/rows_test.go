package sheet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
)

func TestParseTimestampLayouts(t *testing.T) {
	t.Parallel()
	want := time.Date(2024, 1, 5, 20, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"05/01/2024 20:30:00",
		"5/1/2024 20:30:00",
		"2024-01-05 20:30:00",
		"2024-01-05T20:30:00Z",
		" 05/01/2024 20:30:00 ",
	} {
		got, err := ParseTimestamp(s, time.UTC)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s: got %v", s, got)
	}

	_, err := ParseTimestamp("next tuesday", time.UTC)
	require.Error(t, err)
}

func TestParseRowsTruncatesDateInLocation(t *testing.T) {
	t.Parallel()
	hcm := time.FixedZone("ICT", 7*3600)
	rows, err := ParseRows([]RawRow{
		{"THỜI_GIAN": "10/01/2024 23:30:00", "NGÀY": "09/01/2024", "THỨ": "Thứ 4", "CÔNG_VIỆC": "L1", "LINK": " https://x ", "ĐẢM_NHẬN": "Alice", "THÁNG": "1", "TUẦN": "2"},
		{"THỜI_GIAN": "", "CÔNG_VIỆC": "  "},
	}, hcm)
	require.NoError(t, err)
	require.Len(t, rows, 1, "blank rows are skipped")

	r := rows[0]
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), r.Date, "date comes from the timestamp, not the date column")
	assert.Equal(t, "Thứ 4", r.Weekday)
	assert.Equal(t, "L1", r.Title)
	assert.Equal(t, "https://x", r.Link)
	assert.Equal(t, "Alice", r.Owner)
}

func TestParseRowsRejectsBadTimestamp(t *testing.T) {
	t.Parallel()
	_, err := ParseRows([]RawRow{
		{"THỜI_GIAN": "10/01/2024 20:00:00", "CÔNG_VIỆC": "L1"},
		{"THỜI_GIAN": "soon", "CÔNG_VIỆC": "L2"},
	}, time.UTC)
	require.ErrorIs(t, err, apperrors.ErrSourceFetchFailed)
	assert.Contains(t, err.Error(), "row 3")
}
