package sheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
	"github.com/bryan-buckman/syllabus/internal/model"
)

// timestampLayouts are tried in order. The first is the sheet's own format.
var timestampLayouts = []string{
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseTimestamp reads a sheet timestamp in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseRows converts raw sheet rows into lecture rows. Blank rows are
// skipped; a row with an unreadable timestamp fails the whole table. The
// month and week columns are ignored.
func ParseRows(raw []RawRow, loc *time.Location) ([]model.LectureRow, error) {
	if loc == nil {
		loc = time.Local
	}
	rows := make([]model.LectureRow, 0, len(raw))
	for i, r := range raw {
		if blank(r) {
			continue
		}
		ts, err := ParseTimestamp(r[model.ColTimestamp], loc)
		if err != nil {
			// +2: header line plus 1-based numbering, as shown in the sheet.
			return nil, fmt.Errorf("%w: row %d: %w", apperrors.ErrSourceFetchFailed, i+2, err)
		}
		y, m, d := ts.Date()
		rows = append(rows, model.LectureRow{
			Timestamp: ts,
			Date:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
			Weekday:   strings.TrimSpace(r[model.ColWeekday]),
			Title:     r[model.ColTitle],
			Link:      strings.TrimSpace(r[model.ColLink]),
			Owner:     strings.TrimSpace(r[model.ColOwner]),
			Deadline:  r[model.ColDeadline],
			Completed: r[model.ColCompleted],
		})
	}
	return rows, nil
}

func blank(r RawRow) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
