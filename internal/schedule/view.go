// Package schedule computes the date-windowed lecture views and owns the mark action.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
	"github.com/bryan-buckman/syllabus/internal/model"
)

// Today returns the civil date of now in loc as midnight UTC, the same
// representation LectureRow.Date uses.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func checkHorizon(horizon int) error {
	if horizon <= 0 {
		return fmt.Errorf("%w: %d days", apperrors.ErrInvalidHorizon, horizon)
	}
	return nil
}

// Upcoming returns rows dated in [today, today+horizon), oldest first.
func Upcoming(rows []model.LectureRow, today time.Time, horizon int) ([]model.LectureRow, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	end := today.AddDate(0, 0, horizon)
	out := make([]model.LectureRow, 0)
	for _, r := range rows {
		if !r.Date.Before(today) && r.Date.Before(end) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// Past returns rows dated strictly between today-horizon and today, annotated
// with their learned flag, narrowed by filter and sorted newest first by
// date then weekday.
func Past(rows []model.LectureRow, today time.Time, horizon int, learned model.LearnedState, filter model.Filter) ([]model.AnnotatedRow, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	start := today.AddDate(0, 0, -horizon)
	out := make([]model.AnnotatedRow, 0)
	for _, r := range rows {
		if !r.Date.After(start) || !r.Date.Before(today) {
			continue
		}
		a := model.AnnotatedRow{LectureRow: r, Learned: learned.Get(r.Title)}
		if filter.Keep(a.Learned) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Weekday > out[j].Weekday
	})
	return out, nil
}

// Style mutes rows already learned.
func Style(row model.AnnotatedRow) model.Style {
	if row.Learned {
		return model.StyleMuted
	}
	return model.StyleEmphasized
}

// Titles lists each title once, in display order.
func Titles(rows []model.AnnotatedRow) []string {
	seen := make(map[string]struct{}, len(rows))
	titles := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.Title]; ok {
			continue
		}
		seen[r.Title] = struct{}{}
		titles = append(titles, r.Title)
	}
	return titles
}
