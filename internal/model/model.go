// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
)

// Column headers of the schedule sheet.
const (
	ColTimestamp = "THỜI_GIAN"
	ColDate      = "NGÀY"
	ColWeekday   = "THỨ"
	ColTitle     = "CÔNG_VIỆC"
	ColDeadline  = "THỜI_HẠN"
	ColCompleted = "HOÀN_THÀNH"
	ColLink      = "LINK"
	ColOwner     = "ĐẢM_NHẬN"
	ColMonth     = "THÁNG"
	ColWeek      = "TUẦN"
)

// LectureRow is one scheduled lecture.
type LectureRow struct {
	Timestamp time.Time `json:"timestamp"`
	Date      time.Time `json:"date"` // midnight UTC of the civil date of Timestamp
	Weekday   string    `json:"weekday"`
	Title     string    `json:"title"` // join key into LearnedState, not unique
	Link      string    `json:"link,omitempty"`
	Owner     string    `json:"owner"`

	// Source-only columns, never displayed.
	Deadline  string `json:"-"`
	Completed string `json:"-"`
}

// AnnotatedRow is a past lecture joined with its learned flag.
type AnnotatedRow struct {
	LectureRow
	Learned bool `json:"learned"`
}

// LearnedState maps lecture titles to the learned flag. Absent keys are not learned.
type LearnedState map[string]bool

// Get reports whether title is marked learned.
func (s LearnedState) Get(title string) bool {
	return s[title]
}

// Set updates the flag in memory. Callers persist through a store.
func (s LearnedState) Set(title string, learned bool) {
	s[title] = learned
}

// Clone returns an independent copy.
func (s LearnedState) Clone() LearnedState {
	out := make(LearnedState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Filter narrows the past-lectures view by learned flag.
type Filter string

const (
	FilterAll           Filter = "all"
	FilterLearnedOnly   Filter = "learned"
	FilterUnlearnedOnly Filter = "unlearned"
)

// ParseFilter accepts all, learned or unlearned. Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterLearnedOnly, FilterUnlearnedOnly:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown filter %q", apperrors.ErrInvalidInput, s)
	}
}

// Keep reports whether a row with the given flag passes the filter.
func (f Filter) Keep(learned bool) bool {
	switch f {
	case FilterLearnedOnly:
		return learned
	case FilterUnlearnedOnly:
		return !learned
	default:
		return true
	}
}

// Style is the display emphasis of a row.
type Style string

const (
	StyleEmphasized Style = "emphasized"
	StyleMuted      Style = "muted"
)

// Session is the per-user view context: the gate flag and the current control values.
type Session struct {
	Authenticated bool
	NextDays      int
	PreviousDays  int
	Filter        Filter
	LastSeen      time.Time
}

// DefaultDays is the initial window of both views.
const DefaultDays = 14

// NewSession returns an unauthenticated session with default control values.
func NewSession(days int) *Session {
	if days <= 0 {
		days = DefaultDays
	}
	return &Session{
		NextDays:     days,
		PreviousDays: days,
		Filter:       FilterAll,
	}
}
