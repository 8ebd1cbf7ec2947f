package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
	"github.com/bryan-buckman/syllabus/internal/clock"
	"github.com/bryan-buckman/syllabus/internal/database"
	"github.com/bryan-buckman/syllabus/internal/model"
	"github.com/bryan-buckman/syllabus/internal/sheet"
)

var marksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "syllabus_learned_marks_total",
	Help: "Mark actions that were persisted, by resulting flag.",
}, []string{"learned"})

// Service serves the lecture views for one schedule sheet and persists the
// learned flags.
type Service struct {
	source sheet.Source
	query  sheet.Query
	store  database.Store
	clock  clock.Clock
	loc    *time.Location
	logger *slog.Logger
}

// Options configures a Service. Source, Store and Query.URL are required.
type Options struct {
	Source   sheet.Source
	Query    sheet.Query
	Store    database.Store
	Clock    clock.Clock
	Location *time.Location
	Logger   *slog.Logger
}

// NewService creates a service; nil clock, location and logger get defaults.
func NewService(opts Options) *Service {
	s := &Service{
		source: opts.Source,
		query:  opts.Query,
		store:  opts.Store,
		clock:  opts.Clock,
		loc:    opts.Location,
		logger: opts.Logger,
	}
	if s.clock == nil {
		s.clock = clock.SystemClock{}
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Today is the reference date of the views.
func (s *Service) Today() time.Time {
	return Today(s.clock.Now(), s.loc)
}

// Lectures fetches and parses the whole schedule.
func (s *Service) Lectures(ctx context.Context) ([]model.LectureRow, error) {
	raw, err := s.source.Fetch(ctx, s.query)
	if err != nil {
		return nil, err
	}
	return sheet.ParseRows(raw, s.loc)
}

// Next returns the lectures of the coming sess.NextDays days.
func (s *Service) Next(ctx context.Context, sess *model.Session) ([]model.LectureRow, error) {
	if err := authorize(sess); err != nil {
		return nil, err
	}
	if err := checkHorizon(sess.NextDays); err != nil {
		return nil, err
	}
	rows, err := s.Lectures(ctx)
	if err != nil {
		return nil, err
	}
	return Upcoming(rows, s.Today(), sess.NextDays)
}

// Previous returns the lectures of the last sess.PreviousDays days with
// their learned flag, narrowed by sess.Filter.
func (s *Service) Previous(ctx context.Context, sess *model.Session) ([]model.AnnotatedRow, error) {
	if err := authorize(sess); err != nil {
		return nil, err
	}
	if err := checkHorizon(sess.PreviousDays); err != nil {
		return nil, err
	}
	rows, err := s.Lectures(ctx)
	if err != nil {
		return nil, err
	}
	learned, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Past(rows, s.Today(), sess.PreviousDays, learned, sess.Filter)
}

// Learned returns the persisted mapping.
func (s *Service) Learned(ctx context.Context, sess *model.Session) (model.LearnedState, error) {
	if err := authorize(sess); err != nil {
		return nil, err
	}
	return s.store.Load(ctx)
}

// Mark sets the learned flag of title and rewrites the whole mapping.
func (s *Service) Mark(ctx context.Context, sess *model.Session, title string, learned bool) error {
	if err := authorize(sess); err != nil {
		return err
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", apperrors.ErrInvalidInput)
	}
	state, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	state.Set(title, learned)
	if err := s.store.Save(ctx, state); err != nil {
		// The caller's view now disagrees with the file until the next good save.
		s.logger.Error("save learned state", "title", title, "learned", learned, "backend", s.store.Backend(), "error", err)
		return err
	}
	marksTotal.WithLabelValues(strconv.FormatBool(learned)).Inc()
	s.logger.Info("marked lecture", "title", title, "learned", learned)
	return nil
}

func authorize(sess *model.Session) error {
	if sess == nil || !sess.Authenticated {
		return apperrors.ErrUnauthenticated
	}
	return nil
}
