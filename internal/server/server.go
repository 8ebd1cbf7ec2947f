// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
	"github.com/bryan-buckman/syllabus/internal/auth"
	"github.com/bryan-buckman/syllabus/internal/model"
	"github.com/bryan-buckman/syllabus/internal/schedule"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// SessionCookie carries the gate token.
const SessionCookie = "syllabus_session"

// Options configures the server.
type Options struct {
	MinDays      int
	MaxDays      int
	SecureCookie bool
	Logger       *slog.Logger
}

// Server is the main HTTP server.
type Server struct {
	svc       *schedule.Service
	gate      *auth.Gate
	opts      Options
	logger    *slog.Logger
	router    chi.Router
	templates *template.Template
}

// New creates a new server.
func New(svc *schedule.Service, gate *auth.Gate, opts Options) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"style":  schedule.Style,
		"civil":  civilDate,
		"filter": func(f model.Filter) string { return filterLabels[f] },
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if opts.MinDays <= 0 {
		opts.MinDays = 1
	}
	if opts.MaxDays < opts.MinDays {
		opts.MaxDays = opts.MinDays
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:       svc,
		gate:      gate,
		opts:      opts,
		logger:    logger,
		templates: tmpl,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Serve static files.
	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		// Pages.
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/next", http.StatusSeeOther)
		})
		r.Get("/next", s.handleNext)
		r.Get("/previous", s.handlePrevious)
		r.Post("/previous/mark", s.handleMark)

		// API.
		r.Route("/api", func(r chi.Router) {
			r.Get("/next", s.handleAPINext)
			r.Get("/previous", s.handleAPIPrevious)
			r.Get("/learned", s.handleAPIGetLearned)
			r.Post("/learned", s.handleAPISetLearned)
		})
	})

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Session ---

type ctxKey struct{}

type sessionRef struct {
	token string
	sess  model.Session
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err == nil {
			if sess, ok := s.gate.Session(c.Value); ok {
				ctx := context.WithValue(r.Context(), ctxKey{}, sessionRef{token: c.Value, sess: sess})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, apperrors.ErrUnauthenticated)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

func sessionFrom(r *http.Request) sessionRef {
	ref, _ := r.Context().Value(ctxKey{}).(sessionRef)
	return ref
}

// updateSession applies fn to the caller's stored session and returns the
// resulting copy.
func (s *Server) updateSession(r *http.Request, fn func(*model.Session)) (model.Session, error) {
	ref := sessionFrom(r)
	sess, ok := s.gate.Update(ref.token, fn)
	if !ok {
		return model.Session{}, apperrors.ErrUnauthenticated
	}
	return sess, nil
}

// viewControls reads days and filter from the query string. Absent values
// keep the session's current ones.
func (s *Server) viewControls(r *http.Request, previous bool) (func(*model.Session), error) {
	q := r.URL.Query()
	days := 0
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: days=%q", apperrors.ErrInvalidHorizon, v)
		}
		if n < s.opts.MinDays || n > s.opts.MaxDays {
			return nil, fmt.Errorf("%w: %d days is outside %d..%d", apperrors.ErrInvalidHorizon, n, s.opts.MinDays, s.opts.MaxDays)
		}
		days = n
	}
	var filter model.Filter
	if v := q.Get("filter"); v != "" && previous {
		f, err := model.ParseFilter(v)
		if err != nil {
			return nil, err
		}
		filter = f
	}
	return func(sess *model.Session) {
		if days > 0 {
			if previous {
				sess.PreviousDays = days
			} else {
				sess.NextDays = days
			}
		}
		if filter != "" {
			sess.Filter = filter
		}
	}, nil
}

// --- Page Handlers ---

type pageData struct {
	Tab      string
	Today    time.Time
	Days     int
	MinDays  int
	MaxDays  int
	Filter   model.Filter
	Filters  []model.Filter
	Upcoming []model.LectureRow
	Past     []model.AnnotatedRow
	Titles   []string
	Selected string
	Error    string
}

var filterLabels = map[model.Filter]string{
	model.FilterAll:           "All",
	model.FilterLearnedOnly:   "Learned only",
	model.FilterUnlearnedOnly: "Hide learned lectures",
}

func (s *Server) basePage(tab string, sess model.Session) pageData {
	days := sess.NextDays
	if tab == "previous" {
		days = sess.PreviousDays
	}
	return pageData{
		Tab:     tab,
		Today:   s.svc.Today(),
		Days:    days,
		MinDays: s.opts.MinDays,
		MaxDays: s.opts.MaxDays,
		Filter:  sess.Filter,
		Filters: []model.Filter{model.FilterAll, model.FilterLearnedOnly, model.FilterUnlearnedOnly},
	}
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r).sess
	apply, err := s.viewControls(r, false)
	if err == nil {
		sess, err = s.updateSession(r, apply)
	}
	data := s.basePage("next", sess)
	if err == nil {
		data.Upcoming, err = s.svc.Next(r.Context(), &sess)
	}
	s.renderPage(w, data, err)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r).sess
	apply, err := s.viewControls(r, true)
	if err == nil {
		sess, err = s.updateSession(r, apply)
	}
	data := s.basePage("previous", sess)
	if err == nil {
		data.Past, err = s.svc.Previous(r.Context(), &sess)
		data.Titles = schedule.Titles(data.Past)
		data.Selected = r.URL.Query().Get("selected")
	}
	s.renderPage(w, data, err)
}

func (s *Server) handleMark(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r).sess
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, s.basePage("previous", sess), fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	title := r.PostForm.Get("title")
	var learned bool
	switch r.PostForm.Get("action") {
	case "learned":
		learned = true
	case "not-learned":
		learned = false
	default:
		s.renderPage(w, s.basePage("previous", sess), fmt.Errorf("%w: unknown action %q", apperrors.ErrInvalidInput, r.PostForm.Get("action")))
		return
	}
	if err := s.svc.Mark(r.Context(), &sess, title, learned); err != nil {
		s.renderPage(w, s.basePage("previous", sess), err)
		return
	}
	http.Redirect(w, r, "/previous?selected="+url.QueryEscape(title), http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login.html", map[string]interface{}{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	token, _, err := s.gate.Login(r.PostForm.Get("password"))
	if err != nil {
		s.logger.Warn("login rejected", "remote", r.RemoteAddr)
		s.render(w, http.StatusUnauthorized, "login.html", map[string]interface{}{
			"Error": "Password incorrect",
		})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/next", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.gate.Logout(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// --- API Handlers ---

type styledRow struct {
	model.AnnotatedRow
	Style model.Style `json:"style"`
}

func (s *Server) handleAPINext(w http.ResponseWriter, r *http.Request) {
	apply, err := s.viewControls(r, false)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.updateSession(r, apply)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.svc.Next(r.Context(), &sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"today":    civilDate(s.svc.Today()),
		"days":     sess.NextDays,
		"lectures": rows,
	})
}

func (s *Server) handleAPIPrevious(w http.ResponseWriter, r *http.Request) {
	apply, err := s.viewControls(r, true)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.updateSession(r, apply)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.svc.Previous(r.Context(), &sess)
	if err != nil {
		writeError(w, err)
		return
	}
	styled := make([]styledRow, 0, len(rows))
	for _, row := range rows {
		styled = append(styled, styledRow{AnnotatedRow: row, Style: schedule.Style(row)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"today":    civilDate(s.svc.Today()),
		"days":     sess.PreviousDays,
		"filter":   sess.Filter,
		"lectures": styled,
	})
}

func (s *Server) handleAPIGetLearned(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r).sess
	state, err := s.svc.Learned(r.Context(), &sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAPISetLearned(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Learned *bool  `json:"learned"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	if req.Learned == nil {
		writeError(w, fmt.Errorf("%w: learned is required", apperrors.ErrInvalidInput))
		return
	}
	sess := sessionFrom(r).sess
	if err := s.svc.Mark(r.Context(), &sess, req.Title, *req.Learned); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "title": req.Title, "learned": *req.Learned})
}

// --- Helpers ---

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidHorizon), errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthenticated), errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperrors.ErrSourceFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) renderPage(w http.ResponseWriter, data pageData, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		data.Error = err.Error()
		data.Upcoming, data.Past, data.Titles = nil, nil, nil
		s.logger.Warn("page failed", "tab", data.Tab, "status", status, "error", err)
	}
	s.render(w, status, "layout.html", data)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template error", "template", name, "error", err)
		http.Error(w, "Render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func civilDate(t time.Time) string {
	return t.Format("02/01/2006")
}
