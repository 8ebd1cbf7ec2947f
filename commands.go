package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
	"github.com/bryan-buckman/syllabus/internal/auth"
	"github.com/bryan-buckman/syllabus/internal/config"
	"github.com/bryan-buckman/syllabus/internal/database"
	"github.com/bryan-buckman/syllabus/internal/model"
	"github.com/bryan-buckman/syllabus/internal/schedule"
	"github.com/bryan-buckman/syllabus/internal/server"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A")).Faint(true)
	plainStyle  = lipgloss.NewStyle()
)

func newServeCmd(configPath *string) *cobra.Command {
	var secureCookie bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, cmd, *configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Password == "" {
				a.logger.Warn("no password configured, every login will be rejected")
			}
			gate := auth.NewGate(a.cfg.Password, a.cfg.Views.DefaultDays, a.cfg.Session.IdleTimeout, nil)
			srv, err := server.New(a.svc, gate, server.Options{
				MinDays:      a.cfg.Views.MinDays,
				MaxDays:      a.cfg.Views.MaxDays,
				SecureCookie: secureCookie,
				Logger:       a.logger,
			})
			if err != nil {
				return err
			}
			a.logger.Info("serving schedule",
				"sheet", a.cfg.Sheet.URL,
				"learned_backend", a.store.Backend(),
				"timezone", a.cfg.Timezone,
			)
			return srv.Start(ctx, a.cfg.Listen)
		},
	}
	cmd.Flags().BoolVar(&secureCookie, "secure-cookie", false, "mark the session cookie Secure (behind TLS)")
	return cmd
}

func newNextCmd(configPath *string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "next",
		Short: "List the lectures of the coming days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, cmd, *configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := localSession(a.cfg, days, "")
			if err != nil {
				return err
			}
			rows, err := a.svc.Next(ctx, sess)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Today %s, next %d days\n", civil(a.svc), sess.NextDays)
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(out, "no lectures")
				return nil
			}
			table := [][]string{{"DATE", "WEEKDAY", "LECTURE", "OWNER", "LINK"}}
			for _, r := range rows {
				table = append(table, []string{r.Date.Format("02/01/2006"), r.Weekday, r.Title, r.Owner, r.Link})
			}
			printTable(out, table, nil)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "days forward (default from config)")
	return cmd
}

func newPreviousCmd(configPath *string) *cobra.Command {
	var (
		days   int
		filter string
	)

	cmd := &cobra.Command{
		Use:   "previous",
		Short: "List the lectures of the past days with their learned flag",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, cmd, *configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := localSession(a.cfg, days, filter)
			if err != nil {
				return err
			}
			rows, err := a.svc.Previous(ctx, sess)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Today %s, last %d days, filter %s\n", civil(a.svc), sess.PreviousDays, sess.Filter)
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(out, "no lectures")
				return nil
			}
			table := [][]string{{"DATE", "WEEKDAY", "LECTURE", "LEARNED", "OWNER", "LINK"}}
			styles := make([]model.Style, 0, len(rows))
			for _, r := range rows {
				mark := "no"
				if r.Learned {
					mark = "yes"
				}
				table = append(table, []string{r.Date.Format("02/01/2006"), r.Weekday, r.Title, mark, r.Owner, r.Link})
				styles = append(styles, schedule.Style(r))
			}
			printTable(out, table, styles)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "days backward (default from config)")
	cmd.Flags().StringVar(&filter, "filter", "all", "all|learned|unlearned")
	return cmd
}

func newMarkCmd(configPath *string) *cobra.Command {
	var notLearned bool

	cmd := &cobra.Command{
		Use:   "mark <title>",
		Short: "Mark a lecture as learned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, cmd, *configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := localSession(a.cfg, 0, "")
			if err != nil {
				return err
			}
			learned := !notLearned
			if err := a.svc.Mark(ctx, sess, args[0], learned); err != nil {
				return err
			}
			state := "learned"
			if !learned {
				state = "not learned"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%q marked %s\n", args[0], state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&notLearned, "not", false, "mark as not learned instead")
	return cmd
}

func newInitCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the learned-state storage if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadStorage(*configPath, !cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			msg, err := initStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

// initStore provisions the configured backend. The SQL backends create
// their table when opened.
func initStore(ctx context.Context, cfg config.Config) (string, error) {
	if cfg.Learned.Backend == database.BackendJSON {
		created, err := database.NewJSONFile(cfg.Learned.Path).Init(ctx)
		if err != nil {
			return "", err
		}
		if !created {
			return fmt.Sprintf("%s already exists", cfg.Learned.Path), nil
		}
		return fmt.Sprintf("created %s", cfg.Learned.Path), nil
	}
	store, err := database.Open(cfg.Learned.Backend, cfg.Learned.Path, cfg.Learned.DSN)
	if err != nil {
		return "", err
	}
	defer store.Close()
	if _, err := store.Load(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s storage ready", store.Backend()), nil
}

// localSession is the authenticated context of a command-line run. days 0
// keeps the configured default.
func localSession(cfg config.Config, days int, filter string) (*model.Session, error) {
	sess := model.NewSession(cfg.Views.DefaultDays)
	sess.Authenticated = true
	if days != 0 {
		if days < cfg.Views.MinDays || days > cfg.Views.MaxDays {
			return nil, fmt.Errorf("%w: %d days is outside %d..%d", apperrors.ErrInvalidHorizon, days, cfg.Views.MinDays, cfg.Views.MaxDays)
		}
		sess.NextDays, sess.PreviousDays = days, days
	}
	f, err := model.ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	sess.Filter = f
	return sess, nil
}

func civil(svc *schedule.Service) string {
	return svc.Today().Format("02/01/2006")
}

// printTable writes rows[0] as header and the rest padded to column width.
// styles, when given, holds one entry per data row; muted rows are dimmed.
func printTable(w io.Writer, rows [][]string, styles []model.Style) {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for r, row := range rows {
		style := plainStyle
		switch {
		case r == 0:
			style = headerStyle
		case styles != nil && styles[r-1] == model.StyleMuted:
			style = mutedStyle
		}
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = style.Width(widths[i]).Render(cell)
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}
