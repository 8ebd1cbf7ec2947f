package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/bryan-buckman/syllabus/internal/config"
	"github.com/bryan-buckman/syllabus/internal/database"
	"github.com/bryan-buckman/syllabus/internal/schedule"
	"github.com/bryan-buckman/syllabus/internal/sheet"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "syllabus",
		Short:         "Lecture schedule viewer with learned-lecture tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "configuration file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newNextCmd(&configPath))
	root.AddCommand(newPreviousCmd(&configPath))
	root.AddCommand(newMarkCmd(&configPath))
	root.AddCommand(newInitCmd(&configPath))
	return root
}

// app holds the wired components shared by all commands.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  database.Store
	svc    *schedule.Service
}

func (a *app) Close() error {
	return a.store.Close()
}

// loadConfig reads the configuration. The default path may be absent, in
// which case defaults and environment apply.
func loadConfig(cmd *cobra.Command, path string) (config.Config, error) {
	return config.Load(path, !cmd.Flags().Changed("config"))
}

func newLogger(cfg config.Config, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func loadApp(ctx context.Context, cmd *cobra.Command, path string, jsonLogs bool) (*app, error) {
	cfg, err := loadConfig(cmd, path)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, jsonLogs)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	src, err := newSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := database.Open(cfg.Learned.Backend, cfg.Learned.Path, cfg.Learned.DSN)
	if err != nil {
		return nil, err
	}

	svc := schedule.NewService(schedule.Options{
		Source:   src,
		Query:    sheet.Query{URL: cfg.Sheet.URL, Select: cfg.Sheet.Select, Range: cfg.Sheet.Range},
		Store:    store,
		Location: loc,
		Logger:   logger,
	})
	return &app{cfg: cfg, logger: logger, store: store, svc: svc}, nil
}

func newSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (sheet.Source, error) {
	var src sheet.Source
	switch cfg.Sheet.Backend {
	case "sheets-api":
		api, err := sheet.NewSheetsAPISource(ctx, option.WithAPIKey(cfg.Sheet.APIKey))
		if err != nil {
			return nil, err
		}
		src = api
	default:
		src = sheet.NewGVizSource(nil, cfg.Sheet.Timeout)
	}
	logger.Debug("schedule source", "backend", cfg.Sheet.Backend, "cache_ttl", cfg.Sheet.CacheTTL)
	return sheet.NewCached(src, cfg.Sheet.CacheTTL, logger), nil
}
