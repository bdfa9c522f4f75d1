package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/config"
	"github.com/nvandessel/darkforest/internal/logging"
	"github.com/nvandessel/darkforest/internal/session"
	"github.com/nvandessel/darkforest/internal/store"
	"github.com/spf13/cobra"
)

// app bundles what a command needs to drive sessions.
type app struct {
	root    string
	cfg     *config.DarkForestConfig
	catalog *catalog.Catalog
	store   store.Store
	manager *session.Manager
	events  *logging.DecisionLogger
	now     func() time.Time
}

// loadSettings reads the config file and applies the --store flag.
func loadSettings(cmd *cobra.Command) (*config.DarkForestConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if driver, _ := cmd.Flags().GetString("store"); driver != "" {
		cfg.Store.Driver = driver
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openApp opens the configured store and builds a session manager over it.
// Callers must Close the result.
func openApp(cmd *cobra.Command) (*app, error) {
	root, _ := cmd.Flags().GetString("root")

	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	st, err := store.Open(cfg.Store.Driver, root, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// Operational logs stay quiet unless debug or trace is configured.
	var logOut io.Writer = io.Discard
	if logging.ParseLevel(cfg.Logging.Level) < slog.LevelInfo {
		logOut = cmd.ErrOrStderr()
	}
	logger := logging.NewLogger(cfg.Logging.Level, logOut)
	events := logging.NewDecisionLogger(store.LocalDataPath(root), cfg.Logging.Level)

	return &app{
		root:    root,
		cfg:     cfg,
		catalog: cat,
		store:   st,
		manager: session.NewManager(st, cat, session.Options{
			Logger:              logger,
			Events:              events,
			MaxRoomParticipants: cfg.Room.MaxParticipants,
		}),
		events: events,
		now:    time.Now,
	}, nil
}

func (a *app) Close() error {
	a.events.Close()
	return a.store.Close()
}
