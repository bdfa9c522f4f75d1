// Package mcp provides an MCP (Model Context Protocol) server exposing the
// Dark Forest engine as tools.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/config"
	"github.com/nvandessel/darkforest/internal/logging"
	"github.com/nvandessel/darkforest/internal/pathutil"
	"github.com/nvandessel/darkforest/internal/ratelimit"
	"github.com/nvandessel/darkforest/internal/session"
	"github.com/nvandessel/darkforest/internal/store"
)

// Server wraps the MCP SDK server and the session manager behind it.
type Server struct {
	server   *sdk.Server
	manager  *session.Manager
	store    store.Store
	catalog  *catalog.Catalog
	root     string
	settings *config.DarkForestConfig
	logger   *slog.Logger
	events   *logging.DecisionLogger
	now      func() time.Time

	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "darkforest")
	Version string // Server version
	Root    string // Project root directory

	// Settings defaults to config.Default() when nil.
	Settings *config.DarkForestConfig

	// Store overrides the store selected by Settings. The server closes it
	// either way.
	Store store.Store

	// Logger receives operational messages. Defaults to a discard logger.
	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewServer creates a new MCP server with darkforest tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	st := cfg.Store
	if st == nil {
		st, err = store.Open(settings.Store.Driver, cfg.Root, settings.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	dataDir := store.LocalDataPath(cfg.Root)
	events := logging.NewDecisionLogger(dataDir, settings.Logging.Level)

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server: mcpServer,
		manager: session.NewManager(st, cat, session.Options{
			Logger:              logger,
			Events:              events,
			Now:                 now,
			MaxRoomParticipants: settings.Room.MaxParticipants,
		}),
		store:        st,
		catalog:      cat,
		root:         cfg.Root,
		settings:     settings,
		logger:       logger,
		events:       events,
		now:          now,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(dataDir),
	}

	if err := s.registerTools(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	if err := s.registerResources(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Close releases the store and log files.
func (s *Server) Close() error {
	s.auditLogger.Close()
	s.events.Close()
	return s.store.Close()
}

// reportDir is the default directory for exported reports.
func (s *Server) reportDir() string {
	if s.settings.Report.Dir != "" {
		return s.settings.Report.Dir
	}
	return filepath.Join(store.LocalDataPath(s.root), pathutil.ReportsDirName)
}

// allowedReportDirs lists where a caller-chosen report path may point.
func (s *Server) allowedReportDirs() ([]string, error) {
	return pathutil.AllowedReportDirs(s.root, s.settings.Report.Dir)
}
