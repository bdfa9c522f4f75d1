package main

import (
	"fmt"
	"os"

	"github.com/nvandessel/darkforest/internal/logging"
	"github.com/nvandessel/darkforest/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the simulation as MCP tools over stdio",
		Long: `Run an MCP (Model Context Protocol) server on stdin/stdout. Agents can
start sessions, decide scenarios, manage rooms and export reports through
darkforest_* tools, and read the catalog at darkforest://catalog.

Every tool call is recorded without user identifiers in
.darkforest/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			// stdout carries the protocol, so logs go to stderr.
			server, err := mcp.NewServer(&mcp.Config{
				Name:     "darkforest",
				Version:  version,
				Root:     root,
				Settings: cfg,
				Logger:   logging.NewLogger(cfg.Logging.Level, os.Stderr),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			return server.Run(cmd.Context())
		},
	}
}
