package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "darkforest",
		Short: "Dark Forest decision simulation",
		Long: `darkforest runs the Dark Forest strategic decision simulation.

Players face a fixed series of scenarios in one context (business,
philosophy, science or policy) and answer each with communicate, silence
or escalate. Every answer adds a weight vector to the player's
cooperation, caution and aggression scores, and a finished run is
classified into a strategic profile.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("store", "", "Store driver override: sqlite or memory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newCatalogCmd(),
		newPlayCmd(),
		newSessionCmd(),
		newRoomCmd(),
		newReportCmd(),
		newStatsCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
