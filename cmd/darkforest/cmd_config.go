package main

import (
	"fmt"
	"strconv"

	"github.com/nvandessel/darkforest/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage darkforest configuration",
		Long: `View and modify darkforest configuration settings.

Configuration is stored in ~/.darkforest/config.yaml. DARKFOREST_*
environment variables override the file.

Examples:
  darkforest config list                       # Show all settings
  darkforest config get store.driver           # Get a specific setting
  darkforest config set report.compress true   # Set a setting
  darkforest config set logging.level debug`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOut {
				return printJSON(cmd, cfg)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration (~/.darkforest/config.yaml):")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Store:")
			fmt.Fprintf(out, "  store.driver:           %s\n", valueOrDefault(cfg.Store.Driver, config.DriverSQLite))
			fmt.Fprintf(out, "  store.path:             %s\n", valueOrDefault(cfg.Store.Path, "(default)"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging:")
			fmt.Fprintf(out, "  logging.level:          %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Report:")
			fmt.Fprintf(out, "  report.compress:        %v\n", cfg.Report.Compress)
			fmt.Fprintf(out, "  report.dir:             %s\n", valueOrDefault(cfg.Report.Dir, "(default)"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Room:")
			fmt.Fprintf(out, "  room.max_participants:  %d\n", cfg.Room.MaxParticipants)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				if jsonOut {
					if err := printJSON(cmd, map[string]any{"error": "key not found", "key": key}); err != nil {
						return err
					}
				}
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{"key": key, "value": value})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := config.Path()
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{"status": "updated", "key": key, "value": value})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.DarkForestConfig, key string) (any, bool) {
	switch key {
	case "store.driver":
		return cfg.Store.Driver, true
	case "store.path":
		return cfg.Store.Path, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "report.compress":
		return cfg.Report.Compress, true
	case "report.dir":
		return cfg.Report.Dir, true
	case "room.max_participants":
		return cfg.Room.MaxParticipants, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.DarkForestConfig, key, value string) error {
	switch key {
	case "store.driver":
		if value != config.DriverSQLite && value != config.DriverMemory {
			return fmt.Errorf("invalid store driver: %s (valid: sqlite, memory)", value)
		}
		cfg.Store.Driver = value
	case "store.path":
		cfg.Store.Path = value
	case "logging.level":
		switch value {
		case "info", "debug", "trace":
		default:
			return fmt.Errorf("invalid log level: %s (valid: info, debug, trace)", value)
		}
		cfg.Logging.Level = value
	case "report.compress":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Report.Compress = b
	case "report.dir":
		cfg.Report.Dir = value
	case "room.max_participants":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid max_participants: %s (must be a non-negative integer)", value)
		}
		cfg.Room.MaxParticipants = n
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
