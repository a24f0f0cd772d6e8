// radsched-cli is a file-based front end onto the same core the HTTP
// server exposes: it runs solves and state normalization against JSON
// snapshots on disk, and can also start the HTTP server itself.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/radsched/radsched/internal/config"
	"github.com/radsched/radsched/pkg/logger"
)

// Build metadata, injected via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	cfg        *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "radsched-cli",
		Short: "radsched-cli operates the scheduling core from the command line",
		Long:  "radsched-cli runs solves and state normalization against JSON state snapshots, and can start the HTTP server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("APP_CONFIG_PATH"), "path to config file (defaults to built-in config)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(solveCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initApp() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	return nil
}
