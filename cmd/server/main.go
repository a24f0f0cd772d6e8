// radsched server entry point.
package main

import (
	"fmt"
	"os"

	"github.com/radsched/radsched/internal/config"
	"github.com/radsched/radsched/internal/handler"
	"github.com/radsched/radsched/internal/server"
	"github.com/radsched/radsched/pkg/logger"
)

// Build metadata, injected via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load(os.Getenv("APP_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	info := handler.BuildInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit}
	if err := server.Run(cfg, info); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}
