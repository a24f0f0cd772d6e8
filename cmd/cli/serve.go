package main

import (
	"github.com/spf13/cobra"

	"github.com/radsched/radsched/internal/handler"
	"github.com/radsched/radsched/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := handler.BuildInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit}
			return server.Run(cfg, info)
		},
	}
}
