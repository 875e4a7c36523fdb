package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ghactivity/logger"
	"ghactivity/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the activity API and heatmap pages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service.NewService(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.Error("Error during service shutdown", zap.Error(err))
			}
		}()

		return svc.Start()
	},
}
