package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ghactivity/config"
	"ghactivity/logger"
)

var (
	envFile string
	cfg     = config.NewConfig()

	rootCmd = &cobra.Command{
		Use:   "ghactivity",
		Short: "GitHub activity heatmap",
		Long: `ghactivity merges a user's daily contribution counts with their recent
public events and serves the result as a calendar heatmap.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(envFile); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := logger.Initialize(cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file read before the environment")
	rootCmd.AddCommand(serveCmd, gridCmd)
}
