package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haven-collective/careatlas/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "careatlas",
	Short: "Healthcare access data refresh service",
	Long:  "Aggregates facility, law, and news data for covered states from directory pages, JSON APIs, and a generative backend, geocodes it, and keeps the store fresh on a fixed cadence.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
