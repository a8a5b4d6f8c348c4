package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	refreshOnce  bool
	refreshState string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [--state XX]",
	Short: "Run the data refresh scheduler",
	Long:  "Refreshes facilities, laws, and news for every covered state: immediately on start, then once per configured period. With --once, runs a single cycle and exits. With --state, only the named state is refreshed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Refresh.States = refreshStates()
		if err := cfg.Validate("refresh"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if refreshOnce {
			return e.Scheduler.RunCycle(ctx)
		}

		zap.L().Info("refresh scheduler starting",
			zap.Strings("states", cfg.Refresh.States),
			zap.Duration("period", cfg.Refresh.Period()),
		)
		e.Scheduler.Start(ctx)
		return nil
	},
}

// refreshStates returns the configured state list, narrowed to a single
// state when --state is given.
func refreshStates() []string {
	if refreshState != "" {
		return []string{refreshState}
	}
	return cfg.Refresh.States
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshOnce, "once", false, "run a single cycle and exit")
	refreshCmd.Flags().StringVar(&refreshState, "state", "", "refresh only this state")
	rootCmd.AddCommand(refreshCmd)
}
