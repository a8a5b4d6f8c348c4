package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateState string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and persist a facility batch for one state",
	Long:  "Prompts the generative backend for a facility batch, normalizes and geocodes it, and replaces the state's facility rows. Fails loudly on a malformed response.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("generate"); err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := e.Generator.Generate(cmd.Context(), generateState)
		if err != nil {
			return err
		}

		zap.L().Info("generation complete",
			zap.String("state", generateState),
			zap.Int("facilities", n),
		)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateState, "state", "IN", "two-letter state code")
	rootCmd.AddCommand(generateCmd)
}
