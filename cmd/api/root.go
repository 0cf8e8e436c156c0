package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"speakwise/config"
)

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:          "speakwise-api",
		Short:        "Event attendance service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = config.NewLogger(cfg.Environment)
			slog.SetDefault(a.logger)
			return nil
		},
	}
	cmd.AddCommand(newServeCmd(a), newImportCmd(a), newTokenCmd(a))
	return cmd
}
