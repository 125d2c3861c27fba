package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"editorial-desk/config"
)

// cliEnv holds what the commands need from the environment.
type cliEnv struct {
	loadConfig func() (*config.Config, error)
	newLogger  func(level string) (*zap.Logger, error)
}

func defaultEnv() *cliEnv {
	return &cliEnv{loadConfig: config.Load, newLogger: config.NewLogger}
}

func newRootCommand(rt *cliEnv) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "editorialctl",
		Short:         "Run and inspect editorial workflow jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newJobsCommand(rt))
	rootCmd.AddCommand(newRunCommand(rt))
	return rootCmd
}
