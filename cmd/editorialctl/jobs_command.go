package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"editorial-desk/app"
	"editorial-desk/services"
)

func newJobsCommand(rt *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the scheduled job catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.loadConfig()
			if err != nil {
				return err
			}
			// the catalogue does not touch the store
			engine := services.NewEngine(services.Options{Config: cfg, Logger: zap.NewNop()})

			var rows [][]string
			for _, j := range engine.Jobs.Jobs() {
				rows = append(rows, []string{j.Name, j.Schedule, j.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Job", "Schedule", "Description"}, rows))
			return nil
		},
	}
}

func newRunCommand(rt *cliEnv) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run one job invocation and print its result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.loadConfig()
			if err != nil {
				return err
			}
			logger, err := rt.newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			a, err := app.New(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, ok := a.Engine.Jobs.Lookup(args[0]); !ok {
				return fmt.Errorf("%w: %s", services.ErrUnknownJob, args[0])
			}
			res := a.Engine.Jobs.Run(ctx, args[0])

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("job %s failed: %s", res.Job, res.Error)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Abort the run after this long (0 disables)")
	return cmd
}
