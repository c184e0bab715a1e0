package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/resume-parser/internal/app"
	"github.com/joseph-ayodele/resume-parser/internal/repository"
)

func newDBHealthCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Check the run log database and show the latest run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := app.OpenDB(cmd.Context(), opts.cfg.Database, opts.logger)
			if err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			defer db.Close()

			if err := db.HealthCheck(cmd.Context(), timeout); err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			runs, err := repository.NewRunRepository(db, opts.logger).List(cmd.Context(), repository.ListOptions{Limit: 1})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (driver=%s)\n", opts.cfg.Database.Driver)
			if len(runs) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "latest run: %s %s %s\n", runs[0].ID, runs[0].Status, runs[0].FileName)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Second, "ping timeout")
	return cmd
}
