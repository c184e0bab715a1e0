package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/resume-parser/internal/app"
	"github.com/joseph-ayodele/resume-parser/internal/common"
)

type rootOptions struct {
	configPath string
	cfg        *common.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "resumectl",
		Short:         "Parse resumes and inspect the run log",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := common.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			// stdout carries command output, logs go to stderr
			opts.logger = app.NewLogger(cfg.Pipeline, os.Stderr)
			slog.SetDefault(opts.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a config file")

	root.AddCommand(newParseCmd(opts), newRunsCmd(opts), newDBHealthCmd(opts))
	return root
}
