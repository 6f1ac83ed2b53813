package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/clash-sh/clash/pkg/clashio"
	"github.com/clash-sh/clash/pkg/clashlog"
	"github.com/clash-sh/clash/pkg/conflict"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Emit the full pairwise conflict report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := clashlog.New(cmd.ErrOrStderr())

			trees, cfg, err := openWorkingTrees(".", log)
			if err != nil {
				return err
			}

			engine := conflict.New(cfg.Engine.MaxParallelPairs)
			report, err := engine.Report(context.Background(), trees)
			if err != nil {
				return err
			}

			sink := clashio.Human()
			if jsonOut {
				sink = clashio.JSON()
			}
			return sink.EmitReport(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the report as JSON")
	return cmd
}
