package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clash-sh/clash/pkg/clashio"
	"github.com/clash-sh/clash/pkg/clashlog"
	"github.com/clash-sh/clash/pkg/clashmodel"
	"github.com/clash-sh/clash/pkg/conflict"
	"github.com/clash-sh/clash/pkg/watch"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream conflict reports until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := clashlog.New(cmd.ErrOrStderr())

			trees, cfg, err := openWorkingTrees(".", log)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			engine := conflict.New(cfg.Engine.MaxParallelPairs)
			debounce := time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond
			observer := watch.New(trees, engine, debounce, cfg.Watch.Ignore, log)

			reports := make(chan clashmodel.ConflictReport)
			done := make(chan error, 1)
			go func() { done <- observer.Run(ctx, reports) }()

			out := cmd.OutOrStdout()
			sink := clashio.Human()

			for {
				select {
				case report := <-reports:
					fmt.Fprintln(out, "---")
					if err := sink.EmitReport(out, report); err != nil {
						log.Warn("emit report: %v", err)
					}
				case err := <-done:
					return err
				}
			}
		},
	}
}
