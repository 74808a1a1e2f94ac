package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/bootstrap"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/cleanup"
	"github.com/spf13/cobra"
)

var (
	sweepDryRun bool
	sweepGrace  string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete stored media that no record references",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, done, err := bootstrap.Init(ctx, configPath)
		if err != nil {
			return err
		}
		defer done(context.Background())

		sweeper := app.Sweeper
		if cmd.Flags().Changed("dry-run") || sweepGrace != "" {
			cfg := cleanup.Config{
				Grace:       app.Config.CleanupGrace,
				DryRun:      sweepDryRun || app.Config.Cleanup.DryRun,
				Concurrency: app.Config.Cleanup.Concurrency,
			}
			if sweepGrace != "" {
				if cfg.Grace, err = parseDuration(sweepGrace); err != nil {
					return err
				}
			}
			sweeper = app.Sweeper.WithConfig(cfg)
		}

		rep, err := sweeper.Run(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "scanned %d, live %d, young %d, deleted %d, failed %d, resolved %d\n",
			rep.Scanned, rep.Live, rep.Young, rep.Deleted, rep.Failed, rep.Resolved)
		for _, id := range rep.Orphans {
			fmt.Fprintln(out, id)
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "report orphans without deleting them")
	sweepCmd.Flags().StringVar(&sweepGrace, "grace", "", "skip blobs younger than this (e.g. 30m)")
}
