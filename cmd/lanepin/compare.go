package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kroma-labs/lanepin/lane"
)

func newCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare URL|PRESET",
		Short: "Send the same GET over the pinned and the default lane",
		Long: `Send the same GET over both lanes at once and print the results side by
side. A failure on one lane does not stop the other.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := buildTarget("", lane.ResolvePreset(args[0]), nil, "")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := a.telemetry(ctx, nil)
			if err != nil {
				return err
			}
			defer func() { _ = p.Shutdown(context.WithoutCancel(ctx)) }()

			cmp := a.newRunner(p).Compare(ctx, t)
			return writeComparison(a.stdout, cmp, a.cfg.JSON)
		},
	}
}
