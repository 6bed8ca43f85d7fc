package main

import (
	"fmt"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kroma-labs/lanepin/lane"
)

func newTargetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the built-in test targets",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			presets := lane.Presets()
			if a.cfg.JSON {
				return json.NewEncoder(a.stdout).Encode(presets)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			for i, p := range presets {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, p.Name, p.URL)
			}
			return tw.Flush()
		},
	}
}
