// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/config"
	"github.com/waypointdb/waypoint/pkg/schema"
)

func driftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Detect differences between the expected and live schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, closeConn, err := newApplier(ctx)
			if err != nil {
				return err
			}
			defer closeConn()

			cfg := config.FromViper()
			all, err := a.Scan(locationDirs(cfg))
			if err != nil {
				return err
			}

			diffs, err := a.Drift(ctx, all)
			if err != nil {
				return err
			}

			if len(diffs) == 0 {
				pterm.Success.Println("No drift detected")
				return nil
			}

			for _, stmt := range schema.Emit(diffs) {
				pterm.Warning.Println(stmt)
			}
			return driftDetectedError{Count: len(diffs)}
		},
	}

	return cmd
}
