// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/config"
	"github.com/waypointdb/waypoint/pkg/schema"
)

func diffCmd() *cobra.Command {
	var against string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare the live schema against a captured snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if against == "" {
				return fmt.Errorf("--against <snapshot id> is required")
			}

			a, closeConn, err := newApplier(ctx)
			if err != nil {
				return err
			}
			defer closeConn()

			cfg := config.FromViper()

			diffs, err := schema.DiffAgainstSnapshotFile(ctx, a.DB, cfg.Schema, cfg.HistoryTable, cfg.SnapshotDir, against)
			if err != nil {
				return err
			}

			if len(diffs) == 0 {
				pterm.Success.Println("No differences from snapshot " + against)
				return nil
			}

			for _, stmt := range schema.Emit(diffs) {
				pterm.Info.Println(stmt)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&against, "against", "", "Snapshot id to compare the live schema against")

	return cmd
}
