// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/config"
	"github.com/waypointdb/waypoint/pkg/schema"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the current schema state to the configured snapshot directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, closeConn, err := newApplier(ctx)
			if err != nil {
				return err
			}
			defer closeConn()

			cfg := config.FromViper()
			if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
				return err
			}

			sp, _ := pterm.DefaultSpinner.WithText("Capturing schema snapshot...").Start()

			id, err := schema.Snapshot(ctx, a.DB, cfg.Schema, cfg.SnapshotDir)
			if err != nil {
				sp.Fail(err.Error())
				return err
			}

			sp.Success("Snapshot " + id + " written to " + cfg.SnapshotDir)
			return nil
		},
	}

	return cmd
}
