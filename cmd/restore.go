// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/config"
	"github.com/waypointdb/waypoint/pkg/schema"
)

func restoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Drop and recreate the configured schema from a captured snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			a, closeConn, err := newApplier(ctx)
			if err != nil {
				return err
			}
			defer closeConn()

			if err := a.State.Lock(ctx); err != nil {
				return err
			}
			defer func() {
				if err := a.State.Unlock(ctx); err != nil {
					pterm.Warning.Printfln("failed to release advisory lock: %v", err)
				}
			}()

			cfg := config.FromViper()

			sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Restoring snapshot %s...", id)).Start()

			count, err := schema.Restore(ctx, a.DB, cfg.Schema, cfg.SnapshotDir, id)
			if err != nil {
				sp.Fail(err.Error())
				return err
			}

			sp.Success(fmt.Sprintf("Restored %d statement(s) from snapshot %s", count, id))
			return nil
		},
	}

	return cmd
}
