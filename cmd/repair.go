// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/config"
)

func repairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Delete failed history rows and re-sync checksums",
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

			if err := a.State.Lock(ctx); err != nil {
				return err
			}
			defer func() {
				if err := a.State.Unlock(ctx); err != nil {
					pterm.Warning.Printfln("failed to release advisory lock: %v", err)
				}
			}()

			sp, _ := pterm.DefaultSpinner.WithText("Repairing history...").Start()

			if err := a.Repair(ctx, all); err != nil {
				sp.Fail(err.Error())
				return err
			}

			sp.Success("Repair complete")
			return nil
		},
	}

	return cmd
}
