// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/applier"
	"github.com/waypointdb/waypoint/pkg/config"
)

func undoCmd() *cobra.Command {
	var count int
	var version string

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Reverse one or more effectively-applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, closeConn, err := newApplier(ctx)
			if err != nil {
				return err
			}
			defer closeConn()

			cfg := config.FromViper()
			dirs := locationDirs(cfg)

			all, err := a.Scan(dirs)
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

			hooks, err := loadHooks(dirs)
			if err != nil {
				return err
			}

			target := applier.UndoTarget{Version: version, Count: count}
			if version == "" && count <= 0 {
				target.Last = true
			}

			sp, _ := pterm.DefaultSpinner.WithText("Reversing migration(s)...").Start()

			result, err := a.Undo(ctx, all, target, hooks)
			if err != nil {
				sp.Fail(err.Error())
				return err
			}

			sp.Success(fmt.Sprintf("Undone %d migration(s): %v", len(result.Undone), result.Undone))
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Undo the N most recently applied versions")
	cmd.Flags().StringVar(&version, "version", "", "Undo a specific version")

	return cmd
}
