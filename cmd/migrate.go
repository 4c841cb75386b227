// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/waypointdb/waypoint/pkg/applier"
	"github.com/waypointdb/waypoint/pkg/config"
)

func migrateCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending migration scripts",
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

			pending, err := a.Pending(ctx, all)
			if err != nil {
				return err
			}

			hooks, err := loadHooks(dirs)
			if err != nil {
				return err
			}

			if len(pending) == 0 {
				if err := a.Migrate(ctx, nil, hooks); err != nil {
					return err
				}
				pterm.Info.Println("No pending migrations")
				return nil
			}

			sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Applying %d pending migration(s)...", len(pending))).Start()

			var opts []applier.ApplyOption
			if force {
				opts = append(opts, applier.WithForce())
			}

			if cfg.BatchTransaction {
				err = a.MigrateBatch(ctx, pending, hooks, opts...)
			} else {
				err = a.Migrate(ctx, pending, hooks, opts...)
			}
			if err != nil {
				sp.Fail(err.Error())
				return err
			}

			sp.Success(fmt.Sprintf("Applied %d migration(s)", len(pending)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Apply scripts even if their safety verdict is Danger")
	_ = viper.BindPFlag("force", cmd.Flags().Lookup("force"))

	return cmd
}
