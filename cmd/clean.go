// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/config"
)

func cleanCmd() *cobra.Command {
	var authorize bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Drop every object in the configured schema, including the history table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg := config.FromViper()
			if cfg.CleanDisabled || !authorize {
				return cleanDisabledError{}
			}

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

			sp, _ := pterm.DefaultSpinner.WithText("Cleaning schema...").Start()

			dropped, err := a.Clean(ctx)
			if err != nil {
				sp.Fail(err.Error())
				return err
			}

			sp.Success(fmt.Sprintf("Dropped %d object(s)", len(dropped)))
			for _, ident := range dropped {
				pterm.Info.Println(ident)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&authorize, "authorize", false, "Explicitly authorize dropping schema objects")

	return cmd
}
