// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/config"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check resolved scripts against recorded history",
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

			discrepancies, err := a.Validate(ctx, all)
			if err != nil {
				return err
			}

			if len(discrepancies) == 0 {
				pterm.Success.Println("No validation discrepancies found")
				return nil
			}

			for _, d := range discrepancies {
				pterm.Error.Printfln("%s: %s", d.Script, d.Reason)
			}
			return validateFailedError{Count: len(discrepancies)}
		},
	}

	return cmd
}
