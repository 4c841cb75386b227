// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/preflight"
)

func preflightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Run live database health checks before migrating",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, closeConn, err := newApplier(ctx)
			if err != nil {
				return err
			}
			defer closeConn()

			report := preflight.Run(ctx, a.DB, preflight.DefaultConfig())

			failed := 0
			for _, c := range report.Checks {
				printer := pterm.Success
				switch c.Status {
				case preflight.Warn:
					printer = pterm.Warning
				case preflight.Fail:
					printer = pterm.Error
					failed++
				}
				printer.Printfln("[%s] %s: %s", c.Status, c.Name, c.Detail)
			}

			if !report.Passed {
				return preflightFailedError{Count: failed}
			}
			return nil
		},
	}

	return cmd
}
