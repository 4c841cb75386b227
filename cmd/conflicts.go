// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/config"
	"github.com/waypointdb/waypoint/pkg/conflict"
)

func conflictsCmd() *cobra.Command {
	var baseBranch string

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect version collisions and semantic conflicts between this branch and a base branch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromViper()

			report, err := conflict.Check(baseBranch, cfg.Locations, func(path string) (string, error) {
				data, err := os.ReadFile(path)
				return string(data), err
			})
			if err != nil {
				return err
			}

			if !report.HasConflict {
				pterm.Success.Printfln("No conflicts found against %s", report.BaseBranch)
				return nil
			}

			for _, c := range report.Conflicts {
				pterm.Error.Printfln("[%s] %s (%s)", c.Type, c.Description, strings.Join(c.Files, ", "))
			}
			return conflictsFoundError{Count: len(report.Conflicts)}
		},
	}

	cmd.Flags().StringVar(&baseBranch, "base-branch", "main", "Base branch to compare this branch's added migrations against")

	return cmd
}
