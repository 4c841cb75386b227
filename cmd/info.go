// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/config"
)

func infoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show every resolved script merged with its recorded history state",
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

			rows, err := a.Info(ctx, all)
			if err != nil {
				return err
			}

			data := pterm.TableData{{"Type", "Version", "Description", "State", "Installed On"}}
			for _, r := range rows {
				installedOn := ""
				if r.InstalledOn != nil {
					installedOn = r.InstalledOn.Format("2006-01-02 15:04:05")
				}
				data = append(data, []string{r.Type, r.Version, r.Description, string(r.State), installedOn})
			}

			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}

	return cmd
}
