// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/changelog"
	"github.com/waypointdb/waypoint/pkg/config"
	"github.com/waypointdb/waypoint/pkg/migration"
)

func changelogCmd() *cobra.Command {
	var from, to, format string

	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Render a changelog of DDL changes across migration scripts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromViper()

			all, err := migration.Scan(locationDirs(cfg))
			if err != nil {
				return err
			}

			var fromV, toV migration.Version
			if from != "" {
				if fromV, err = migration.ParseVersion(from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if to != "" {
				if toV, err = migration.ParseVersion(to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}

			report := changelog.Build(all, fromV, toV)

			switch changelog.ParseFormat(format) {
			case changelog.Markdown:
				fmt.Print(changelog.RenderMarkdown(report))
			case changelog.JSON:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			default:
				fmt.Print(changelog.RenderPlainText(report))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Only include versions >= this version")
	cmd.Flags().StringVar(&to, "to", "", "Only include versions <= this version")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: markdown, text, or json")

	return cmd
}
