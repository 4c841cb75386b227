// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/config"
	"github.com/waypointdb/waypoint/pkg/lint"
	"github.com/waypointdb/waypoint/pkg/migration"
)

func lintCmd() *cobra.Command {
	var disable []string

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Statically check migration scripts for anti-patterns, without connecting to the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromViper()

			all, err := migration.Scan(locationDirs(cfg))
			if err != nil {
				return err
			}

			report := lint.Lint(all, disable)

			for _, issue := range report.Issues {
				line := ""
				if issue.Line != nil {
					line = pterm.Sprintf(":%d", *issue.Line)
				}
				printer := pterm.Info
				switch issue.Severity {
				case lint.Error:
					printer = pterm.Error
				case lint.Warning:
					printer = pterm.Warning
				}
				printer.Printfln("[%s] %s%s: %s", issue.RuleID, issue.Script, line, issue.Message)
				if issue.Suggestion != "" {
					pterm.Println("  suggestion: " + issue.Suggestion)
				}
			}

			pterm.Info.Printfln("%d file(s) checked: %d error(s), %d warning(s), %d info",
				report.FilesChecked, report.ErrorCount, report.WarningCount, report.InfoCount)

			if report.ErrorCount > 0 {
				return lintFailedError{Count: report.ErrorCount}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&disable, "disable", nil, "Lint rule IDs to disable, e.g. --disable W001,W002")

	return cmd
}
