// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/pkg/advisor"
)

// adviseCmd has no dedicated exit code in spec.md's reserved table (unlike
// lint/conflicts/preflight): it reports findings but never blocks a
// migration, so it always exits ExitGeneric on failure, ExitSuccess otherwise.
func adviseCmd() *cobra.Command {
	var disable []string
	var showFix bool

	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Suggest proactive schema improvements against the live database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, closeConn, err := newApplier(ctx)
			if err != nil {
				return err
			}
			defer closeConn()

			report, err := advisor.Analyze(ctx, a.DB, "public", advisor.Config{DisabledRules: disable})
			if err != nil {
				return err
			}

			if len(report.Advisories) == 0 {
				pterm.Success.Println("No advisories found")
				return nil
			}

			for _, adv := range report.Advisories {
				printer := pterm.Info
				switch adv.Severity {
				case advisor.Warning:
					printer = pterm.Warning
				case advisor.Suggestion:
					printer = pterm.Info
				}
				printer.Printfln("[%s] %s: %s", adv.RuleID, adv.Object, adv.Explanation)
			}
			fmt.Printf("\n%d warning(s), %d suggestion(s), %d info\n",
				report.WarningCount, report.SuggestionCount, report.InfoCount)

			if showFix {
				if fixSQL := advisor.GenerateFixSQL(report); fixSQL != "" {
					fmt.Println("\n-- Suggested fixes --")
					fmt.Println(fixSQL)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&disable, "disable", nil, "Advisor rule IDs to skip (e.g. A002,A006)")
	cmd.Flags().BoolVar(&showFix, "fix", false, "Print auto-generated fix SQL for advisories that have one")

	return cmd
}
