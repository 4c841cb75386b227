// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func baselineCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "baseline <version>",
		Short: "Mark an existing database as baselined at <version>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			version := args[0]

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

			sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Baselining at version %s...", version)).Start()

			if err := a.Baseline(ctx, version, description); err != nil {
				sp.Fail(err.Error())
				return err
			}

			sp.Success(fmt.Sprintf("Baselined at version %s", version))
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "baseline", "Description recorded with the baseline row")

	return cmd
}
