package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipflow/internal/ipc"
)

func newClaimsCommand(ctx *commandContext) *cobra.Command {
	claimsCmd := &cobra.Command{
		Use:   "claims",
		Short: "Manage work item claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim stale claim markers now",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SweepClaims()
				if err != nil {
					return err
				}
				if resp.Removed == 0 {
					fmt.Fprintln(stdout, "No stale claims found")
					return nil
				}
				fmt.Fprintf(stdout, "Reclaimed %d stale claim(s)\n", resp.Removed)
				return nil
			})
		},
	}

	claimsCmd.AddCommand(sweepCmd)
	return claimsCmd
}
