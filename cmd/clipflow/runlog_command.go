package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipflow/internal/ipc"
)

func newRunLogCommand(ctx *commandContext) *cobra.Command {
	var limit int

	runlogCmd := &cobra.Command{
		Use:   "runlog",
		Short: "Show the newest finished runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunLogTail(limit)
				if err != nil {
					return err
				}
				if len(resp.Records) == 0 {
					fmt.Fprintln(stdout, "No finished runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Records))
				for _, record := range resp.Records {
					outcome := record.Outcome
					if record.ErrorType != "" {
						outcome = fmt.Sprintf("%s (%s)", record.Outcome, record.ErrorType)
					}
					title := record.Title
					if title == "" {
						title = record.URL
					}
					rows = append(rows, []string{
						record.CreatedAt,
						title,
						record.EditorURL,
						outcome,
						fmt.Sprintf("%.0fs", record.DurationSeconds),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Finished", "Title", "Editor", "Outcome", "Duration"},
					rows, 5))
				return nil
			})
		},
	}

	runlogCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return runlogCmd
}
