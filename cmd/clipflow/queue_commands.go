package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipflow/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and edit the work queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List queued URLs in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList()
				if err != nil {
					return err
				}
				if len(resp.Items) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Items))
				for i, item := range resp.Items {
					rows = append(rows, []string{fmt.Sprintf("%d", i+1), item})
				}
				fmt.Fprintln(stdout, renderTable([]string{"#", "URL"}, rows, 1))
				return nil
			})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Append a URL to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimSpace(args[0])
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.QueueAdd(url); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Added %s\n", url)
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <url>",
		Short: "Remove a URL from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimSpace(args[0])
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.QueueRemove(url); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Removed %s\n", url)
				return nil
			})
		},
	}

	queueCmd.AddCommand(listCmd, addCmd, removeCmd)
	return queueCmd
}
