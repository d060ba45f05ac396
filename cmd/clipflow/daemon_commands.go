package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"clipflow/internal/daemon"
	"clipflow/internal/daemonctl"
	"clipflow/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start queue processing, launching the daemon if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			opts := daemonctl.LaunchOptions{}
			if ctx.configFlag != nil {
				opts.ConfigPath = *ctx.configFlag
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, opts, 10*time.Second)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Processing started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Processing already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop queue processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			err := daemonctl.StopProcessing(ctx.socketPath())
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Processing stopped")
			return nil
		},
	}

	shutdownCmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Terminate the daemon process",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg := ctx.configValue()

			reachable, pid, err := daemonctl.ProcessInfo(ctx.socketPath())
			if err != nil {
				return err
			}
			if !reachable {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}

			signalled, err := daemonctl.TerminateProcess(daemon.PIDFilePath(cfg), pid)
			if err != nil {
				return err
			}
			if err := daemonctl.WaitForShutdown(ctx.socketPath(), 10*time.Second); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", signalled)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and scheduler status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			reachable, _, err := daemonctl.ProcessInfo(ctx.socketPath())
			if err != nil {
				return err
			}
			if !reachable {
				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Clipflow", statusWarn, "Not running (run `clipflow start`)", colorize))
				return nil
			}

			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Clipflow", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
				if status.SchedulerRunning {
					fmt.Fprintln(stdout, renderStatusLine("Scheduler", statusOK, "Running", colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Scheduler", statusWarn, "Stopped", colorize))
				}
				if status.LastError != "" {
					fmt.Fprintln(stdout, renderStatusLine("Last error", statusError, status.LastError, colorize))
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Work", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Processing", statusInfo, yesNo(status.IsProcessing), colorize))
				if status.CurrentItem != "" {
					fmt.Fprintln(stdout, renderStatusLine("Current item", statusInfo, status.CurrentItem, colorize))
				}
				fmt.Fprintln(stdout, renderStatusLine("Queue length", statusInfo, fmt.Sprintf("%d", status.QueueLength), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Editors free", statusInfo, fmt.Sprintf("%d", status.EditorsAvailable), colorize))
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, shutdownCmd, statusCmd}
}

// daemonExecutable locates clipflowd next to the current binary, falling
// back to PATH.
func daemonExecutable() (string, error) {
	self, err := os.Executable()
	if err == nil {
		candidate := filepath.Join(filepath.Dir(self), "clipflowd")
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath("clipflowd")
	if err != nil {
		return "", fmt.Errorf("locate clipflowd: %w", err)
	}
	return path, nil
}
