package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"clipflow/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and bootstrap configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()

			path := ctx.configPath
			if path == "" {
				path = "(defaults, no file found)"
			}
			fmt.Fprintf(stdout, "Config file: %s\n\n", path)

			rows := [][]string{
				{"Data directory", cfg.Paths.DataDir},
				{"Uploads directory", cfg.Paths.UploadsDir},
				{"Log directory", cfg.Paths.LogDir},
				{"Queue file", cfg.QueueFile()},
				{"Registry file", cfg.RegistryFile()},
				{"Claims directory", cfg.ClaimsDir()},
				{"Scheduler enabled", yesNo(cfg.Scheduler.Enabled)},
				{"Max concurrent", fmt.Sprintf("%d", cfg.Scheduler.MaxConcurrent)},
				{"Run log enabled", yesNo(cfg.RunLog.Enabled)},
				{"yt-dlp path", cfg.Downloader.YtdlpPath},
			}
			fmt.Fprintln(stdout, renderTable([]string{"Setting", "Value"}, rows))
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a sample configuration file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			var path string
			if len(args) == 1 {
				path = strings.TrimSpace(args[0])
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			expanded, err := config.ExpandPath(path)
			if err != nil {
				return err
			}
			if _, err := os.Stat(expanded); err == nil {
				return fmt.Errorf("config file already exists at %s", expanded)
			}
			if err := config.CreateSample(expanded); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Sample configuration written to %s\n", expanded)
			return nil
		},
	}

	configCmd.AddCommand(showCmd, initCmd)
	return configCmd
}
