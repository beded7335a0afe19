package main

import (
	"fmt"

	"bilagscraper/pkg/manifest"
	"bilagscraper/pkg/ui"

	"github.com/spf13/cobra"
)

var manifestPath string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the outcome of the last run",
	Long: `Show every receipt of the last scrape with its outcome, status code and size.

Runs started with --no-manifest are not recorded.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&manifestPath, "manifest", "", "read this manifest instead of the last run")
}

func runReport(cmd *cobra.Command, args []string) error {
	var m *manifest.Manager
	if manifestPath != "" {
		m = manifest.NewManagerAt(manifestPath)
	} else {
		var err error
		if m, err = manifest.NewManager(); err != nil {
			return err
		}
	}

	mf, err := m.Load()
	if err != nil {
		return err
	}
	if mf == nil {
		ui.PrintInfo("No runs recorded", m.Path())
		return nil
	}

	ui.RenderManifest(cmd.OutOrStdout(), mf)
	if failed := mf.Failed(); len(failed) > 0 {
		ui.PrintWarning(fmt.Sprintf("%d receipts were not downloaded", len(failed)))
	}
	return nil
}
