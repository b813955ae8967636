package main

import (
	"github.com/spf13/cobra"

	"github.com/varoOP/animequotes/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline",
	Long: `Run performs a complete update of the quote database:
1. Scans the configured listing pages and resolves episode links
2. Downloads the subtitle archive of every resolved episode
3. Decodes the archives into ASS scripts
4. Loads the dialogue of each anime into its own table

Anime already stored as completed are skipped; partially stored anime
are only reloaded when new episodes were found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, app.StageAll)
	},
}

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Collect episode links into links documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, app.StageLinks)
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download and decode subtitles of stored links documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, app.StageDownload)
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Download, decode and load quotes of stored links documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, app.StageDownload|app.StageLoad)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, downloadCmd, loadCmd} {
		c.Flags().String("filter", "", "only process anime whose name matches this filter")
	}
	rootCmd.AddCommand(runCmd, linksCmd, downloadCmd, loadCmd)
}
