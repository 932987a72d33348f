package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/profilevault/profilevault/internal/browser"
	"github.com/profilevault/profilevault/internal/engine"
)

var (
	exportBrowser string
	exportProfile string
	exportOut     string
	exportDataDir string
)

func newExportBookmarksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-bookmarks",
		Short: "Export a profile's bookmarks as HTML",
		Long: `Read a live profile's bookmarks and write them as a Netscape bookmark
HTML file, importable by any browser.`,
		Example: `  profilevault export-bookmarks --browser chrome --out bookmarks.html
  profilevault export-bookmarks --browser firefox --profile work.default --out work.html`,
		RunE: exportBookmarksRun,
	}

	cmd.Flags().StringVar(&exportBrowser, "browser", "", "browser to export from (chrome, brave, edge, firefox)")
	cmd.Flags().StringVar(&exportProfile, "profile", "", "profile name (default: the only profile)")
	cmd.Flags().StringVar(&exportOut, "out", "", "output HTML file")
	cmd.Flags().StringVar(&exportDataDir, "data-dir", "", "override the browser data directory")
	_ = cmd.MarkFlagRequired("browser")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func exportBookmarksRun(cmd *cobra.Command, args []string) error {
	kind, err := browser.ParseKind(exportBrowser)
	if err != nil {
		return err
	}

	res, err := globalEngine.ExportBookmarks(engine.ExportOptions{
		Browser: kind,
		Profile: exportProfile,
		OutPath: exportOut,
		DataDir: exportDataDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d bookmark(s) from %s profile %q to %s\n",
		res.Links, kind.DisplayName(), res.Profile, res.Path)
	return nil
}
