package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/profilevault/profilevault/internal/browser"
	"github.com/profilevault/profilevault/internal/engine"
)

var (
	restoreBackupID      string
	restoreTargetBrowser string
	restoreTargetProfile string
	restoreCategories    string
	restoreDataDir       string
)

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a backup into a browser profile",
		Long: `Restore a backup into the browser it was taken from, or into a
different one with --target-browser. The archive is verified against its
manifest hash before anything is written, files are extracted to a
staging area first, and every destination file that gets overwritten is
kept next to the original with a ".pre-restore" suffix.

Restoring into a different browser carries only bookmarks and history:
across the Chromium/Firefox boundary they are converted to the target's
native format, between Chromium-based browsers they are copied as-is.
Other categories are skipped as incompatible.`,
		Example: `  profilevault restore --backup <id>
  profilevault restore --backup <id> --target-profile "Profile 2"
  profilevault restore --backup <id> --target-browser firefox
  profilevault restore --backup <id> --categories bookmarks`,
		RunE: restoreRun,
	}

	cmd.Flags().StringVar(&restoreBackupID, "backup", "", "ID of the backup to restore")
	cmd.Flags().StringVar(&restoreTargetBrowser, "target-browser", "", "restore into a different browser")
	cmd.Flags().StringVar(&restoreTargetProfile, "target-profile", "", "restore into a named profile (single-profile backups only)")
	cmd.Flags().StringVar(&restoreCategories, "categories", "", "comma-separated data categories (default: everything in the backup)")
	cmd.Flags().StringVar(&restoreDataDir, "data-dir", "", "override the target browser data directory")
	_ = cmd.MarkFlagRequired("backup")

	return cmd
}

func restoreRun(cmd *cobra.Command, args []string) error {
	var targetKind browser.Kind
	if restoreTargetBrowser != "" {
		var err error
		targetKind, err = browser.ParseKind(restoreTargetBrowser)
		if err != nil {
			return err
		}
	}
	categories, err := browser.ParseCategories(restoreCategories)
	if err != nil {
		return err
	}

	opts := engine.RestoreOptions{
		BackupID:      restoreBackupID,
		TargetBrowser: targetKind,
		TargetProfile: restoreTargetProfile,
		Categories:    categories,
		DataDir:       restoreDataDir,
	}

	h, err := globalEngine.StartRestore(cmd.Context(), opts)
	if err != nil {
		return err
	}
	for ev := range h.Events() {
		logger.Debug("restore progress", "phase", ev.Phase, "path", ev.Path, "message", ev.Message)
	}
	if err := h.Wait(); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	report := h.RestoreReport()
	fmt.Printf("Restore complete: %s -> %s\n", report.SourceBrowser, report.TargetBrowser)
	fmt.Printf("  Restored:   %d file(s)\n", report.FilesRestored)
	if report.FilesSkipped > 0 {
		fmt.Printf("  Skipped:    %d file(s)\n", report.FilesSkipped)
	}
	fmt.Printf("  Duration:   %s\n", report.Duration.Round(timeRounding))

	if len(report.Categories) > 0 {
		fmt.Println("")
		fmt.Printf("%-18s %-10s %s\n", "Category", "Outcome", "Detail")
		for _, cr := range report.Categories {
			detail := ""
			switch {
			case cr.Reason != "":
				detail = cr.Reason
			case cr.Files > 0:
				detail = fmt.Sprintf("%d file(s)", cr.Files)
			}
			fmt.Printf("%-18s %-10s %s\n", cr.Category, cr.Outcome, detail)
		}
	}

	if len(report.SkippedProfiles) > 0 {
		fmt.Printf("\nNo destination profile matches %s; use --target-profile to place them.\n",
			strings.Join(report.SkippedProfiles, ", "))
	}

	if report.Partial() {
		fmt.Printf("\n%d file(s) could not be restored:\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Printf("  %-50s %s\n", f.RelPath, f.Reason)
		}
		fmt.Println("\nEverything else was restored. Fix the listed destinations and re-run.")
	}

	if len(report.PreRestoreBackups) > 0 {
		fmt.Printf("\n%d overwritten file(s) kept with the %q suffix.\n",
			len(report.PreRestoreBackups), engine.PreRestoreSuffix)
	}
	return nil
}
