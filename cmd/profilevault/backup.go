package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/profilevault/profilevault/internal/browser"
	"github.com/profilevault/profilevault/internal/engine"
)

// timeRounding trims durations in command output.
const timeRounding = 10 * time.Millisecond

var (
	backupBrowser    string
	backupProfiles   string
	backupCategories string
	backupDataDir    string
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up browser profiles into an archive",
		Long: `Back up one browser's profile data into a compressed, integrity-hashed
archive under the backup root. All profiles and all data categories are
included by default; narrow the selection with --profiles and
--categories.`,
		Example: `  profilevault backup --browser chrome
  profilevault backup --browser firefox --profiles work.default
  profilevault backup --browser brave --categories bookmarks,history,login-data`,
		RunE: backupRun,
	}

	cmd.Flags().StringVar(&backupBrowser, "browser", "", "browser to back up (chrome, brave, edge, firefox)")
	cmd.Flags().StringVar(&backupProfiles, "profiles", "", "comma-separated profile names (default: all)")
	cmd.Flags().StringVar(&backupCategories, "categories", "", "comma-separated data categories (default: all)")
	cmd.Flags().StringVar(&backupDataDir, "data-dir", "", "override the browser data directory")
	_ = cmd.MarkFlagRequired("browser")

	return cmd
}

func backupRun(cmd *cobra.Command, args []string) error {
	kind, err := browser.ParseKind(backupBrowser)
	if err != nil {
		return err
	}
	categories, err := browser.ParseCategories(backupCategories)
	if err != nil {
		return err
	}

	opts := engine.BackupOptions{
		Browser:    kind,
		Profiles:   splitList(backupProfiles),
		Categories: categories,
		DataDir:    backupDataDir,
	}

	h, err := globalEngine.StartBackup(cmd.Context(), opts)
	if err != nil {
		return err
	}
	for ev := range h.Events() {
		logger.Debug("backup progress", "phase", ev.Phase, "done", ev.FilesDone, "total", ev.FilesTotal, "message", ev.Message)
	}
	if err := h.Wait(); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	report := h.BackupReport()
	fmt.Printf("Backup complete: %s\n", report.BackupID)
	fmt.Printf("  Browser:    %s\n", report.Browser)
	fmt.Printf("  Profiles:   %s\n", strings.Join(report.Profiles, ", "))
	fmt.Printf("  Files:      %d\n", report.FileCount)
	fmt.Printf("  Size:       %s (from %s of profile data)\n",
		humanize.Bytes(uint64(report.ArchiveSize)), humanize.Bytes(uint64(report.BytesWritten)))
	fmt.Printf("  Hash:       %s\n", report.Hash)
	fmt.Printf("  Duration:   %s\n", report.Duration.Round(timeRounding))
	if report.Encrypted {
		fmt.Println("  Encrypted:  yes")
	}

	if report.Partial() {
		fmt.Printf("\n%d file(s) could not be read:\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Printf("  %-50s %s\n", f.RelPath, f.Reason)
		}
		fmt.Println("\nThe backup is usable but incomplete. Close the browser and re-run to capture everything.")
	}
	return nil
}

// splitList parses a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
