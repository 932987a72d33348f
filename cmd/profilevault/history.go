package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyBrowser string
	historyBackup  string
	historyLimit   int
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past backup and restore runs",
		Long: `Show the recorded history of backup and restore operations, newest
first. Requires the history database to be configured and writable.`,
		Example: `  profilevault history
  profilevault history --browser chrome --limit 5
  profilevault history --backup <id>`,
		RunE: historyRun,
	}

	cmd.Flags().StringVar(&historyBrowser, "browser", "", "only show backup runs for this browser")
	cmd.Flags().StringVar(&historyBackup, "backup", "", "only show restore runs of this backup")
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum rows per table")

	return cmd
}

func historyRun(cmd *cobra.Command, args []string) error {
	if globalStore == nil {
		return fmt.Errorf("history database is not available")
	}

	backupRuns, err := globalStore.ListBackupRuns(historyBrowser, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list backup runs: %w", err)
	}
	restoreRuns, err := globalStore.ListRestoreRuns(historyBackup, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list restore runs: %w", err)
	}

	if len(backupRuns) == 0 && len(restoreRuns) == 0 {
		fmt.Println("No recorded runs")
		return nil
	}

	if len(backupRuns) > 0 {
		fmt.Println("Backup runs")
		fmt.Printf("%-20s %-8s %-10s %7s %7s %9s %s\n",
			"Started", "Browser", "Status", "Files", "Failed", "Size", "Backup ID")
		fmt.Println(strings.Repeat("-", 100))
		for _, run := range backupRuns {
			fmt.Printf("%-20s %-8s %-10s %7d %7d %9s %s\n",
				run.StartTime.Local().Format("2006-01-02 15:04:05"),
				run.Browser,
				run.Status,
				run.FilesCopied,
				run.FilesFailed,
				humanize.Bytes(uint64(run.ArchiveSize)),
				run.BackupID,
			)
		}
		fmt.Println("")
	}

	if len(restoreRuns) > 0 {
		fmt.Println("Restore runs")
		fmt.Printf("%-20s %-8s %-10s %8s %8s %-6s %s\n",
			"Started", "Target", "Status", "Restored", "Skipped", "Cross", "Backup ID")
		fmt.Println(strings.Repeat("-", 100))
		for _, run := range restoreRuns {
			cross := "no"
			if run.CrossBrowser {
				cross = "yes"
			}
			fmt.Printf("%-20s %-8s %-10s %8d %8d %-6s %s\n",
				run.StartTime.Local().Format("2006-01-02 15:04:05"),
				run.TargetBrowser,
				run.Status,
				run.FilesRestored,
				run.FilesSkipped,
				cross,
				run.BackupID,
			)
		}
	}
	return nil
}
