package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listBrowser string

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored backups",
		Long: `List every backup under the backup root, newest first, with its ID,
browser, profiles, size and verification state.`,
		Example: `  profilevault list
  profilevault list --browser firefox`,
		RunE: listRun,
	}

	cmd.Flags().StringVar(&listBrowser, "browser", "", "only show backups of this browser")

	return cmd
}

func listRun(cmd *cobra.Command, args []string) error {
	backups, err := globalEngine.ListBackups()
	if err != nil {
		return err
	}

	if listBrowser != "" {
		filtered := backups[:0]
		for _, m := range backups {
			if m.Browser == strings.ToLower(strings.TrimSpace(listBrowser)) {
				filtered = append(filtered, m)
			}
		}
		backups = filtered
	}

	if len(backups) == 0 {
		fmt.Println("No backups found")
		return nil
	}

	fmt.Printf("%-36s %-8s %-20s %17s %7s %9s %s\n",
		"ID", "Browser", "Created", "Profiles", "Files", "Size", "Flags")
	fmt.Println(strings.Repeat("-", 110))
	for _, m := range backups {
		var flags []string
		if m.RestoreTested {
			flags = append(flags, "verified")
		}
		if m.Encrypted {
			flags = append(flags, "encrypted")
		}
		fmt.Printf("%-36s %-8s %-20s %17s %7d %9s %s\n",
			m.ID,
			m.Browser,
			humanize.Time(m.CreatedAt),
			strings.Join(m.Profiles, ","),
			m.FileCount,
			humanize.Bytes(uint64(m.SizeBytes)),
			strings.Join(flags, ","),
		)
	}
	return nil
}
