package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/profilevault/profilevault/internal/browser"
)

func newBrowsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browsers",
		Short: "Show detected browsers and their profiles",
		Long: `Probe the conventional data directories of every supported browser and
list the profiles found in each. Browsers that are not installed are
shown without profiles.`,
		RunE: browsersRun,
	}
}

func browsersRun(cmd *cobra.Command, args []string) error {
	for _, kind := range browser.Kinds() {
		profiles, err := globalEngine.ListProfiles(kind, "")
		if err != nil {
			logger.Warn("profile discovery failed", "browser", kind, "error", err)
			continue
		}
		if len(profiles) == 0 {
			fmt.Printf("%-18s not detected\n", kind.DisplayName())
			continue
		}

		state := ""
		if running, err := browser.IsRunning(kind); err == nil && running {
			state = " (running)"
		}
		fmt.Printf("%-18s %d profile(s)%s\n", kind.DisplayName(), len(profiles), state)
		for _, p := range profiles {
			fmt.Printf("    %-20s %s\n", p.Name, p.Root)
		}
	}
	return nil
}
