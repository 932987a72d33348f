package browser

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// processNames lists the executable names each browser runs under, per
// platform, lowercased and without extension.
var processNames = map[Kind][]string{
	Chrome:  {"chrome", "google chrome", "google-chrome"},
	Brave:   {"brave", "brave-browser"},
	Edge:    {"msedge", "microsoft edge", "microsoft-edge"},
	Firefox: {"firefox", "firefox-bin", "firefox-esr"},
}

// IsRunning reports whether any process of the given browser is alive.
// Backups and restores still proceed when it is; the result only feeds
// the "close the browser and retry" warning, since a running browser
// tends to hold locks on the very files being copied.
func IsRunning(k Kind) (bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return false, err
	}
	names := processNames[k]
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		name = strings.ToLower(strings.TrimSuffix(name, ".exe"))
		for _, want := range names {
			if name == want {
				return true, nil
			}
		}
	}
	return false, nil
}
