package browser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// firefoxLayout covers Mozilla Firefox, which registers profiles in a
// profiles.ini file under the application data directory; each profile
// lives in its own randomly-suffixed directory.
type firefoxLayout struct{}

func (firefoxLayout) Kind() Kind { return Firefox }

func (firefoxLayout) dataDirCandidates() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	candidates := []string{
		filepath.Join(home, ".mozilla", "firefox"),
		filepath.Join(home, "AppData", "Roaming", "Mozilla", "Firefox"),
		filepath.Join(home, "Library", "Application Support", "Firefox"),
	}
	switch runtime.GOOS {
	case "windows":
		candidates[0], candidates[1] = candidates[1], candidates[0]
	case "darwin":
		candidates[0], candidates[2] = candidates[2], candidates[0]
	}
	return candidates
}

func (l firefoxLayout) DefaultDataDir() string {
	for _, p := range l.dataDirCandidates() {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p
		}
	}
	return ""
}

// Locate reads profiles.ini; when the ini is absent it falls back to
// scanning for profile-shaped directories so a damaged installation can
// still be backed up.
func (l firefoxLayout) Locate(dataDir string) ([]Profile, error) {
	if dataDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return nil, nil
	}

	iniPath := filepath.Join(dataDir, "profiles.ini")
	entries, err := parseProfilesINI(iniPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading profiles.ini: %w", err)
		}
		return l.scanProfileDirs(dataDir)
	}

	var profiles []Profile
	for _, e := range entries {
		root := e.path
		if e.isRelative {
			root = filepath.Join(dataDir, filepath.FromSlash(e.path))
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		name := e.name
		if name == "" {
			name = filepath.Base(root)
		}
		profiles = append(profiles, Profile{Kind: Firefox, Name: name, Root: root})
	}
	return profiles, nil
}

// scanProfileDirs is the profiles.ini-less fallback: every directory
// under the data dir that is not hidden counts, matching what the
// browser itself tolerates.
func (firefoxLayout) scanProfileDirs(dataDir string) ([]Profile, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("scanning firefox data directory: %w", err)
	}
	var profiles []Profile
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		profiles = append(profiles, Profile{
			Kind: Firefox,
			Name: e.Name(),
			Root: filepath.Join(dataDir, e.Name()),
		})
	}
	return profiles, nil
}

type iniProfile struct {
	name       string
	path       string
	isRelative bool
}

// parseProfilesINI extracts [Profile*] sections. Only Name, Path and
// IsRelative are meaningful; everything else in the file is ignored.
func parseProfilesINI(path string) ([]iniProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var (
		profiles []iniProfile
		current  *iniProfile
	)
	flush := func() {
		if current != nil && current.path != "" {
			profiles = append(profiles, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			flush()
			section := line[1 : len(line)-1]
			if strings.HasPrefix(section, "Profile") {
				current = &iniProfile{isRelative: true}
			}
		case current != nil:
			key, value, found := strings.Cut(line, "=")
			if !found {
				continue
			}
			switch strings.TrimSpace(key) {
			case "Name":
				current.name = strings.TrimSpace(value)
			case "Path":
				current.path = strings.TrimSpace(value)
			case "IsRelative":
				current.isRelative = strings.TrimSpace(value) != "0"
			}
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// firefoxCategoryTable maps categories to the files Firefox keeps in a
// profile directory. Firefox stores bookmarks and history in the same
// places.sqlite database; it has no per-category local/session storage
// files, so those categories are not exposed.
var firefoxCategoryTable = map[Category]FileSpec{
	Bookmarks:   {Files: []string{"places.sqlite"}},
	History:     {Files: []string{"places.sqlite"}},
	LoginData:   {Files: []string{"logins.json", "key4.db"}},
	Preferences: {Files: []string{"prefs.js"}},
	Cookies:     {Files: []string{"cookies.sqlite"}},
	Extensions:  {Files: []string{"extensions.json", "addons.json"}},
	FormHistory: {Files: []string{"formhistory.sqlite"}},
}

func (firefoxLayout) CategorySpec(c Category) (FileSpec, bool) {
	spec, ok := firefoxCategoryTable[c]
	return spec, ok
}

func (l firefoxLayout) CategoryFor(relPath string) (Category, bool) {
	return categoryForPath(l, relPath)
}
