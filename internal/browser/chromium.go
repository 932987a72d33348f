package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// chromiumLayout covers Chrome, Brave and Edge, which share the Chromium
// profile structure: a per-OS "User Data" directory containing "Default"
// and "Profile N" subdirectories.
type chromiumLayout struct {
	kind Kind
}

func (l chromiumLayout) Kind() Kind { return l.kind }

// chromiumDataDirs lists the conventional data directories per OS, in
// probe order. Mirrors where each vendor actually installs.
func (l chromiumLayout) dataDirCandidates() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var vendor []string
	switch l.kind {
	case Chrome:
		vendor = []string{
			filepath.Join(home, "AppData", "Local", "Google", "Chrome", "User Data"),
			filepath.Join(home, ".config", "google-chrome"),
			filepath.Join(home, "Library", "Application Support", "Google", "Chrome"),
		}
	case Brave:
		vendor = []string{
			filepath.Join(home, "AppData", "Local", "BraveSoftware", "Brave-Browser", "User Data"),
			filepath.Join(home, ".config", "BraveSoftware", "Brave-Browser"),
			filepath.Join(home, "Library", "Application Support", "BraveSoftware", "Brave-Browser"),
		}
	case Edge:
		vendor = []string{
			filepath.Join(home, "AppData", "Local", "Microsoft", "Edge", "User Data"),
			filepath.Join(home, ".config", "microsoft-edge"),
			filepath.Join(home, "Library", "Application Support", "Microsoft Edge"),
		}
	}

	// Put the native candidate for the current OS first; the others
	// remain as fallbacks for unusual setups.
	idx := 1 // linux
	switch runtime.GOOS {
	case "windows":
		idx = 0
	case "darwin":
		idx = 2
	}
	ordered := []string{vendor[idx]}
	for i, p := range vendor {
		if i != idx {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func (l chromiumLayout) DefaultDataDir() string {
	for _, p := range l.dataDirCandidates() {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p
		}
	}
	return ""
}

var chromiumProfileDir = regexp.MustCompile(`^Profile (\d+)$`)

// Locate returns the Default profile plus every "Profile N" directory,
// Default first, then numeric order. A missing or empty data directory
// is an empty result, not an error.
func (l chromiumLayout) Locate(dataDir string) ([]Profile, error) {
	if dataDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s data directory: %w", l.kind, err)
	}

	var numbered []string
	hasDefault := false
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		switch {
		case e.Name() == "Default":
			hasDefault = true
		case chromiumProfileDir.MatchString(e.Name()):
			numbered = append(numbered, e.Name())
		}
	}
	sort.Slice(numbered, func(i, j int) bool {
		a, _ := strconv.Atoi(chromiumProfileDir.FindStringSubmatch(numbered[i])[1])
		b, _ := strconv.Atoi(chromiumProfileDir.FindStringSubmatch(numbered[j])[1])
		return a < b
	})

	var profiles []Profile
	if hasDefault {
		profiles = append(profiles, Profile{Kind: l.kind, Name: "Default", Root: filepath.Join(dataDir, "Default")})
	}
	for _, name := range numbered {
		profiles = append(profiles, Profile{Kind: l.kind, Name: name, Root: filepath.Join(dataDir, name)})
	}
	return profiles, nil
}

// chromiumCategoryTable maps categories to the file names Chromium uses
// inside a profile directory.
var chromiumCategoryTable = map[Category]FileSpec{
	Bookmarks:      {Files: []string{"Bookmarks"}},
	History:        {Files: []string{"History"}},
	LoginData:      {Files: []string{"Login Data"}},
	Preferences:    {Files: []string{"Preferences", "Secure Preferences"}},
	Cookies:        {Files: []string{"Cookies"}},
	Extensions:     {Dirs: []string{"Extensions"}},
	LocalStorage:   {Dirs: []string{"Local Storage"}},
	SessionStorage: {Dirs: []string{"Session Storage"}},
	FormHistory:    {Files: []string{"Web Data"}},
}

func (l chromiumLayout) CategorySpec(c Category) (FileSpec, bool) {
	spec, ok := chromiumCategoryTable[c]
	return spec, ok
}

func (l chromiumLayout) CategoryFor(relPath string) (Category, bool) {
	return categoryForPath(l, relPath)
}

// categoryForPath matches a profile-relative path against a layout's
// category table in canonical order. Directory categories own every
// path under their directory.
func categoryForPath(l Layout, relPath string) (Category, bool) {
	rel := filepath.ToSlash(relPath)
	top := rel
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		top = rel[:i]
	}
	for _, c := range AllCategories() {
		spec, ok := l.CategorySpec(c)
		if !ok {
			continue
		}
		for _, f := range spec.Files {
			if rel == f {
				return c, true
			}
		}
		for _, d := range spec.Dirs {
			if top == d {
				return c, true
			}
		}
	}
	return "", false
}
