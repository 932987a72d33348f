package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/profilevault/profilevault/internal/bookmarks"
	"github.com/profilevault/profilevault/internal/browser"
)

// ExportOptions selects which live profile's bookmarks to export.
type ExportOptions struct {
	Browser browser.Kind

	// Profile names the profile to export; empty picks the only
	// profile, or errors when there are several.
	Profile string

	// OutPath is the HTML file to write.
	OutPath string

	// DataDir overrides profile discovery.
	DataDir string
}

// ExportResult reports what an export produced.
type ExportResult struct {
	Path    string
	Profile string
	Links   int
}

// ExportBookmarks reads a live profile's bookmarks and writes them as a
// Netscape bookmark HTML file, the format every browser's import dialog
// accepts.
func (e *Engine) ExportBookmarks(opts ExportOptions) (*ExportResult, error) {
	if opts.Browser == "" {
		return nil, fmt.Errorf("no browser selected")
	}
	if opts.OutPath == "" {
		return nil, fmt.Errorf("no output path given")
	}

	var names []string
	if opts.Profile != "" {
		names = []string{opts.Profile}
	}
	profiles, err := e.locateProfiles(opts.Browser, names, opts.DataDir)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%s: no profiles found", opts.Browser.DisplayName())
	}
	if opts.Profile == "" && len(profiles) > 1 {
		return nil, fmt.Errorf("%s has %d profiles (%s); pick one", opts.Browser.DisplayName(), len(profiles), profileNames(profiles))
	}
	profile := profiles[0]

	var tree *bookmarks.Tree
	if opts.Browser.ChromiumBased() {
		tree, err = bookmarks.ParseChromium(filepath.Join(profile.Root, "Bookmarks"))
	} else {
		tree, err = bookmarks.ParseFirefox(filepath.Join(profile.Root, "places.sqlite"))
	}
	if err != nil {
		return nil, fmt.Errorf("reading bookmarks from %s: %w", profile.Name, err)
	}

	title := fmt.Sprintf("Bookmarks from %s", opts.Browser.DisplayName())
	html := bookmarks.ExportHTML(tree, title)
	if err := os.WriteFile(opts.OutPath, []byte(html), 0o644); err != nil {
		return nil, fmt.Errorf("writing bookmark file: %w", err)
	}

	links := tree.CountLinks()
	e.logger.Info("bookmarks exported", "browser", opts.Browser, "profile", profile.Name, "links", links, "path", opts.OutPath)
	return &ExportResult{Path: opts.OutPath, Profile: profile.Name, Links: links}, nil
}
