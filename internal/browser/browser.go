// Package browser models the supported browser families: where each one
// keeps its profiles on disk and which concrete files realize each data
// category. Adding a browser means adding one Layout value here.
package browser

import (
	"fmt"
	"strings"
)

// Kind identifies one supported browser family.
type Kind string

const (
	Chrome  Kind = "chrome"
	Brave   Kind = "brave"
	Edge    Kind = "edge"
	Firefox Kind = "firefox"
)

// Kinds lists all supported browsers in canonical order.
func Kinds() []Kind {
	return []Kind{Chrome, Brave, Edge, Firefox}
}

// ParseKind converts a user-supplied browser name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chrome", "google-chrome":
		return Chrome, nil
	case "brave", "brave-browser":
		return Brave, nil
	case "edge", "msedge", "microsoft-edge":
		return Edge, nil
	case "firefox", "mozilla-firefox":
		return Firefox, nil
	default:
		return "", fmt.Errorf("unsupported browser %q (supported: chrome, brave, edge, firefox)", s)
	}
}

// DisplayName returns the marketing name for a Kind.
func (k Kind) DisplayName() string {
	switch k {
	case Chrome:
		return "Google Chrome"
	case Brave:
		return "Brave Browser"
	case Edge:
		return "Microsoft Edge"
	case Firefox:
		return "Mozilla Firefox"
	}
	return string(k)
}

// ChromiumBased reports whether the browser shares the Chromium profile
// format. Cross-browser restores between Chromium-based kinds copy
// portable files verbatim; crossing the Chromium/Firefox boundary needs
// format conversion.
func (k Kind) ChromiumBased() bool {
	return k == Chrome || k == Brave || k == Edge
}

// Profile identifies one user profile inside a browser installation.
// Profiles are discovered, never persisted; a Profile is only valid for
// the duration of the backup/restore/export call that located it.
type Profile struct {
	Kind Kind
	Name string
	Root string // absolute path to the profile directory
}

// FileSpec names the concrete files and directories that realize one
// data category inside a profile, relative to the profile root.
type FileSpec struct {
	Files []string
	Dirs  []string
}

// Layout is the per-family strategy: profile discovery plus the
// category-to-file table. Locate never opens or locks files; it only
// stats paths. A browser that is not installed yields an empty slice,
// not an error.
type Layout interface {
	Kind() Kind

	// DefaultDataDir returns the conventional per-OS data directory,
	// or "" when the browser is not installed on this machine.
	DefaultDataDir() string

	// Locate enumerates profiles under dataDir.
	Locate(dataDir string) ([]Profile, error)

	// CategorySpec maps a category to its files; ok is false when this
	// browser does not expose the category at all.
	CategorySpec(c Category) (FileSpec, bool)

	// CategoryFor reverse-maps a profile-relative path back to the
	// category that owns it. Used by restore to plan per-file actions.
	CategoryFor(relPath string) (Category, bool)
}

// LayoutFor returns the Layout for a Kind.
func LayoutFor(k Kind) Layout {
	if k == Firefox {
		return firefoxLayout{}
	}
	return chromiumLayout{kind: k}
}

// Categories exposed by a Kind, in canonical order.
func (k Kind) Categories() []Category {
	l := LayoutFor(k)
	var out []Category
	for _, c := range AllCategories() {
		if _, ok := l.CategorySpec(c); ok {
			out = append(out, c)
		}
	}
	return out
}
