package browser

import (
	"fmt"
	"strings"
)

// Category is one semantic class of browser data.
type Category string

const (
	Bookmarks      Category = "bookmarks"
	History        Category = "history"
	LoginData      Category = "login-data"
	Preferences    Category = "preferences"
	Cookies        Category = "cookies"
	Extensions     Category = "extensions"
	LocalStorage   Category = "local-storage"
	SessionStorage Category = "session-storage"
	FormHistory    Category = "form-history"
)

// AllCategories returns every category in canonical order. The order is
// load-bearing: collection emits files in this order, which keeps the
// archive hash deterministic, and a file claimed by two categories
// (Firefox places.sqlite) is attributed to the earlier one.
func AllCategories() []Category {
	return []Category{
		Bookmarks, History, LoginData, Preferences, Cookies,
		Extensions, LocalStorage, SessionStorage, FormHistory,
	}
}

// ParseCategory converts a user-supplied category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllCategories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ParseCategories converts a comma-separated list; an empty input means
// "all categories the browser exposes" and returns nil.
func ParseCategories(s string) ([]Category, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []Category
	for _, part := range strings.Split(s, ",") {
		c, err := ParseCategory(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CategoryNames renders categories as strings for manifests and reports.
func CategoryNames(cats []Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}

// Portable reports whether a category may cross browser kinds. Only
// bookmarks and history have lossless structural mappings between
// families; everything else is tied to its browser's native format.
func (c Category) Portable() bool {
	return c == Bookmarks || c == History
}
