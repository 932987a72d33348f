package collect

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/profilevault/profilevault/internal/browser"
)

// fakeChromeProfile builds a minimal Chromium profile tree.
func fakeChromeProfile(t *testing.T) browser.Profile {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Bookmarks":                       `{"roots":{}}`,
		"History":                         "sqlite-bytes",
		"Login Data":                      "logins",
		"Preferences":                     "{}",
		"Extensions/aaaa/1.0/manifest.json": `{"name":"ext"}`,
		"Extensions/aaaa/1.0/bg.js":         "// bg",
		"Local Storage/leveldb/000003.log":  "log",
	}
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return browser.Profile{Kind: browser.Chrome, Name: "Default", Root: root}
}

func TestCollectAllCategories(t *testing.T) {
	profile := fakeChromeProfile(t)

	entries, failures := Collect(profile, nil)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(entries) != 7 {
		t.Fatalf("got %d entries, want 7: %+v", len(entries), entries)
	}

	// Canonical ordering: bookmarks, history, login-data, preferences,
	// then directory categories.
	if entries[0].RelPath != "Bookmarks" || entries[0].Category != browser.Bookmarks {
		t.Errorf("entry[0] = %+v", entries[0])
	}
	if entries[1].RelPath != "History" {
		t.Errorf("entry[1] = %+v", entries[1])
	}

	for _, e := range entries {
		if e.Size <= 0 {
			t.Errorf("entry %s has size %d", e.RelPath, e.Size)
		}
	}
}

func TestCollectDeterministicOrder(t *testing.T) {
	profile := fakeChromeProfile(t)

	first, _ := Collect(profile, nil)
	second, _ := Collect(profile, nil)
	if len(first) != len(second) {
		t.Fatalf("entry counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("entry[%d] differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestCollectCategoryFilter(t *testing.T) {
	profile := fakeChromeProfile(t)

	entries, failures := Collect(profile, []browser.Category{browser.Bookmarks, browser.History})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].RelPath != "Bookmarks" || entries[1].RelPath != "History" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestCollectSkipsMissingFiles(t *testing.T) {
	// A fresh profile with only bookmarks: other categories are
	// silently absent, not failures.
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "Bookmarks"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	profile := browser.Profile{Kind: browser.Chrome, Name: "Default", Root: root}

	entries, failures := Collect(profile, nil)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(entries) != 1 || entries[0].RelPath != "Bookmarks" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestCollectReportsUnreadableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced the same way on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root bypasses permission checks")
	}

	profile := fakeChromeProfile(t)
	locked := filepath.Join(profile.Root, "History")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	entries, failures := Collect(profile, nil)
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1: %+v", len(failures), failures)
	}
	if failures[0].RelPath != "History" {
		t.Errorf("failure path = %q", failures[0].RelPath)
	}
	if failures[0].Reason != ReasonPermissionDenied {
		t.Errorf("failure reason = %q", failures[0].Reason)
	}

	// Everything else still collected.
	if len(entries) != 6 {
		t.Errorf("got %d entries, want 6", len(entries))
	}
	for _, e := range entries {
		if e.RelPath == "History" {
			t.Error("unreadable file must not be collected")
		}
	}
}

func TestCollectFirefoxSharedPlaces(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "places.sqlite"), []byte("db"), 0o644); err != nil {
		t.Fatal(err)
	}
	profile := browser.Profile{Kind: browser.Firefox, Name: "default", Root: root}

	// Both bookmarks and history selected: places.sqlite appears once.
	entries, failures := Collect(profile, []browser.Category{browser.Bookmarks, browser.History})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(entries), entries)
	}
	if entries[0].Category != browser.Bookmarks {
		t.Errorf("shared file attributed to %q, want bookmarks", entries[0].Category)
	}
}
