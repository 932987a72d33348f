package manifest

import (
	"testing"
	"time"

	"github.com/profilevault/profilevault/internal/browser"
)

func TestBuild(t *testing.T) {
	created := time.Date(2026, 8, 23, 15, 10, 4, 0, time.FixedZone("CEST", 2*3600))

	m := Build(BuildParams{
		ID:         "7b0f3c2e",
		Browser:    browser.Chrome,
		Profiles:   []string{"Default", "Profile 1"},
		CreatedAt:  created,
		SizeBytes:  1 << 20,
		FileCount:  42,
		Categories: []browser.Category{browser.Bookmarks, browser.History},
		Hash:       "sha256:deadbeef",
		ArchiveDir: "chrome_Default_20260823_151004",
		Encrypted:  true,
	})

	if m.ID != "7b0f3c2e" {
		t.Errorf("ID = %q", m.ID)
	}
	if m.Browser != "chrome" {
		t.Errorf("Browser = %q, want chrome", m.Browser)
	}
	if m.FormatVersion != FormatVersion {
		t.Errorf("FormatVersion = %d, want %d", m.FormatVersion, FormatVersion)
	}
	if m.RestoreTested {
		t.Error("RestoreTested should start false")
	}
	if !m.Encrypted {
		t.Error("Encrypted not carried over")
	}
	if m.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt not normalized to UTC: %v", m.CreatedAt)
	}
	if !m.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", m.CreatedAt, created)
	}
	if len(m.CategoriesIncluded) != 2 || m.CategoriesIncluded[0] != "bookmarks" || m.CategoriesIncluded[1] != "history" {
		t.Errorf("CategoriesIncluded = %v", m.CategoriesIncluded)
	}
}

func TestBuildCopiesProfiles(t *testing.T) {
	profiles := []string{"Default"}
	m := Build(BuildParams{ID: "x", Browser: browser.Brave, Profiles: profiles})

	profiles[0] = "mutated"
	if m.Profiles[0] != "Default" {
		t.Error("Build shares the caller's profiles slice")
	}
}

func TestKind(t *testing.T) {
	m := &Manifest{Browser: "firefox"}
	k, err := m.Kind()
	if err != nil {
		t.Fatalf("Kind() error = %v", err)
	}
	if k != browser.Firefox {
		t.Errorf("Kind() = %q, want firefox", k)
	}

	m.Browser = "netscape"
	if _, err := m.Kind(); err == nil {
		t.Error("Kind() should fail for an unsupported browser")
	}
}
