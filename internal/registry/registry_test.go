package registry

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/profilevault/profilevault/internal/browser"
	"github.com/profilevault/profilevault/internal/manifest"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := New(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func testManifest(id string, created time.Time) *manifest.Manifest {
	return manifest.Build(manifest.BuildParams{
		ID:         id,
		Browser:    browser.Chrome,
		Profiles:   []string{"Default"},
		CreatedAt:  created,
		SizeBytes:  1024,
		FileCount:  2,
		Categories: []browser.Category{browser.Bookmarks, browser.History},
		Hash:       "sha256:abc",
		ArchiveDir: "chrome_Default_20260823_120000_" + id,
	})
}

func TestSaveFindRoundTrip(t *testing.T) {
	r := testRegistry(t)
	m := testManifest("id-1", time.Now())
	if err := r.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := r.Find("id-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Browser != "chrome" || got.FileCount != 2 || got.IntegrityHash != "sha256:abc" {
		t.Errorf("manifest = %+v", got)
	}
	if got.FormatVersion != manifest.FormatVersion {
		t.Errorf("format_version = %d", got.FormatVersion)
	}
	if got.RestoreTested {
		t.Error("new manifest must not be restore_tested")
	}
}

func TestFindUnknownID(t *testing.T) {
	r := testRegistry(t)
	_, err := r.Find("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	r := testRegistry(t)
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := r.Save(testManifest(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	list, err := r.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d manifests, want 3", len(list))
	}
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("list[%d] = %q, want %q", i, list[i].ID, id)
		}
	}
}

func TestDeleteRemovesManifestAndArchive(t *testing.T) {
	r := testRegistry(t)
	m := testManifest("gone", time.Now())

	archiveDir := filepath.Join(r.Root(), m.ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "archive.zip"), []byte("zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Save(m); err != nil {
		t.Fatal(err)
	}

	if err := r.Delete("gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	list, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	for _, got := range list {
		if got.ID == "gone" {
			t.Error("deleted backup still listed")
		}
	}
	if _, err := os.Stat(archiveDir); !os.IsNotExist(err) {
		t.Error("archive directory survived deletion")
	}

	// Second delete fails with NotFound rather than succeeding silently.
	if err := r.Delete("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestMarkRestoreTested(t *testing.T) {
	r := testRegistry(t)
	if err := r.Save(testManifest("tested", time.Now())); err != nil {
		t.Fatal(err)
	}

	if err := r.MarkRestoreTested("tested"); err != nil {
		t.Fatalf("MarkRestoreTested: %v", err)
	}
	got, err := r.Find("tested")
	if err != nil {
		t.Fatal(err)
	}
	if !got.RestoreTested {
		t.Error("restore_tested not persisted")
	}

	// Idempotent.
	if err := r.MarkRestoreTested("tested"); err != nil {
		t.Errorf("second MarkRestoreTested: %v", err)
	}

	if err := r.MarkRestoreTested("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFindRejectsPathTraversal(t *testing.T) {
	r := testRegistry(t)
	if _, err := r.Find("../../etc/passwd"); err == nil {
		t.Error("expected error for traversal ID")
	}
}
