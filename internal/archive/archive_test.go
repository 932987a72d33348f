package archive

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"github.com/profilevault/profilevault/internal/collect"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFixture lays out a fake profile and returns the entry set for it.
func writeFixture(t *testing.T, files map[string]string) EntrySet {
	t.Helper()
	root := t.TempDir()
	var entries []collect.Entry
	for _, rel := range sortedKeys(files) {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(files[rel]), 0o644); err != nil {
			t.Fatal(err)
		}
		entries = append(entries, collect.Entry{RelPath: rel, Size: int64(len(files[rel]))})
	}
	return EntrySet{Prefix: "Default", Root: root, Entries: entries}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}

func TestWriteAndVerifyRoundTrip(t *testing.T) {
	set := writeFixture(t, map[string]string{
		"Bookmarks":            `{"roots":{}}`,
		"History":              "history-bytes",
		"Extensions/a/ext.js":  "js",
	})
	archivePath := filepath.Join(t.TempDir(), "archive.zip")

	result, failures, err := NewWriter(discardLogger(), nil).Write(context.Background(), archivePath, []EntrySet{set}, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if result.FileCount != 3 {
		t.Errorf("file count = %d, want 3", result.FileCount)
	}
	if !strings.HasPrefix(result.Hash, HashPrefix) {
		t.Errorf("hash %q missing algo prefix", result.Hash)
	}

	recomputed, err := ComputeHash(archivePath, nil)
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	if recomputed != result.Hash {
		t.Errorf("recomputed hash %q != written hash %q", recomputed, result.Hash)
	}

	names, err := Entries(archivePath, nil)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(names) != 3 || !strings.HasPrefix(names[0], "Default/") {
		t.Errorf("entries = %v", names)
	}
}

func TestWriteDeterministicHash(t *testing.T) {
	files := map[string]string{
		"Bookmarks": `{"roots":{"bookmark_bar":{}}}`,
		"History":   "rows",
	}
	set := writeFixture(t, files)

	dir := t.TempDir()
	first, _, err := NewWriter(discardLogger(), nil).Write(context.Background(), filepath.Join(dir, "a.zip"), []EntrySet{set}, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := NewWriter(discardLogger(), nil).Write(context.Background(), filepath.Join(dir, "b.zip"), []EntrySet{set}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Hash != second.Hash {
		t.Errorf("hashes differ across identical backups: %q vs %q", first.Hash, second.Hash)
	}
}

func TestCorruptArchiveFailsVerification(t *testing.T) {
	set := writeFixture(t, map[string]string{"Bookmarks": strings.Repeat("bookmark data ", 100)})
	archivePath := filepath.Join(t.TempDir(), "archive.zip")

	result, _, err := NewWriter(discardLogger(), nil).Write(context.Background(), archivePath, []EntrySet{set}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Flip one byte in the middle of the archive.
	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)/2] ^= 0xFF
	if err := os.WriteFile(archivePath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	recomputed, err := ComputeHash(archivePath, nil)
	if err == nil && recomputed == result.Hash {
		t.Error("corrupted archive still verified clean")
	}
}

func TestExtractTo(t *testing.T) {
	files := map[string]string{
		"Bookmarks":           "{}",
		"Extensions/x/y.js":   "code",
	}
	set := writeFixture(t, files)
	archivePath := filepath.Join(t.TempDir(), "archive.zip")
	if _, _, err := NewWriter(discardLogger(), nil).Write(context.Background(), archivePath, []EntrySet{set}, nil); err != nil {
		t.Fatal(err)
	}

	stage := t.TempDir()
	n, err := ExtractTo(archivePath, stage, nil)
	if err != nil {
		t.Fatalf("ExtractTo: %v", err)
	}
	if n != 2 {
		t.Errorf("extracted %d files, want 2", n)
	}

	for rel, want := range files {
		got, err := os.ReadFile(filepath.Join(stage, "Default", filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("reading staged %s: %v", rel, err)
		}
		if string(got) != want {
			t.Errorf("staged %s = %q, want %q", rel, got, want)
		}
	}
}

func TestWriteProgressCallback(t *testing.T) {
	set := writeFixture(t, map[string]string{"Bookmarks": "{}", "History": "h", "Cookies": "c"})
	archivePath := filepath.Join(t.TempDir(), "archive.zip")

	var calls []int
	onProgress := func(done, total int, bytes int64) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		calls = append(calls, done)
	}
	if _, _, err := NewWriter(discardLogger(), nil).Write(context.Background(), archivePath, []EntrySet{set}, onProgress); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 3 || calls[2] != 3 {
		t.Errorf("progress calls = %v", calls)
	}
}

func TestWriteCancellationRemovesArchive(t *testing.T) {
	set := writeFixture(t, map[string]string{"Bookmarks": "{}", "History": "h"})
	archivePath := filepath.Join(t.TempDir(), "archive.zip")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewWriter(discardLogger(), nil).Write(ctx, archivePath, []EntrySet{set}, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if _, statErr := os.Stat(archivePath); !os.IsNotExist(statErr) {
		t.Error("cancelled write left a partial archive behind")
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}

	set := writeFixture(t, map[string]string{"Bookmarks": `{"roots":{}}`})
	archivePath := filepath.Join(t.TempDir(), "archive.zip"+EncryptedSuffix)

	w := NewWriter(discardLogger(), []age.Recipient{identity.Recipient()})
	result, _, err := w.Write(context.Background(), archivePath, []EntrySet{set}, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Hash covers the plaintext stream, so verification with the
	// identity reproduces the manifest hash.
	recomputed, err := ComputeHash(archivePath, []age.Identity{identity})
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	if recomputed != result.Hash {
		t.Errorf("recomputed %q != written %q", recomputed, result.Hash)
	}

	// Without the identity the archive is unreadable.
	if _, err := ComputeHash(archivePath, nil); err == nil {
		t.Error("expected error reading encrypted archive without identity")
	}

	stage := t.TempDir()
	if _, err := ExtractTo(archivePath, stage, []age.Identity{identity}); err != nil {
		t.Fatalf("ExtractTo: %v", err)
	}
	if _, err := os.Stat(filepath.Join(stage, "Default", "Bookmarks")); err != nil {
		t.Errorf("staged file missing: %v", err)
	}
}
