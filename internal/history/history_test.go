package history

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openForTest(path string) (*sql.DB, error) {
	return sql.Open("sqlite", path)
}

func sampleEntries() []Entry {
	visited := time.Date(2026, 2, 2, 18, 4, 11, 0, time.UTC)
	return []Entry{
		{URL: "https://go.dev/", Title: "The Go Programming Language", VisitCount: 12, LastVisit: visited},
		{URL: "https://pkg.go.dev/database/sql", Title: "sql package", VisitCount: 3, LastVisit: visited.Add(-time.Hour)},
		{URL: "https://example.com/untitled", VisitCount: 1, LastVisit: visited.Add(-48 * time.Hour)},
	}
}

func TestChromiumRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "History")
	want := sampleEntries()

	if err := WriteChromium(want, path); err != nil {
		t.Fatalf("WriteChromium: %v", err)
	}
	got, err := ReadChromium(path)
	if err != nil {
		t.Fatalf("ReadChromium: %v", err)
	}

	assertEntriesEqual(t, want, got)
}

func TestFirefoxRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.sqlite")
	want := sampleEntries()

	if err := WriteFirefox(want, path); err != nil {
		t.Fatalf("WriteFirefox: %v", err)
	}
	got, err := ReadFirefox(path)
	if err != nil {
		t.Fatalf("ReadFirefox: %v", err)
	}

	assertEntriesEqual(t, want, got)
}

func TestCrossFormatConversion(t *testing.T) {
	// Chromium History -> entries -> places.sqlite -> entries: the pivot
	// used by cross-browser restore.
	dir := t.TempDir()
	chromePath := filepath.Join(dir, "History")
	ffPath := filepath.Join(dir, "places.sqlite")

	if err := WriteChromium(sampleEntries(), chromePath); err != nil {
		t.Fatal(err)
	}
	entries, err := ReadChromium(chromePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteFirefox(entries, ffPath); err != nil {
		t.Fatal(err)
	}
	final, err := ReadFirefox(ffPath)
	if err != nil {
		t.Fatal(err)
	}

	assertEntriesEqual(t, sampleEntries(), final)
}

func TestWriteChromiumReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "History")
	if err := WriteChromium(sampleEntries(), path); err != nil {
		t.Fatal(err)
	}

	replacement := []Entry{{URL: "https://only.example.com/", Title: "Only", VisitCount: 1}}
	if err := WriteChromium(replacement, path); err != nil {
		t.Fatal(err)
	}

	got, err := ReadChromium(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].URL != "https://only.example.com/" {
		t.Fatalf("entries after rewrite = %+v", got)
	}
}

func TestFirefoxExcludesBookmarkOnlyPlaces(t *testing.T) {
	// A place row with visit_count 0 is a bookmark target, not history.
	path := filepath.Join(t.TempDir(), "places.sqlite")
	if err := WriteFirefox(sampleEntries(), path); err != nil {
		t.Fatal(err)
	}

	db, err := openForTest(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		`INSERT INTO moz_places (url, title, visit_count) VALUES ('https://bookmarked.example.com/', 'bm', 0)`); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFirefox(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range got {
		if e.URL == "https://bookmarked.example.com/" {
			t.Error("bookmark-only place surfaced as history")
		}
	}
	if len(got) != len(sampleEntries()) {
		t.Fatalf("entry count = %d, want %d", len(got), len(sampleEntries()))
	}
}

func TestTimeConversions(t *testing.T) {
	at := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
	if got := fromChromeMicros(toChromeMicros(at)); !got.Equal(at) {
		t.Errorf("chrome round trip = %v, want %v", got, at)
	}
	if got := fromPRTime(toPRTime(at)); !got.Equal(at) {
		t.Errorf("prtime round trip = %v, want %v", got, at)
	}
	if !fromChromeMicros(0).IsZero() || !fromPRTime(0).IsZero() {
		t.Error("zero micros must map to the zero time")
	}
	if toChromeMicros(time.Time{}) != 0 || toPRTime(time.Time{}) != 0 {
		t.Error("zero time must map to zero micros")
	}
}

func assertEntriesEqual(t *testing.T, want, got []Entry) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("%d entries, want %d", len(got), len(want))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.URL != w.URL {
			t.Errorf("entry %d: url = %q, want %q", i, g.URL, w.URL)
		}
		if g.Title != w.Title {
			t.Errorf("%s: title = %q, want %q", w.URL, g.Title, w.Title)
		}
		if g.VisitCount != w.VisitCount {
			t.Errorf("%s: visit count = %d, want %d", w.URL, g.VisitCount, w.VisitCount)
		}
		if !g.LastVisit.Equal(w.LastVisit) {
			t.Errorf("%s: last visit = %v, want %v", w.URL, g.LastVisit, w.LastVisit)
		}
	}
}
