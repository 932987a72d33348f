// Package history reads and writes browsing history in both families'
// SQLite schemas. It exists for cross-browser restore: Chromium keeps
// history in a `History` database (urls/visits, timestamps in
// microseconds since 1601), Firefox in places.sqlite
// (moz_places/moz_historyvisits, microseconds since the Unix epoch).
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one remembered page.
type Entry struct {
	URL        string
	Title      string
	VisitCount int
	LastVisit  time.Time // zero when the source had no recorded visit
}

var chromeEpoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

func fromChromeMicros(micros int64) time.Time {
	if micros == 0 {
		return time.Time{}
	}
	return chromeEpoch.Add(time.Duration(micros) * time.Microsecond)
}

func toChromeMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Sub(chromeEpoch).Microseconds()
}

func fromPRTime(micros int64) time.Time {
	if micros == 0 {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}

func toPRTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

// ReadChromium loads history entries from a Chromium History database.
func ReadChromium(path string) ([]Entry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.Query(`
		SELECT url, title, visit_count, last_visit_time
		FROM urls WHERE hidden = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			title  sql.NullString
			visits sql.NullInt64
			last   sql.NullInt64
		)
		if err := rows.Scan(&e.URL, &title, &visits, &last); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.Title = title.String
		e.VisitCount = int(visits.Int64)
		e.LastVisit = fromChromeMicros(last.Int64)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history rows: %w", err)
	}
	return out, nil
}

// chromiumHistorySchema is the minimal subset Chromium needs to accept
// the database and re-derive the rest on launch.
const chromiumHistorySchema = `
	CREATE TABLE IF NOT EXISTS urls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		title TEXT,
		visit_count INTEGER DEFAULT 0,
		typed_count INTEGER DEFAULT 0,
		last_visit_time INTEGER DEFAULT 0,
		hidden INTEGER DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url INTEGER NOT NULL,
		visit_time INTEGER DEFAULT 0,
		transition INTEGER DEFAULT 0
	);
`

// WriteChromium writes entries into a Chromium History database at
// path, creating the minimal schema when absent and replacing existing
// rows.
func WriteChromium(entries []Entry, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if _, err := db.Exec(chromiumHistorySchema); err != nil {
		return fmt.Errorf("creating history schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`DELETE FROM urls`); err != nil {
		return fmt.Errorf("clearing urls: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM visits`); err != nil {
		return fmt.Errorf("clearing visits: %w", err)
	}

	for _, e := range entries {
		res, err := tx.Exec(
			`INSERT INTO urls (url, title, visit_count, last_visit_time) VALUES (?, ?, ?, ?)`,
			e.URL, e.Title, e.VisitCount, toChromeMicros(e.LastVisit))
		if err != nil {
			return fmt.Errorf("inserting url %q: %w", e.URL, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("resolving url id: %w", err)
		}
		if !e.LastVisit.IsZero() {
			if _, err := tx.Exec(
				`INSERT INTO visits (url, visit_time) VALUES (?, ?)`,
				id, toChromeMicros(e.LastVisit)); err != nil {
				return fmt.Errorf("inserting visit for %q: %w", e.URL, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history: %w", err)
	}
	return nil
}

// ReadFirefox loads history entries from a places.sqlite database.
// Bookmark-only places (never visited) are excluded; they belong to
// the bookmarks category.
func ReadFirefox(path string) ([]Entry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening places database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.Query(`
		SELECT url, title, visit_count, last_visit_date
		FROM moz_places
		WHERE url IS NOT NULL AND visit_count > 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying places: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			title  sql.NullString
			visits sql.NullInt64
			last   sql.NullInt64
		)
		if err := rows.Scan(&e.URL, &title, &visits, &last); err != nil {
			return nil, fmt.Errorf("scanning places row: %w", err)
		}
		e.Title = title.String
		e.VisitCount = int(visits.Int64)
		e.LastVisit = fromPRTime(last.Int64)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading places rows: %w", err)
	}
	return out, nil
}

// firefoxPlacesSchema mirrors the subset in the bookmarks package so
// history can be written into a places.sqlite that may not exist yet.
const firefoxPlacesSchema = `
	CREATE TABLE IF NOT EXISTS moz_places (
		id INTEGER PRIMARY KEY,
		url TEXT,
		title TEXT,
		visit_count INTEGER DEFAULT 0,
		last_visit_date INTEGER,
		guid TEXT
	);
	CREATE TABLE IF NOT EXISTS moz_bookmarks (
		id INTEGER PRIMARY KEY,
		type INTEGER,
		fk INTEGER DEFAULT NULL,
		parent INTEGER,
		position INTEGER,
		title TEXT,
		dateAdded INTEGER DEFAULT 0,
		guid TEXT
	);
	CREATE TABLE IF NOT EXISTS moz_historyvisits (
		id INTEGER PRIMARY KEY,
		place_id INTEGER,
		visit_date INTEGER,
		visit_type INTEGER DEFAULT 1
	);
`

// WriteFirefox writes history entries into a places.sqlite at path.
// Existing visited places are replaced; bookmark rows (written by the
// bookmarks package) are left alone.
func WriteFirefox(entries []Entry, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening places database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if _, err := db.Exec(firefoxPlacesSchema); err != nil {
		return fmt.Errorf("creating places schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`DELETE FROM moz_historyvisits`); err != nil {
		return fmt.Errorf("clearing visits: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM moz_places WHERE visit_count > 0 AND id NOT IN (SELECT fk FROM moz_bookmarks WHERE fk IS NOT NULL)`); err != nil {
		return fmt.Errorf("clearing visited places: %w", err)
	}

	for _, e := range entries {
		res, err := tx.Exec(
			`INSERT INTO moz_places (url, title, visit_count, last_visit_date) VALUES (?, ?, ?, ?)`,
			e.URL, e.Title, e.VisitCount, toPRTime(e.LastVisit))
		if err != nil {
			return fmt.Errorf("inserting place %q: %w", e.URL, err)
		}
		placeID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("resolving place id: %w", err)
		}
		if !e.LastVisit.IsZero() {
			if _, err := tx.Exec(
				`INSERT INTO moz_historyvisits (place_id, visit_date) VALUES (?, ?)`,
				placeID, toPRTime(e.LastVisit)); err != nil {
				return fmt.Errorf("inserting visit for %q: %w", e.URL, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history: %w", err)
	}
	return nil
}
