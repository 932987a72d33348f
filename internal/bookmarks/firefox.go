package bookmarks

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Firefox keeps bookmarks in places.sqlite: moz_bookmarks rows (type 1 =
// bookmark, type 2 = folder) arranged by parent/position, joined to
// moz_places for URLs. Timestamps are PRTime: microseconds since the
// Unix epoch.

const (
	ffTypeBookmark = 1
	ffTypeFolder   = 2

	guidRoot    = "root________"
	guidMenu    = "menu________"
	guidToolbar = "toolbar_____"
	guidUnfiled = "unfiled_____"
)

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

// ParseFirefox reads bookmarks out of a places.sqlite database. The
// database is copied to a scratch file before opening: a running
// Firefox holds the original locked, and the copy keeps reads safe
// without touching the live profile.
func ParseFirefox(placesPath string) (*Tree, error) {
	scratch, cleanup, err := copyToScratch(placesPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	db, err := sql.Open("sqlite", scratch)
	if err != nil {
		return nil, fmt.Errorf("opening places database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	type row struct {
		id     int64
		kind   int
		parent int64
		title  sql.NullString
		added  sql.NullInt64
		url    sql.NullString
	}

	rows, err := db.Query(`
		SELECT b.id, b.type, b.parent, b.title, b.dateAdded, p.url
		FROM moz_bookmarks b
		LEFT JOIN moz_places p ON b.fk = p.id
		WHERE b.type IN (?, ?)
		ORDER BY b.parent, b.position`, ffTypeBookmark, ffTypeFolder)
	if err != nil {
		return nil, fmt.Errorf("querying bookmarks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	byParent := make(map[int64][]row)
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.kind, &r.parent, &r.title, &r.added, &r.url); err != nil {
			return nil, fmt.Errorf("scanning bookmark row: %w", err)
		}
		byParent[r.parent] = append(byParent[r.parent], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading bookmark rows: %w", err)
	}

	rootIDs := make(map[string]int64)
	guidRows, err := db.Query(`SELECT guid, id FROM moz_bookmarks WHERE guid IN (?, ?, ?)`,
		guidToolbar, guidMenu, guidUnfiled)
	if err != nil {
		return nil, fmt.Errorf("querying bookmark roots: %w", err)
	}
	defer func() {
		_ = guidRows.Close()
	}()
	for guidRows.Next() {
		var guid string
		var id int64
		if err := guidRows.Scan(&guid, &id); err != nil {
			return nil, fmt.Errorf("scanning root row: %w", err)
		}
		rootIDs[guid] = id
	}
	if err := guidRows.Err(); err != nil {
		return nil, fmt.Errorf("reading root rows: %w", err)
	}

	var build func(parent int64) []*Node
	build = func(parent int64) []*Node {
		var out []*Node
		for _, r := range byParent[parent] {
			n := &Node{Added: fromPRTime(r.added.Int64)}
			if r.title.Valid {
				n.Title = r.title.String
			}
			switch r.kind {
			case ffTypeFolder:
				n.Children = build(r.id)
				out = append(out, n)
			case ffTypeBookmark:
				if !r.url.Valid || r.url.String == "" {
					continue
				}
				n.URL = r.url.String
				out = append(out, n)
			}
		}
		return out
	}

	tree := &Tree{Toolbar: build(rootIDs[guidToolbar])}
	tree.Other = append(build(rootIDs[guidMenu]), build(rootIDs[guidUnfiled])...)
	return tree, nil
}

// firefoxPlacesSchema is the minimal subset of the places.sqlite schema
// needed to carry bookmarks (and history, written by the history
// package into the same database layout). Firefox rebuilds its own
// auxiliary tables and indexes on first launch.
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

// WriteFirefox writes a Tree into a places.sqlite database at path,
// creating it (with the minimal schema) when absent and replacing any
// bookmark rows already there. Used when restoring a Chromium backup
// into a Firefox profile.
func WriteFirefox(tree *Tree, path string) error {
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

	if _, err := tx.Exec(`DELETE FROM moz_bookmarks`); err != nil {
		return fmt.Errorf("clearing bookmarks: %w", err)
	}

	roots := []struct {
		id     int64
		parent int64
		title  string
		guid   string
	}{
		{1, 0, "", guidRoot},
		{2, 1, "menu", guidMenu},
		{3, 1, "toolbar", guidToolbar},
		{5, 1, "unfiled", guidUnfiled},
	}
	for i, r := range roots {
		if _, err := tx.Exec(
			`INSERT INTO moz_bookmarks (id, type, parent, position, title, guid) VALUES (?, ?, ?, ?, ?, ?)`,
			r.id, ffTypeFolder, r.parent, i, r.title, r.guid); err != nil {
			return fmt.Errorf("inserting root folder: %w", err)
		}
	}

	w := &firefoxWriter{tx: tx, nextBookmarkID: 6}
	if err := w.insertAll(tree.Toolbar, 3); err != nil {
		return err
	}
	if err := w.insertAll(tree.Other, 5); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bookmarks: %w", err)
	}
	return nil
}

type firefoxWriter struct {
	tx             *sql.Tx
	nextBookmarkID int64
}

func (w *firefoxWriter) insertAll(nodes []*Node, parent int64) error {
	for pos, n := range nodes {
		id := w.nextBookmarkID
		w.nextBookmarkID++

		if n.IsFolder() {
			if _, err := w.tx.Exec(
				`INSERT INTO moz_bookmarks (id, type, parent, position, title, dateAdded) VALUES (?, ?, ?, ?, ?, ?)`,
				id, ffTypeFolder, parent, pos, n.Title, toPRTime(n.Added)); err != nil {
				return fmt.Errorf("inserting folder %q: %w", n.Title, err)
			}
			if err := w.insertAll(n.Children, id); err != nil {
				return err
			}
			continue
		}

		res, err := w.tx.Exec(
			`INSERT INTO moz_places (url, title) VALUES (?, ?)`, n.URL, n.Title)
		if err != nil {
			return fmt.Errorf("inserting place %q: %w", n.URL, err)
		}
		placeID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("resolving place id: %w", err)
		}
		if _, err := w.tx.Exec(
			`INSERT INTO moz_bookmarks (id, type, fk, parent, position, title, dateAdded) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, ffTypeBookmark, placeID, parent, pos, n.Title, toPRTime(n.Added)); err != nil {
			return fmt.Errorf("inserting bookmark %q: %w", n.Title, err)
		}
	}
	return nil
}

// copyToScratch duplicates a SQLite database into the temp dir so it
// can be opened while the browser holds the original.
func copyToScratch(path string) (string, func(), error) {
	src, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer func() {
		_ = src.Close()
	}()

	tmp, err := os.CreateTemp("", "places-*.sqlite")
	if err != nil {
		return "", nil, fmt.Errorf("creating scratch database: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("copying database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing scratch database: %w", err)
	}
	return tmp.Name(), cleanup, nil
}
