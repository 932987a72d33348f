// Package collect enumerates the profile files that realize a set of
// data categories, in a deterministic order suitable for hashing.
package collect

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/profilevault/profilevault/internal/browser"
)

// Entry is one file selected for backup, relative to the profile root.
type Entry struct {
	RelPath  string
	Category browser.Category
	Size     int64
}

// Failure records a file that exists but could not be collected. The
// operation carries on; failures surface in the completion report.
type Failure struct {
	RelPath string
	Reason  string
	Err     error
}

// Failure reasons, aligned with the engine's error taxonomy.
const (
	ReasonPermissionDenied = "permission-denied"
	ReasonFileLocked       = "file-locked"
	ReasonIOFailure        = "io-failure"
)

// ClassifyReason buckets a file error for reporting. A browser holding
// its databases open shows up as EBUSY/ETXTBSY on Unix and a sharing
// violation (mapped to EBUSY) on Windows.
func ClassifyReason(err error) string {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermissionDenied
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.ETXTBSY), errors.Is(err, syscall.EAGAIN):
		return ReasonFileLocked
	default:
		return ReasonIOFailure
	}
}

// Collect enumerates the files realizing the requested categories for
// one profile. A nil categories slice means every category the browser
// exposes. Missing files are silently skipped (a fresh profile may lack
// History and still be backed up for Bookmarks); unreadable files are
// returned as failures. Entries come out in a fixed order: categories
// in canonical order, a category's files in table order, directory
// contents in lexical walk order. A file shared by two selected
// categories is emitted once, under the earlier category.
func Collect(profile browser.Profile, categories []browser.Category) ([]Entry, []Failure) {
	layout := browser.LayoutFor(profile.Kind)
	if categories == nil {
		categories = profile.Kind.Categories()
	}

	selected := make(map[browser.Category]bool, len(categories))
	for _, c := range categories {
		selected[c] = true
	}

	var (
		entries  []Entry
		failures []Failure
		seen     = make(map[string]bool)
	)

	for _, cat := range browser.AllCategories() {
		if !selected[cat] {
			continue
		}
		spec, ok := layout.CategorySpec(cat)
		if !ok {
			continue
		}

		for _, name := range spec.Files {
			if seen[name] {
				continue
			}
			seen[name] = true
			e, fail, ok := probeFile(profile.Root, name, cat)
			if fail != nil {
				failures = append(failures, *fail)
			}
			if ok {
				entries = append(entries, e)
			}
		}

		for _, dir := range spec.Dirs {
			dirEntries, dirFailures := walkDir(profile.Root, dir, cat, seen)
			entries = append(entries, dirEntries...)
			failures = append(failures, dirFailures...)
		}
	}

	return entries, failures
}

// probeFile stats and open-probes one file. Returning ok=false with a
// nil failure means the file simply does not exist.
func probeFile(root, relPath string, cat browser.Category) (Entry, *Failure, bool) {
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, nil, false
		}
		return Entry{}, &Failure{RelPath: relPath, Reason: ClassifyReason(err), Err: err}, false
	}
	if info.IsDir() {
		return Entry{}, nil, false
	}

	// Open-probe so a lock held by a running browser is reported here
	// rather than detected halfway through the archive write.
	f, err := os.Open(abs)
	if err != nil {
		return Entry{}, &Failure{RelPath: relPath, Reason: ClassifyReason(err), Err: err}, false
	}
	_ = f.Close()

	return Entry{RelPath: filepath.ToSlash(relPath), Category: cat, Size: info.Size()}, nil, true
}

// walkDir emits one entry per regular file under a directory-valued
// category, preserving relative paths so restore can rebuild the tree.
func walkDir(root, dir string, cat browser.Category, seen map[string]bool) ([]Entry, []Failure) {
	base := filepath.Join(root, dir)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}

	var (
		entries  []Entry
		failures []Failure
	)
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			failures = append(failures, Failure{RelPath: rel, Reason: ClassifyReason(err), Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if seen[rel] {
			return nil
		}
		seen[rel] = true

		e, fail, ok := probeFile(root, rel, cat)
		if fail != nil {
			failures = append(failures, *fail)
		}
		if ok {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		failures = append(failures, Failure{RelPath: filepath.ToSlash(dir), Reason: ClassifyReason(err), Err: err})
	}
	return entries, failures
}
