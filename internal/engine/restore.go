package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/profilevault/profilevault/internal/archive"
	"github.com/profilevault/profilevault/internal/bookmarks"
	"github.com/profilevault/profilevault/internal/browser"
	"github.com/profilevault/profilevault/internal/collect"
	"github.com/profilevault/profilevault/internal/history"
	"github.com/profilevault/profilevault/internal/manifest"
	"github.com/profilevault/profilevault/internal/store"
)

// PreRestoreSuffix marks the safety copy a restore leaves next to every
// destination file it overwrites.
const PreRestoreSuffix = ".pre-restore"

// RestoreOptions selects what to restore and where.
type RestoreOptions struct {
	BackupID string

	// TargetBrowser restores into a different browser; empty restores
	// into the backup's own browser.
	TargetBrowser browser.Kind

	// TargetProfile restores into a named profile. Only valid for
	// single-profile backups; empty maps profiles by name.
	TargetProfile string

	// Categories limits what is restored; nil restores every category
	// the backup contains.
	Categories []browser.Category

	// DataDir overrides target profile discovery.
	DataDir string
}

// StartRestore launches a restore on a worker goroutine and returns its
// Handle immediately. The archive is verified against its manifest hash
// before any destination file is touched.
func (e *Engine) StartRestore(ctx context.Context, opts RestoreOptions) (*Handle, error) {
	if opts.BackupID == "" {
		return nil, fmt.Errorf("no backup selected")
	}

	ctx, cancel := context.WithCancel(ctx)
	h := newHandle(cancel)

	go func() {
		defer cancel()
		report, err := e.runRestore(ctx, opts, h)
		if report != nil {
			h.setRestoreReport(report)
		}
		switch {
		case errors.Is(err, context.Canceled):
			h.publish(Event{Phase: PhaseCancelled})
		case err != nil:
			h.publish(Event{Phase: PhaseFailed, Message: err.Error()})
		default:
			h.publish(Event{Phase: PhaseComplete})
		}
		h.finish(err)
	}()

	return h, nil
}

func (e *Engine) runRestore(ctx context.Context, opts RestoreOptions, h *Handle) (*RestoreReport, error) {
	start := time.Now()

	run := &store.RestoreRun{
		BackupID:      opts.BackupID,
		TargetBrowser: string(opts.TargetBrowser),
		TargetProfile: opts.TargetProfile,
		StartTime:     start,
		Status:        "running",
	}
	if e.store != nil {
		if err := e.store.CreateRestoreRun(run); err != nil {
			e.logger.Warn("failed to record restore run", "error", err)
			run = nil
		}
	} else {
		run = nil
	}

	report, err := e.doRestore(ctx, opts, h, start)

	if run != nil {
		run.EndTime = time.Now()
		switch {
		case errors.Is(err, context.Canceled):
			run.Status = "cancelled"
		case err != nil:
			run.Status = "failed"
			run.ErrorMessage = err.Error()
		case report.Partial():
			run.Status = "partial"
		default:
			run.Status = "completed"
		}
		if report != nil {
			run.TargetBrowser = report.TargetBrowser
			run.TargetProfile = report.TargetProfile
			run.CrossBrowser = report.CrossBrowser
			run.FilesRestored = report.FilesRestored
			run.FilesSkipped = report.FilesSkipped
		}
		if uerr := e.store.UpdateRestoreRun(run); uerr != nil {
			e.logger.Warn("failed to update restore run", "error", uerr)
		}
	}

	return report, err
}

func (e *Engine) doRestore(ctx context.Context, opts RestoreOptions, h *Handle, start time.Time) (*RestoreReport, error) {
	m, err := e.registry.Find(opts.BackupID)
	if err != nil {
		return nil, err
	}

	srcKind, err := m.Kind()
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", m.ID, err)
	}
	targetKind := opts.TargetBrowser
	if targetKind == "" {
		targetKind = srcKind
	}
	crossBrowser := targetKind != srcKind
	crossFormat := srcKind.ChromiumBased() != targetKind.ChromiumBased()

	if opts.TargetProfile != "" && len(m.Profiles) > 1 {
		return nil, fmt.Errorf("backup %s contains %d profiles; a target profile can only be chosen for single-profile backups", m.ID, len(m.Profiles))
	}

	// Gate 1: the archive must match its manifest before anything in the
	// destination profile is touched.
	h.publish(Event{Phase: PhaseVerifying})
	archivePath := e.registry.ArchivePath(m)
	got, err := archive.ComputeHash(archivePath, e.identities)
	if err != nil {
		return nil, fmt.Errorf("hashing archive: %w", err)
	}
	if got != m.IntegrityHash {
		return nil, fmt.Errorf("backup %s: %w (manifest %s, archive %s)", m.ID, ErrCorruptBackup, m.IntegrityHash, got)
	}

	// Gate 2: resolve every destination profile up front.
	destProfiles, err := e.locateProfiles(targetKind, nil, opts.DataDir)
	if err != nil {
		return nil, err
	}
	pairs, unmatched, err := mapProfiles(m, destProfiles, opts.TargetProfile)
	if err != nil {
		return nil, err
	}
	for _, name := range unmatched {
		e.logger.Warn("no destination profile matches; skipping",
			"profile", name, "target", targetKind)
	}

	e.warnIfRunning(targetKind, h)

	wanted, err := requestedCategories(m, opts.Categories)
	if err != nil {
		return nil, err
	}

	// Gate 3: extract to staging, never straight into the profile.
	h.publish(Event{Phase: PhaseStaging})
	stage, err := os.MkdirTemp("", "profilevault-stage-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(stage)
	}()
	if _, err := archive.ExtractTo(archivePath, stage, e.identities); err != nil {
		return nil, fmt.Errorf("extracting archive: %w", err)
	}

	report := &RestoreReport{
		BackupID:        m.ID,
		SourceBrowser:   string(srcKind),
		TargetBrowser:   string(targetKind),
		TargetProfile:   opts.TargetProfile,
		CrossBrowser:    crossBrowser,
		SkippedProfiles: unmatched,
	}

	rc := &restoreContext{
		engine:       e,
		handle:       h,
		report:       report,
		srcKind:      srcKind,
		targetKind:   targetKind,
		crossBrowser: crossBrowser,
		crossFormat:  crossFormat,
		wanted:       wanted,
		preserved:    make(map[string]bool),
	}

	h.publish(Event{Phase: PhaseCommitting})
	for _, pair := range pairs {
		if err := rc.restoreProfile(ctx, filepath.Join(stage, pair.srcName), pair.dest); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start)
	e.logger.Info("restore complete",
		"id", m.ID, "target", targetKind, "restored", report.FilesRestored,
		"skipped", report.FilesSkipped, "failed", len(report.Failures),
		"cross_browser", crossBrowser)
	return report, nil
}

// profilePair binds a backed-up profile name to the destination profile
// it restores into.
type profilePair struct {
	srcName string
	dest    browser.Profile
}

// mapProfiles resolves destinations: an explicit target profile first,
// then same-name matching, then the only profile there is. Backed-up
// profiles with no match are skipped and returned by name; the restore
// fails only when nothing matches at all.
func mapProfiles(m *manifest.Manifest, destProfiles []browser.Profile, targetProfile string) ([]profilePair, []string, error) {
	if len(destProfiles) == 0 {
		return nil, nil, fmt.Errorf("no destination profiles found")
	}

	byName := make(map[string]browser.Profile, len(destProfiles))
	for _, p := range destProfiles {
		byName[p.Name] = p
	}

	if targetProfile != "" {
		dest, ok := byName[targetProfile]
		if !ok {
			return nil, nil, fmt.Errorf("no profile %q in destination (found: %s)", targetProfile, profileNames(destProfiles))
		}
		return []profilePair{{srcName: m.Profiles[0], dest: dest}}, nil, nil
	}

	var pairs []profilePair
	var unmatched []string
	for _, name := range m.Profiles {
		dest, ok := byName[name]
		if !ok {
			if len(m.Profiles) == 1 && len(destProfiles) == 1 {
				dest = destProfiles[0]
			} else {
				unmatched = append(unmatched, name)
				continue
			}
		}
		pairs = append(pairs, profilePair{srcName: name, dest: dest})
	}
	if len(pairs) == 0 {
		return nil, nil, fmt.Errorf("no backed-up profile (%s) matches a destination profile (found: %s); use an explicit target profile",
			strings.Join(m.Profiles, ", "), profileNames(destProfiles))
	}
	return pairs, unmatched, nil
}

// requestedCategories intersects the caller's selection with what the
// backup actually contains. Nil selection means everything in the
// backup; selecting a category the backup lacks is an error rather
// than a silent no-op.
func requestedCategories(m *manifest.Manifest, selection []browser.Category) (map[browser.Category]bool, error) {
	inBackup := make(map[browser.Category]bool, len(m.CategoriesIncluded))
	for _, name := range m.CategoriesIncluded {
		c, err := browser.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", m.ID, err)
		}
		inBackup[c] = true
	}

	if selection == nil {
		return inBackup, nil
	}

	wanted := make(map[browser.Category]bool, len(selection))
	for _, c := range selection {
		if !inBackup[c] {
			return nil, fmt.Errorf("backup %s does not contain category %q", m.ID, c)
		}
		wanted[c] = true
	}
	return wanted, nil
}

// restoreContext carries the per-restore state shared by profile and
// category steps.
type restoreContext struct {
	engine       *Engine
	handle       *Handle
	report       *RestoreReport
	srcKind      browser.Kind
	targetKind   browser.Kind
	crossBrowser bool
	crossFormat  bool
	wanted       map[browser.Category]bool

	// preserved tracks destinations whose pre-restore state has already
	// been decided, so a later step in the same restore never snapshots
	// a file this restore has itself written.
	preserved map[string]bool
}

// restoreProfile applies one staged profile to its destination.
func (rc *restoreContext) restoreProfile(ctx context.Context, stagedRoot string, dest browser.Profile) error {
	srcLayout := browser.LayoutFor(rc.srcKind)

	// Group staged files by the category that owns them.
	byCategory := make(map[browser.Category][]string)
	err := filepath.WalkDir(stagedRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(stagedRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		cat, ok := srcLayout.CategoryFor(rel)
		if !ok {
			rc.engine.logger.Debug("staged file matches no category", "path", rel)
			return nil
		}
		byCategory[cat] = append(byCategory[cat], rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			// The profile contributed no files to the archive.
			return nil
		}
		return fmt.Errorf("scanning staged files: %w", err)
	}

	for _, cat := range browser.AllCategories() {
		files, ok := byCategory[cat]
		if !ok {
			continue
		}
		// Firefox's places.sqlite is attributed to bookmarks but also
		// carries history, so crossing into Chromium it still matters
		// when only history was requested.
		wantedHere := rc.wanted[cat] ||
			(rc.crossFormat && rc.srcKind == browser.Firefox && cat == browser.Bookmarks && rc.wanted[browser.History])
		if !wantedHere {
			rc.addCategory(CategoryResult{Category: cat, Outcome: OutcomeSkipped, Reason: SkipNotRequested, Files: len(files)})
			rc.report.FilesSkipped += len(files)
			continue
		}
		if err := rc.restoreCategory(ctx, cat, files, stagedRoot, dest); err != nil {
			return err
		}
	}
	return nil
}

func (rc *restoreContext) restoreCategory(ctx context.Context, cat browser.Category, files []string, stagedRoot string, dest browser.Profile) error {
	if rc.crossBrowser {
		// Only bookmarks and history cross a browser boundary. The rest
		// is install-specific even between Chromium siblings: cookies and
		// credentials are sealed with the source browser's OS key, and
		// extension state refers to the source's install IDs.
		if !cat.Portable() {
			rc.addCategory(CategoryResult{Category: cat, Outcome: OutcomeSkipped, Reason: SkipCrossBrowser, Files: len(files)})
			rc.report.FilesSkipped += len(files)
			return nil
		}
		if rc.crossFormat {
			if err := rc.convertCategory(ctx, cat, stagedRoot, dest, len(files)); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				rc.recordFailure(string(cat), err)
				rc.addCategory(CategoryResult{Category: cat, Outcome: OutcomePartial})
			}
			return nil
		}
		// Same family, different browser: the files are byte-compatible
		// and copy over verbatim.
	}

	targetLayout := browser.LayoutFor(rc.targetKind)
	if _, ok := targetLayout.CategorySpec(cat); !ok {
		rc.addCategory(CategoryResult{Category: cat, Outcome: OutcomeSkipped, Reason: SkipNotSupported, Files: len(files)})
		rc.report.FilesSkipped += len(files)
		return nil
	}

	restored, failed := 0, 0
	for _, rel := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		destPath := filepath.Join(dest.Root, filepath.FromSlash(rel))
		if err := rc.commitFile(filepath.Join(stagedRoot, filepath.FromSlash(rel)), destPath); err != nil {
			rc.recordFailure(rel, err)
			failed++
			continue
		}
		restored++
		rc.handle.publish(Event{Phase: PhaseCommitting, Path: rel, FilesDone: rc.report.FilesRestored + restored})
	}

	rc.report.FilesRestored += restored
	outcome := OutcomeRestored
	if failed > 0 {
		outcome = OutcomePartial
	}
	rc.addCategory(CategoryResult{Category: cat, Outcome: outcome, Files: restored})
	return nil
}

// recordFailure keeps the restore going past one bad destination file;
// the report carries the details and marks the run partial.
func (rc *restoreContext) recordFailure(relPath string, err error) {
	rc.engine.logger.Warn("failed to restore file", "path", relPath, "error", err)
	rc.report.Failures = append(rc.report.Failures, collect.Failure{
		RelPath: relPath,
		Reason:  collect.ClassifyReason(err),
		Err:     err,
	})
}

// convertCategory moves bookmarks or history across the Chromium and
// Firefox format boundary through the neutral in-memory model.
func (rc *restoreContext) convertCategory(ctx context.Context, cat browser.Category, stagedRoot string, dest browser.Profile, fileCount int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	switch {
	case rc.srcKind.ChromiumBased() && rc.targetKind == browser.Firefox:
		if err := rc.convertChromiumToFirefox(cat, stagedRoot, dest); err != nil {
			return fmt.Errorf("converting %s: %w", cat, err)
		}
		rc.report.FilesRestored++
		rc.addCategory(CategoryResult{Category: cat, Outcome: OutcomeConverted, Files: fileCount})
		rc.handle.publish(Event{Phase: PhaseCommitting, Path: string(cat), Message: "converted"})
		return nil
	case rc.srcKind == browser.Firefox && rc.targetKind.ChromiumBased():
		rc.convertFirefoxPlaces(stagedRoot, dest, fileCount)
		return nil
	default:
		return fmt.Errorf("no conversion path from %s to %s", rc.srcKind, rc.targetKind)
	}
}

func (rc *restoreContext) convertChromiumToFirefox(cat browser.Category, stagedRoot string, dest browser.Profile) error {
	placesPath := filepath.Join(dest.Root, "places.sqlite")
	if err := rc.backupDestination(placesPath); err != nil {
		return err
	}

	switch cat {
	case browser.Bookmarks:
		tree, err := bookmarks.ParseChromium(filepath.Join(stagedRoot, "Bookmarks"))
		if err != nil {
			return err
		}
		return bookmarks.WriteFirefox(tree, placesPath)
	case browser.History:
		entries, err := history.ReadChromium(filepath.Join(stagedRoot, "History"))
		if err != nil {
			return err
		}
		return history.WriteFirefox(entries, placesPath)
	}
	return fmt.Errorf("category %s is not portable", cat)
}

// convertFirefoxPlaces fans the staged places.sqlite out into the
// Chromium files for whichever of bookmarks and history were requested.
// The two conversions are independent: one failing does not stop the
// other, it is recorded as a failure instead.
func (rc *restoreContext) convertFirefoxPlaces(stagedRoot string, dest browser.Profile, fileCount int) {
	stagedPlaces := filepath.Join(stagedRoot, "places.sqlite")

	if rc.wanted[browser.Bookmarks] {
		if err := rc.placesToChromiumBookmarks(stagedPlaces, dest); err != nil {
			rc.recordFailure(string(browser.Bookmarks), err)
			rc.addCategory(CategoryResult{Category: browser.Bookmarks, Outcome: OutcomePartial})
		} else {
			rc.report.FilesRestored++
			rc.addCategory(CategoryResult{Category: browser.Bookmarks, Outcome: OutcomeConverted, Files: fileCount})
			rc.handle.publish(Event{Phase: PhaseCommitting, Path: string(browser.Bookmarks), Message: "converted"})
		}
	}

	if rc.wanted[browser.History] {
		if err := rc.placesToChromiumHistory(stagedPlaces, dest); err != nil {
			rc.recordFailure(string(browser.History), err)
			rc.addCategory(CategoryResult{Category: browser.History, Outcome: OutcomePartial})
		} else {
			rc.report.FilesRestored++
			rc.addCategory(CategoryResult{Category: browser.History, Outcome: OutcomeConverted, Files: fileCount})
			rc.handle.publish(Event{Phase: PhaseCommitting, Path: string(browser.History), Message: "converted"})
		}
	}
}

func (rc *restoreContext) placesToChromiumBookmarks(stagedPlaces string, dest browser.Profile) error {
	tree, err := bookmarks.ParseFirefox(stagedPlaces)
	if err != nil {
		return fmt.Errorf("converting bookmarks: %w", err)
	}
	destPath := filepath.Join(dest.Root, "Bookmarks")
	if err := rc.backupDestination(destPath); err != nil {
		return err
	}
	if err := bookmarks.WriteChromium(tree, destPath); err != nil {
		return fmt.Errorf("converting bookmarks: %w", err)
	}
	return nil
}

func (rc *restoreContext) placesToChromiumHistory(stagedPlaces string, dest browser.Profile) error {
	entries, err := history.ReadFirefox(stagedPlaces)
	if err != nil {
		return fmt.Errorf("converting history: %w", err)
	}
	historyPath := filepath.Join(dest.Root, "History")
	if err := rc.backupDestination(historyPath); err != nil {
		return err
	}
	if err := history.WriteChromium(entries, historyPath); err != nil {
		return fmt.Errorf("converting history: %w", err)
	}
	return nil
}

// commitFile replaces one destination file, leaving a ".pre-restore"
// copy of whatever was there before.
func (rc *restoreContext) commitFile(stagedPath, destPath string) error {
	if err := rc.backupDestination(destPath); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	return copyFile(stagedPath, destPath)
}

// backupDestination copies an about-to-be-overwritten file to a
// ".pre-restore" sibling. Missing destinations need no copy.
func (rc *restoreContext) backupDestination(destPath string) error {
	if rc.preserved[destPath] {
		return nil
	}
	rc.preserved[destPath] = true

	if _, err := os.Stat(destPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking destination: %w", err)
	}

	bak := destPath + PreRestoreSuffix
	if err := copyFile(destPath, bak); err != nil {
		return fmt.Errorf("preserving existing file: %w", err)
	}
	rc.report.PreRestoreBackups = append(rc.report.PreRestoreBackups, bak)
	return nil
}

func (rc *restoreContext) addCategory(cr CategoryResult) {
	rc.report.Categories = append(rc.report.Categories, cr)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
