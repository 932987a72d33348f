package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/profilevault/profilevault/internal/archive"
	"github.com/profilevault/profilevault/internal/browser"
	"github.com/profilevault/profilevault/internal/collect"
	"github.com/profilevault/profilevault/internal/manifest"
	"github.com/profilevault/profilevault/internal/store"
)

// BackupOptions selects what to back up.
type BackupOptions struct {
	Browser browser.Kind

	// Profiles names the profiles to include; empty means every
	// discovered profile.
	Profiles []string

	// Categories limits the backup; nil means every category the
	// browser exposes.
	Categories []browser.Category

	// DataDir overrides profile discovery.
	DataDir string
}

// StartBackup launches a backup on a worker goroutine and returns its
// Handle immediately.
func (e *Engine) StartBackup(ctx context.Context, opts BackupOptions) (*Handle, error) {
	if opts.Browser == "" {
		return nil, fmt.Errorf("no browser selected")
	}

	ctx, cancel := context.WithCancel(ctx)
	h := newHandle(cancel)

	go func() {
		defer cancel()
		report, err := e.runBackup(ctx, opts, h)
		if report != nil {
			h.setBackupReport(report)
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

func (e *Engine) runBackup(ctx context.Context, opts BackupOptions, h *Handle) (*BackupReport, error) {
	start := time.Now()

	run := &store.BackupRun{
		Browser:    string(opts.Browser),
		Profiles:   strings.Join(opts.Profiles, ","),
		Categories: strings.Join(browser.CategoryNames(opts.Categories), ","),
		StartTime:  start,
		Status:     "running",
	}
	if e.store != nil {
		if err := e.store.CreateBackupRun(run); err != nil {
			e.logger.Warn("failed to record backup run", "error", err)
			run = nil
		}
	} else {
		run = nil
	}

	report, err := e.doBackup(ctx, opts, h)

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
			run.BackupID = report.BackupID
			run.Profiles = strings.Join(report.Profiles, ",")
			run.FilesCopied = report.FileCount
			run.FilesFailed = len(report.Failures)
			run.BytesWritten = report.BytesWritten
			run.ArchiveSize = report.ArchiveSize
		}
		if uerr := e.store.UpdateBackupRun(run); uerr != nil {
			e.logger.Warn("failed to update backup run", "error", uerr)
		}
	}

	return report, err
}

func (e *Engine) doBackup(ctx context.Context, opts BackupOptions, h *Handle) (*BackupReport, error) {
	start := time.Now()
	h.publish(Event{Phase: PhaseLocating})

	profiles, err := e.locateProfiles(opts.Browser, opts.Profiles, opts.DataDir)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%s: no profiles found", opts.Browser.DisplayName())
	}

	e.warnIfRunning(opts.Browser, h)

	h.publish(Event{Phase: PhaseCollecting})
	var (
		sets     []archive.EntrySet
		failures []collect.Failure
		names    []string
	)
	for _, p := range profiles {
		entries, collectFailures := collect.Collect(p, opts.Categories)
		failures = append(failures, collectFailures...)
		names = append(names, p.Name)
		if len(entries) == 0 {
			e.logger.Debug("profile has no matching files", "profile", p.Name)
			continue
		}
		sets = append(sets, archive.EntrySet{Prefix: p.Name, Root: p.Root, Entries: entries})
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("nothing to back up: no requested category has files in %s", opts.Browser.DisplayName())
	}

	dirName := fmt.Sprintf("%s_%s_%s",
		opts.Browser, sanitizeName(profiles[0].Name), start.Format("20060102_150405"))
	archiveDir := filepath.Join(e.registry.Root(), dirName)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	writer := archive.NewWriter(e.logger, e.recipients)
	archiveName := "archive.zip"
	if writer.Encrypts() {
		archiveName += archive.EncryptedSuffix
	}
	archivePath := filepath.Join(archiveDir, archiveName)

	h.publish(Event{Phase: PhaseArchiving})
	result, writeFailures, err := writer.Write(ctx, archivePath, sets, func(done, total int, bytes int64) {
		h.publish(Event{Phase: PhaseArchiving, FilesDone: done, FilesTotal: total, Bytes: bytes})
	})
	failures = append(failures, writeFailures...)
	if err != nil {
		_ = os.RemoveAll(archiveDir)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("writing archive: %w", err)
	}

	categories := opts.Categories
	if categories == nil {
		categories = opts.Browser.Categories()
	}

	m := manifest.Build(manifest.BuildParams{
		ID:         uuid.NewString(),
		Browser:    opts.Browser,
		Profiles:   names,
		CreatedAt:  time.Now(),
		SizeBytes:  result.ArchiveSize,
		FileCount:  result.FileCount,
		Categories: categories,
		Hash:       result.Hash,
		ArchiveDir: dirName,
		Encrypted:  writer.Encrypts(),
	})
	if err := e.registry.Save(m); err != nil {
		_ = os.RemoveAll(archiveDir)
		return nil, fmt.Errorf("saving manifest: %w", err)
	}

	e.logger.Info("backup complete",
		"id", m.ID, "browser", m.Browser, "files", m.FileCount,
		"size", m.SizeBytes, "failures", len(failures))

	return &BackupReport{
		BackupID:     m.ID,
		Browser:      m.Browser,
		Profiles:     names,
		Categories:   m.CategoriesIncluded,
		FileCount:    result.FileCount,
		BytesWritten: result.BytesWritten,
		ArchiveSize:  result.ArchiveSize,
		Hash:         result.Hash,
		Encrypted:    m.Encrypted,
		Duration:     time.Since(start),
		Failures:     failures,
	}, nil
}

// sanitizeName makes a profile name safe to embed in a directory name.
func sanitizeName(name string) string {
	r := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", ":", "-")
	return r.Replace(name)
}
