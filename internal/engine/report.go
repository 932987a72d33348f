package engine

import (
	"time"

	"github.com/profilevault/profilevault/internal/browser"
	"github.com/profilevault/profilevault/internal/collect"
)

// BackupReport summarizes a finished backup.
type BackupReport struct {
	BackupID     string
	Browser      string
	Profiles     []string
	Categories   []string
	FileCount    int
	BytesWritten int64
	ArchiveSize  int64
	Hash         string
	Encrypted    bool
	Duration     time.Duration

	// Failures lists files that existed but could not be read. Their
	// presence makes the backup partial, not failed.
	Failures []collect.Failure
}

// Partial reports whether some files were skipped.
func (r *BackupReport) Partial() bool { return len(r.Failures) > 0 }

// Category outcomes in a restore report. Partial means some of the
// category's files could not be committed; the rest were restored.
const (
	OutcomeRestored  = "restored"
	OutcomeConverted = "converted"
	OutcomePartial   = "partial"
	OutcomeSkipped   = "skipped"
)

// Reasons for skipped categories.
const (
	SkipCrossBrowser = "cross-browser-incompatible"
	SkipNotRequested = "not-requested"
	SkipNotInBackup  = "not-in-backup"
	SkipNotSupported = "not-supported-by-target"
)

// CategoryResult records what happened to one data category during a
// restore.
type CategoryResult struct {
	Category browser.Category
	Outcome  string // restored, converted, partial, skipped
	Reason   string // set when skipped
	Files    int
}

// RestoreReport summarizes a finished restore.
type RestoreReport struct {
	BackupID      string
	SourceBrowser string
	TargetBrowser string
	TargetProfile string
	CrossBrowser  bool
	Categories    []CategoryResult
	FilesRestored int
	FilesSkipped  int

	// SkippedProfiles lists backed-up profiles with no same-name match
	// in the destination. Their files stay in the archive untouched.
	SkippedProfiles []string

	// PreRestoreBackups lists the ".pre-restore" copies made of every
	// destination file that was about to be overwritten.
	PreRestoreBackups []string

	// Failures lists destination files that could not be committed.
	// Their presence makes the restore partial, not failed.
	Failures []collect.Failure

	Duration time.Duration
}

// Partial reports whether some files could not be committed.
func (r *RestoreReport) Partial() bool { return len(r.Failures) > 0 }
