package store

import "time"

// BackupRun records one backup execution
type BackupRun struct {
	ID           int64
	BackupID     string // manifest ID, empty when the run failed before a manifest existed
	Browser      string
	Profiles     string // comma-separated profile names
	Categories   string // comma-separated category names
	StartTime    time.Time
	EndTime      time.Time
	FilesCopied  int
	FilesFailed  int
	BytesWritten int64
	ArchiveSize  int64
	Status       string // "running", "completed", "partial", "failed", "cancelled"
	ErrorMessage string
}

// RestoreRun records one restore execution against an existing backup
type RestoreRun struct {
	ID            int64
	BackupID      string
	TargetBrowser string
	TargetProfile string
	CrossBrowser  bool
	StartTime     time.Time
	EndTime       time.Time
	FilesRestored int
	FilesSkipped  int
	Status        string // "running", "completed", "partial", "failed", "cancelled"
	ErrorMessage  string
}
