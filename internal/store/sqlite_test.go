package store

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

// newTestStore creates an in-memory SQLite store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ============================================================================
// Store Lifecycle Tests
// ============================================================================

func TestNew(t *testing.T) {
	store, err := New(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Expected db to be initialized")
	}

	if store.logger == nil {
		t.Error("Expected logger to be initialized")
	}
}

func TestClose(t *testing.T) {
	store, err := New(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	err = store.Close()
	if err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Verify the connection is closed by trying to use it
	_, err = store.ListBackupRuns("", 0)
	if err == nil {
		t.Error("Expected error when using closed store, but got nil")
	}
}

// ============================================================================
// BackupRun CRUD Tests
// ============================================================================

func TestCreateBackupRun(t *testing.T) {
	store := newTestStore(t)

	run := &BackupRun{
		BackupID:     "0c9d2a6e-7b41-4f6e-9a3d-1f2e3d4c5b6a",
		Browser:      "chrome",
		Profiles:     "Default,Profile 1",
		Categories:   "bookmarks,history",
		StartTime:    time.Now(),
		FilesCopied:  12,
		FilesFailed:  1,
		BytesWritten: 1024000,
		ArchiveSize:  512000,
		Status:       "partial",
	}

	err := store.CreateBackupRun(run)
	if err != nil {
		t.Fatalf("CreateBackupRun() failed: %v", err)
	}

	if run.ID == 0 {
		t.Error("Expected ID to be set after CreateBackupRun")
	}

	// Verify the record was created
	retrieved, err := store.GetBackupRun(run.ID)
	if err != nil {
		t.Fatalf("GetBackupRun() failed: %v", err)
	}

	if retrieved.Browser != run.Browser {
		t.Errorf("Browser mismatch: got %q, want %q", retrieved.Browser, run.Browser)
	}

	if retrieved.FilesCopied != run.FilesCopied {
		t.Errorf("FilesCopied mismatch: got %d, want %d", retrieved.FilesCopied, run.FilesCopied)
	}

	if retrieved.Status != run.Status {
		t.Errorf("Status mismatch: got %q, want %q", retrieved.Status, run.Status)
	}
}

func TestUpdateBackupRun(t *testing.T) {
	store := newTestStore(t)

	run := &BackupRun{
		Browser:   "firefox",
		Profiles:  "default-release",
		StartTime: time.Now(),
		Status:    "running",
	}

	err := store.CreateBackupRun(run)
	if err != nil {
		t.Fatalf("CreateBackupRun() failed: %v", err)
	}

	originalID := run.ID

	// Update it as the run finishes
	run.BackupID = "4c1a2b3d-0000-4111-8222-333344445555"
	run.Status = "completed"
	run.FilesCopied = 7
	run.EndTime = time.Now()

	err = store.UpdateBackupRun(run)
	if err != nil {
		t.Fatalf("UpdateBackupRun() failed: %v", err)
	}

	// Verify changes persisted
	retrieved, err := store.GetBackupRun(originalID)
	if err != nil {
		t.Fatalf("GetBackupRun() failed: %v", err)
	}

	if retrieved.Status != "completed" {
		t.Errorf("Status not updated: got %q, want %q", retrieved.Status, "completed")
	}

	if retrieved.FilesCopied != 7 {
		t.Errorf("FilesCopied not updated: got %d, want %d", retrieved.FilesCopied, 7)
	}

	if retrieved.BackupID != run.BackupID {
		t.Errorf("BackupID not updated: got %q, want %q", retrieved.BackupID, run.BackupID)
	}
}

func TestUpdateBackupRunNotFound(t *testing.T) {
	store := newTestStore(t)

	run := &BackupRun{
		ID:      99999,
		Browser: "chrome",
		Status:  "completed",
	}

	err := store.UpdateBackupRun(run)
	if err == nil {
		t.Error("Expected error when updating non-existent BackupRun")
	}
}

func TestGetBackupRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetBackupRun(99999)
	if err == nil {
		t.Error("Expected error when getting non-existent BackupRun")
	}
}

func TestListBackupRuns(t *testing.T) {
	store := newTestStore(t)

	// Create backup runs for different browsers
	browsers := []string{"chrome", "firefox", "chrome"}

	for i, browser := range browsers {
		run := &BackupRun{
			Browser:   browser,
			Profiles:  "Default",
			StartTime: time.Now().Add(time.Duration(i) * time.Hour),
			Status:    "completed",
		}

		err := store.CreateBackupRun(run)
		if err != nil {
			t.Fatalf("CreateBackupRun() failed: %v", err)
		}
	}

	// List all runs
	allRuns, err := store.ListBackupRuns("", 0)
	if err != nil {
		t.Fatalf("ListBackupRuns() failed: %v", err)
	}

	if len(allRuns) != 3 {
		t.Errorf("Expected 3 runs, got %d", len(allRuns))
	}

	// List runs for chrome
	chromeRuns, err := store.ListBackupRuns("chrome", 0)
	if err != nil {
		t.Fatalf("ListBackupRuns(chrome) failed: %v", err)
	}

	if len(chromeRuns) != 2 {
		t.Errorf("Expected 2 runs for chrome, got %d", len(chromeRuns))
	}

	for _, run := range chromeRuns {
		if run.Browser != "chrome" {
			t.Errorf("Expected chrome, got %q", run.Browser)
		}
	}
}

func TestListBackupRunsOrdering(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	times := []time.Time{
		now.Add(-2 * time.Hour),
		now.Add(-1 * time.Hour),
		now,
	}

	for _, startTime := range times {
		run := &BackupRun{
			Browser:   "brave",
			StartTime: startTime,
			Status:    "completed",
		}

		err := store.CreateBackupRun(run)
		if err != nil {
			t.Fatalf("CreateBackupRun() failed: %v", err)
		}
	}

	runs, err := store.ListBackupRuns("brave", 0)
	if err != nil {
		t.Fatalf("ListBackupRuns() failed: %v", err)
	}

	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}

	// Check descending order by start_time
	if runs[0].StartTime.Before(runs[1].StartTime) {
		t.Error("Expected runs to be ordered by start_time DESC")
	}

	if runs[1].StartTime.Before(runs[2].StartTime) {
		t.Error("Expected runs to be ordered by start_time DESC")
	}
}

func TestListBackupRunsWithLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		run := &BackupRun{
			Browser:   "edge",
			StartTime: time.Now().Add(-time.Duration(i) * time.Hour),
			Status:    "completed",
		}

		err := store.CreateBackupRun(run)
		if err != nil {
			t.Fatalf("CreateBackupRun() failed: %v", err)
		}
	}

	runs, err := store.ListBackupRuns("", 2)
	if err != nil {
		t.Fatalf("ListBackupRuns() with limit failed: %v", err)
	}

	if len(runs) != 2 {
		t.Errorf("Expected 2 runs with limit=2, got %d", len(runs))
	}
}

// ============================================================================
// RestoreRun CRUD Tests
// ============================================================================

func TestCreateRestoreRun(t *testing.T) {
	store := newTestStore(t)

	run := &RestoreRun{
		BackupID:      "0c9d2a6e-7b41-4f6e-9a3d-1f2e3d4c5b6a",
		TargetBrowser: "brave",
		TargetProfile: "Default",
		CrossBrowser:  true,
		StartTime:     time.Now(),
		FilesRestored: 4,
		FilesSkipped:  3,
		Status:        "completed",
	}

	err := store.CreateRestoreRun(run)
	if err != nil {
		t.Fatalf("CreateRestoreRun() failed: %v", err)
	}

	if run.ID == 0 {
		t.Error("Expected ID to be set after CreateRestoreRun")
	}

	runs, err := store.ListRestoreRuns(run.BackupID, 0)
	if err != nil {
		t.Fatalf("ListRestoreRuns() failed: %v", err)
	}

	if len(runs) != 1 {
		t.Fatalf("Expected 1 restore run, got %d", len(runs))
	}

	if runs[0].TargetBrowser != run.TargetBrowser {
		t.Errorf("TargetBrowser mismatch: got %q, want %q", runs[0].TargetBrowser, run.TargetBrowser)
	}

	if !runs[0].CrossBrowser {
		t.Error("Expected CrossBrowser to persist")
	}
}

func TestUpdateRestoreRun(t *testing.T) {
	store := newTestStore(t)

	run := &RestoreRun{
		BackupID:      "some-backup",
		TargetBrowser: "chrome",
		TargetProfile: "Default",
		StartTime:     time.Now(),
		Status:        "running",
	}

	err := store.CreateRestoreRun(run)
	if err != nil {
		t.Fatalf("CreateRestoreRun() failed: %v", err)
	}

	run.Status = "failed"
	run.ErrorMessage = "integrity hash mismatch"
	run.EndTime = time.Now()

	err = store.UpdateRestoreRun(run)
	if err != nil {
		t.Fatalf("UpdateRestoreRun() failed: %v", err)
	}

	runs, err := store.ListRestoreRuns("some-backup", 0)
	if err != nil {
		t.Fatalf("ListRestoreRuns() failed: %v", err)
	}

	if len(runs) != 1 {
		t.Fatalf("Expected 1 restore run, got %d", len(runs))
	}

	if runs[0].Status != "failed" {
		t.Errorf("Status not updated: got %q, want %q", runs[0].Status, "failed")
	}

	if runs[0].ErrorMessage != "integrity hash mismatch" {
		t.Errorf("ErrorMessage not updated: got %q", runs[0].ErrorMessage)
	}
}

func TestUpdateRestoreRunNotFound(t *testing.T) {
	store := newTestStore(t)

	run := &RestoreRun{
		ID:            99999,
		BackupID:      "nope",
		TargetBrowser: "chrome",
		Status:        "completed",
	}

	err := store.UpdateRestoreRun(run)
	if err == nil {
		t.Error("Expected error when updating non-existent RestoreRun")
	}
}

func TestListRestoreRunsFilterAndLimit(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	backups := []string{"backup-a", "backup-a", "backup-b"}

	for i, id := range backups {
		run := &RestoreRun{
			BackupID:      id,
			TargetBrowser: "firefox",
			StartTime:     now.Add(-time.Duration(i) * time.Hour),
			Status:        "completed",
		}

		err := store.CreateRestoreRun(run)
		if err != nil {
			t.Fatalf("CreateRestoreRun() failed: %v", err)
		}
	}

	aRuns, err := store.ListRestoreRuns("backup-a", 0)
	if err != nil {
		t.Fatalf("ListRestoreRuns(backup-a) failed: %v", err)
	}

	if len(aRuns) != 2 {
		t.Errorf("Expected 2 runs for backup-a, got %d", len(aRuns))
	}

	// Newest first
	if aRuns[0].StartTime.Before(aRuns[1].StartTime) {
		t.Error("Expected restore runs ordered by start_time DESC")
	}

	limited, err := store.ListRestoreRuns("", 1)
	if err != nil {
		t.Fatalf("ListRestoreRuns() with limit failed: %v", err)
	}

	if len(limited) != 1 {
		t.Errorf("Expected 1 run with limit=1, got %d", len(limited))
	}
}
