// Package store persists the operation history: every backup and
// restore run is recorded in a local SQLite database so `history` can
// answer what ran, when, and how it ended, even after the manifests
// themselves are deleted.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("Store initialized", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ============================================================================
// BackupRun Operations
// ============================================================================

// CreateBackupRun inserts a new BackupRun and sets its ID
func (s *Store) CreateBackupRun(run *BackupRun) error {
	const query = `
		INSERT INTO backup_runs (
			backup_id, browser, profiles, categories, start_time, end_time,
			files_copied, files_failed, bytes_written, archive_size, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.BackupID, run.Browser, run.Profiles, run.Categories,
		run.StartTime, run.EndTime, run.FilesCopied, run.FilesFailed,
		run.BytesWritten, run.ArchiveSize, run.Status, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert backup run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateBackupRun updates an existing BackupRun by ID
func (s *Store) UpdateBackupRun(run *BackupRun) error {
	const query = `
		UPDATE backup_runs SET
			backup_id = ?, browser = ?, profiles = ?, categories = ?,
			start_time = ?, end_time = ?, files_copied = ?, files_failed = ?,
			bytes_written = ?, archive_size = ?, status = ?, error_message = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.BackupID, run.Browser, run.Profiles, run.Categories,
		run.StartTime, run.EndTime, run.FilesCopied, run.FilesFailed,
		run.BytesWritten, run.ArchiveSize, run.Status, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update backup run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("backup run not found: %d", run.ID)
	}

	return nil
}

// GetBackupRun retrieves a BackupRun by ID
func (s *Store) GetBackupRun(id int64) (*BackupRun, error) {
	const query = `
		SELECT id, backup_id, browser, profiles, categories, start_time, end_time,
		       files_copied, files_failed, bytes_written, archive_size, status, error_message
		FROM backup_runs WHERE id = ?
	`

	run := &BackupRun{}
	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.BackupID, &run.Browser, &run.Profiles, &run.Categories,
		&run.StartTime, &run.EndTime, &run.FilesCopied, &run.FilesFailed,
		&run.BytesWritten, &run.ArchiveSize, &run.Status, &run.ErrorMessage,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("backup run not found: %d", id)
		}
		return nil, fmt.Errorf("failed to query backup run: %w", err)
	}

	return run, nil
}

// ListBackupRuns retrieves BackupRuns, optionally filtered by browser
func (s *Store) ListBackupRuns(browser string, limit int) ([]BackupRun, error) {
	query := `
		SELECT id, backup_id, browser, profiles, categories, start_time, end_time,
		       files_copied, files_failed, bytes_written, archive_size, status, error_message
		FROM backup_runs
	`
	var args []interface{}

	if browser != "" {
		query += " WHERE browser = ?"
		args = append(args, browser)
	}

	query += " ORDER BY start_time DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backup runs: %w", err)
	}
	defer rows.Close()

	var runs []BackupRun
	for rows.Next() {
		run := BackupRun{}
		err := rows.Scan(
			&run.ID, &run.BackupID, &run.Browser, &run.Profiles, &run.Categories,
			&run.StartTime, &run.EndTime, &run.FilesCopied, &run.FilesFailed,
			&run.BytesWritten, &run.ArchiveSize, &run.Status, &run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backup run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backup runs: %w", err)
	}

	return runs, nil
}

// ============================================================================
// RestoreRun Operations
// ============================================================================

// CreateRestoreRun inserts a new RestoreRun and sets its ID
func (s *Store) CreateRestoreRun(run *RestoreRun) error {
	const query = `
		INSERT INTO restore_runs (
			backup_id, target_browser, target_profile, cross_browser,
			start_time, end_time, files_restored, files_skipped, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.BackupID, run.TargetBrowser, run.TargetProfile, run.CrossBrowser,
		run.StartTime, run.EndTime, run.FilesRestored, run.FilesSkipped,
		run.Status, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert restore run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateRestoreRun updates an existing RestoreRun by ID
func (s *Store) UpdateRestoreRun(run *RestoreRun) error {
	const query = `
		UPDATE restore_runs SET
			backup_id = ?, target_browser = ?, target_profile = ?, cross_browser = ?,
			start_time = ?, end_time = ?, files_restored = ?, files_skipped = ?,
			status = ?, error_message = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.BackupID, run.TargetBrowser, run.TargetProfile, run.CrossBrowser,
		run.StartTime, run.EndTime, run.FilesRestored, run.FilesSkipped,
		run.Status, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update restore run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("restore run not found: %d", run.ID)
	}

	return nil
}

// ListRestoreRuns retrieves RestoreRuns, optionally filtered by backup ID
func (s *Store) ListRestoreRuns(backupID string, limit int) ([]RestoreRun, error) {
	query := `
		SELECT id, backup_id, target_browser, target_profile, cross_browser,
		       start_time, end_time, files_restored, files_skipped, status, error_message
		FROM restore_runs
	`
	var args []interface{}

	if backupID != "" {
		query += " WHERE backup_id = ?"
		args = append(args, backupID)
	}

	query += " ORDER BY start_time DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query restore runs: %w", err)
	}
	defer rows.Close()

	var runs []RestoreRun
	for rows.Next() {
		run := RestoreRun{}
		err := rows.Scan(
			&run.ID, &run.BackupID, &run.TargetBrowser, &run.TargetProfile,
			&run.CrossBrowser, &run.StartTime, &run.EndTime,
			&run.FilesRestored, &run.FilesSkipped, &run.Status, &run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restore run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restore runs: %w", err)
	}

	return runs, nil
}
