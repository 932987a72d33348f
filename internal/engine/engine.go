// Package engine orchestrates backup, restore, verification, and
// bookmark export across the supported browser families. Long
// operations run on a worker goroutine behind a Handle; everything
// else is synchronous.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/profilevault/profilevault/internal/archive"
	"github.com/profilevault/profilevault/internal/browser"
	"github.com/profilevault/profilevault/internal/config"
	"github.com/profilevault/profilevault/internal/manifest"
	"github.com/profilevault/profilevault/internal/registry"
	"github.com/profilevault/profilevault/internal/store"
)

// ErrNotFound reports an unknown backup ID.
var ErrNotFound = registry.ErrNotFound

// ErrCorruptBackup reports an archive whose recomputed content hash no
// longer matches its manifest. Restores fail on it before touching the
// destination profile.
var ErrCorruptBackup = errors.New("backup failed integrity verification")

// Engine ties discovery, collection, archiving, and the manifest
// registry together.
type Engine struct {
	cfg        *config.Config
	registry   *registry.Registry
	store      *store.Store // nil disables run history
	logger     *slog.Logger
	recipients []age.Recipient
	identities []age.Identity
}

// New builds an Engine over the configured backup root. The store may
// be nil; run history is then skipped.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Engine, error) {
	reg, err := registry.New(cfg.BackupRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("opening backup registry: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		registry: reg,
		store:    st,
		logger:   logger,
	}

	if cfg.Encryption.RecipientsFile != "" {
		f, err := os.Open(cfg.Encryption.RecipientsFile)
		if err != nil {
			return nil, fmt.Errorf("opening recipients file: %w", err)
		}
		recipients, err := age.ParseRecipients(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing recipients file: %w", err)
		}
		e.recipients = recipients
	}
	if cfg.Encryption.IdentityFile != "" {
		f, err := os.Open(cfg.Encryption.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("opening identity file: %w", err)
		}
		identities, err := age.ParseIdentities(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing identity file: %w", err)
		}
		e.identities = identities
	}

	return e, nil
}

// ListBackups returns all known backups, newest first.
func (e *Engine) ListBackups() ([]*manifest.Manifest, error) {
	return e.registry.List()
}

// FindBackup returns a single backup's manifest, or ErrNotFound.
func (e *Engine) FindBackup(id string) (*manifest.Manifest, error) {
	return e.registry.Find(id)
}

// DeleteBackup removes a backup's manifest and archive.
func (e *Engine) DeleteBackup(id string) error {
	return e.registry.Delete(id)
}

// ListProfiles discovers a browser's profiles. An empty dataDirOverride
// falls back to the configured or platform-default data directory.
func (e *Engine) ListProfiles(k browser.Kind, dataDirOverride string) ([]browser.Profile, error) {
	dir := e.dataDir(k, dataDirOverride)
	if dir == "" {
		return nil, nil
	}
	return browser.LayoutFor(k).Locate(dir)
}

// Verify recomputes a backup's content hash and compares it against the
// manifest. A match marks the backup restore-tested; a mismatch returns
// ErrCorruptBackup.
func (e *Engine) Verify(id string) (*manifest.Manifest, error) {
	m, err := e.registry.Find(id)
	if err != nil {
		return nil, err
	}

	got, err := archive.ComputeHash(e.registry.ArchivePath(m), e.identities)
	if err != nil {
		return m, fmt.Errorf("hashing archive: %w", err)
	}
	if got != m.IntegrityHash {
		return m, fmt.Errorf("backup %s: %w (manifest %s, archive %s)", id, ErrCorruptBackup, m.IntegrityHash, got)
	}

	if err := e.registry.MarkRestoreTested(id); err != nil {
		return m, fmt.Errorf("recording verification: %w", err)
	}
	m.RestoreTested = true
	e.logger.Info("backup verified", "id", id, "hash", got)
	return m, nil
}

// dataDir resolves a browser's data directory: explicit override first,
// then the config file, then the platform default.
func (e *Engine) dataDir(k browser.Kind, override string) string {
	if override != "" {
		return override
	}
	if dir := e.cfg.BrowserDataDir(string(k)); dir != "" {
		return dir
	}
	return browser.LayoutFor(k).DefaultDataDir()
}

// locateProfiles discovers profiles and filters them down to the
// requested names. Empty names means all discovered profiles; a
// requested name with no matching profile is an error.
func (e *Engine) locateProfiles(k browser.Kind, names []string, dirOverride string) ([]browser.Profile, error) {
	dir := e.dataDir(k, dirOverride)
	if dir == "" {
		return nil, fmt.Errorf("%s: no data directory found (is it installed?)", k.DisplayName())
	}

	profiles, err := browser.LayoutFor(k).Locate(dir)
	if err != nil {
		return nil, fmt.Errorf("locating %s profiles: %w", k, err)
	}
	if len(names) == 0 {
		return profiles, nil
	}

	byName := make(map[string]browser.Profile, len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p
	}

	out := make([]browser.Profile, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%s has no profile %q (found: %s)", k.DisplayName(), name, profileNames(profiles))
		}
		out = append(out, p)
	}
	return out, nil
}

func profileNames(profiles []browser.Profile) string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

// warnIfRunning logs when the browser appears to be running. Backups
// proceed anyway; locked files surface as per-file failures.
func (e *Engine) warnIfRunning(k browser.Kind, h *Handle) {
	running, err := browser.IsRunning(k)
	if err != nil {
		e.logger.Debug("process scan failed", "browser", k, "error", err)
		return
	}
	if running {
		msg := fmt.Sprintf("%s appears to be running; locked files may be skipped", k.DisplayName())
		e.logger.Warn(msg)
		if h != nil {
			h.publish(Event{Phase: PhaseCollecting, Message: msg})
		}
	}
}
