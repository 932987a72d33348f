// Package registry indexes backup manifests under the backup root and
// owns the archives they describe.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/profilevault/profilevault/internal/archive"
	"github.com/profilevault/profilevault/internal/manifest"
	"github.com/profilevault/profilevault/internal/safety"
)

// ErrNotFound reports a manifest ID with no matching backup.
var ErrNotFound = errors.New("backup not found")

const manifestsDir = "manifests"

// Registry manages the manifest index. All index mutations and reads
// are serialized by one mutex: two backups completing at the same
// moment must not lose each other's manifests.
type Registry struct {
	mu     sync.Mutex
	root   string
	logger *slog.Logger
}

// New opens (creating if needed) the backup root and its manifest
// store. Backups are durable artifacts; nothing here is ever torn down
// implicitly.
func New(root string, logger *slog.Logger) (*Registry, error) {
	if err := os.MkdirAll(filepath.Join(root, manifestsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating backup root: %w", err)
	}
	return &Registry{root: root, logger: logger}, nil
}

// Root returns the backup root directory.
func (r *Registry) Root() string { return r.root }

// ArchivePath resolves the archive file a manifest describes.
func (r *Registry) ArchivePath(m *manifest.Manifest) string {
	name := "archive.zip"
	if m.Encrypted {
		name += archive.EncryptedSuffix
	}
	return filepath.Join(r.root, m.ArchiveDir, name)
}

func (r *Registry) manifestPath(id string) (string, error) {
	// IDs come from user input on the CLI; keep them inside manifests/.
	return safety.SafeJoinUnder(filepath.Join(r.root, manifestsDir), id+".json")
}

// Save persists a manifest. The caller must have finished writing and
// hashing the archive first: a backup exists only once its manifest is
// on disk, so a crash mid-archive never produces a listed-but-broken
// backup.
func (r *Registry) Save(m *manifest.Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.manifestPath(m.ID)
	if err != nil {
		return fmt.Errorf("resolving manifest path: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	r.logger.Info("manifest saved", "id", m.ID, "browser", m.Browser, "files", m.FileCount)
	return nil
}

// List returns all manifests, newest first by creation time. Unreadable
// manifest files are skipped with a warning rather than failing the
// whole listing.
func (r *Registry) List() ([]*manifest.Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

func (r *Registry) listLocked() ([]*manifest.Manifest, error) {
	dir := filepath.Join(r.root, manifestsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading manifest store: %w", err)
	}

	var out []*manifest.Manifest
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			r.logger.Warn("skipping unreadable manifest", "file", e.Name(), "error", err)
			continue
		}
		var m manifest.Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			r.logger.Warn("skipping malformed manifest", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, &m)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Find returns the manifest with the given ID, or ErrNotFound.
func (r *Registry) Find(id string) (*manifest.Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(id)
}

func (r *Registry) findLocked(id string) (*manifest.Manifest, error) {
	path, err := r.manifestPath(id)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backup %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %q: %w", id, err)
	}
	return &m, nil
}

// Delete removes a backup: manifest record first, then the archive
// directory. A crash between the two leaves an orphaned archive (safe
// to garbage-collect later), never a manifest pointing at nothing.
// Deleting an unknown ID returns ErrNotFound.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.findLocked(id)
	if err != nil {
		return err
	}

	path, err := r.manifestPath(id)
	if err != nil {
		return fmt.Errorf("resolving manifest path: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing manifest: %w", err)
	}

	if m.ArchiveDir != "" {
		archiveDir, err := safety.SafeJoinUnder(r.root, m.ArchiveDir)
		if err != nil {
			return fmt.Errorf("resolving archive directory: %w", err)
		}
		if err := os.RemoveAll(archiveDir); err != nil {
			return fmt.Errorf("removing archive: %w", err)
		}
	}

	r.logger.Info("backup deleted", "id", id)
	return nil
}

// MarkRestoreTested records a successful dry validation. This is the
// only mutation a persisted manifest ever receives.
func (r *Registry) MarkRestoreTested(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.findLocked(id)
	if err != nil {
		return err
	}
	if m.RestoreTested {
		return nil
	}
	m.RestoreTested = true

	path, err := r.manifestPath(id)
	if err != nil {
		return fmt.Errorf("resolving manifest path: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("updating manifest: %w", err)
	}
	return nil
}
