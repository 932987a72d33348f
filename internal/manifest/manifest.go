// Package manifest defines the persisted record of a completed backup.
package manifest

import (
	"time"

	"github.com/profilevault/profilevault/internal/browser"
)

// FormatVersion is bumped whenever the archive or manifest layout
// changes incompatibly.
const FormatVersion = 1

// Manifest describes one completed backup. Written once when the
// archive is fully written and hashed; immutable afterwards except for
// RestoreTested, which a successful dry validation may set.
type Manifest struct {
	ID                 string    `json:"id"`
	Browser            string    `json:"browser"`
	Profiles           []string  `json:"profiles"`
	CreatedAt          time.Time `json:"created_at"`
	SizeBytes          int64     `json:"size_bytes"`
	FileCount          int       `json:"file_count"`
	CategoriesIncluded []string  `json:"categories_included"`
	IntegrityHash      string    `json:"integrity_hash"` // "sha256:<hexdigest>"
	FormatVersion      int       `json:"format_version"`
	RestoreTested      bool      `json:"restore_tested"`

	// ArchiveDir is the backup's directory name under the backup root,
	// e.g. "chrome_Default_20260823_151004". Recorded so lookups never
	// have to reconstruct it from the other fields.
	ArchiveDir string `json:"archive_dir"`
	// Encrypted marks archives that are age-encrypted at rest.
	Encrypted bool `json:"encrypted,omitempty"`
}

// BuildParams carries everything Build needs; all values come from the
// archive writer's output and the backup request, so Build stays pure.
type BuildParams struct {
	ID         string
	Browser    browser.Kind
	Profiles   []string
	CreatedAt  time.Time
	SizeBytes  int64
	FileCount  int
	Categories []browser.Category
	Hash       string
	ArchiveDir string
	Encrypted  bool
}

// Build assembles a Manifest. No I/O.
func Build(p BuildParams) *Manifest {
	return &Manifest{
		ID:                 p.ID,
		Browser:            string(p.Browser),
		Profiles:           append([]string(nil), p.Profiles...),
		CreatedAt:          p.CreatedAt.UTC(),
		SizeBytes:          p.SizeBytes,
		FileCount:          p.FileCount,
		CategoriesIncluded: browser.CategoryNames(p.Categories),
		IntegrityHash:      p.Hash,
		FormatVersion:      FormatVersion,
		ArchiveDir:         p.ArchiveDir,
		Encrypted:          p.Encrypted,
	}
}

// Kind returns the manifest's browser as a typed Kind.
func (m *Manifest) Kind() (browser.Kind, error) {
	return browser.ParseKind(m.Browser)
}
