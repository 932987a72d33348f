// Package archive reads and writes backup archives: zip containers with
// a deterministic content hash computed over the entry stream, and
// optional age encryption at rest.
package archive

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"filippo.io/age"
	"github.com/klauspost/compress/flate"

	"github.com/profilevault/profilevault/internal/collect"
)

// HashPrefix identifies the digest algorithm in manifest hashes.
const HashPrefix = "sha256:"

// EntrySet is one profile's worth of collected files. Entries are
// archived under Prefix/ so multi-profile backups stay disambiguated.
type EntrySet struct {
	Prefix  string
	Root    string
	Entries []collect.Entry
}

// Progress is invoked after each archived file. It must be cheap; the
// engine adapts it onto a drop-capable event channel.
type Progress func(filesDone, filesTotal int, bytesDone int64)

// WriteResult summarizes a completed archive write.
type WriteResult struct {
	ArchiveSize  int64 // bytes on disk, after compression/encryption
	BytesWritten int64 // source bytes streamed into the archive
	FileCount    int
	Hash         string // "sha256:<hex>" over (entry path || entry bytes)
}

// Writer streams collected files into a zip archive.
type Writer struct {
	logger     *slog.Logger
	recipients []age.Recipient // nil writes a plaintext archive
}

// NewWriter returns a Writer. Recipients may be nil for unencrypted
// archives.
func NewWriter(logger *slog.Logger, recipients []age.Recipient) *Writer {
	return &Writer{logger: logger, recipients: recipients}
}

// Encrypts reports whether archives will be age-encrypted at rest.
func (w *Writer) Encrypts() bool { return len(w.recipients) > 0 }

// Write streams every entry set into a new archive at archivePath,
// computing the content hash as it goes. The hash covers each entry's
// archive path and raw bytes in write order, so two backups of
// byte-identical data produce identical hashes regardless of zip
// metadata or encryption. Files that turn unreadable between collection
// and write are skipped and returned as failures; cancellation is
// honored between files and leaves no archive behind.
func (w *Writer) Write(ctx context.Context, archivePath string, sets []EntrySet, onProgress Progress) (*WriteResult, []collect.Failure, error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("creating archive: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(archivePath)
	}

	var (
		sink     io.Writer = f
		ageClose func() error
	)
	if w.Encrypts() {
		ew, err := age.Encrypt(f, w.recipients...)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("starting encryption: %w", err)
		}
		sink = ew
		ageClose = ew.Close
	}

	zw := zip.NewWriter(sink)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	digest := sha256.New()
	total := 0
	for _, set := range sets {
		total += len(set.Entries)
	}

	var (
		failures []collect.Failure
		result   = &WriteResult{}
		done     = 0
	)

	for _, set := range sets {
		for _, entry := range set.Entries {
			select {
			case <-ctx.Done():
				_ = zw.Close()
				if ageClose != nil {
					_ = ageClose()
				}
				cleanup()
				return nil, failures, ctx.Err()
			default:
			}

			archiveName := path.Join(set.Prefix, entry.RelPath)
			n, err := addEntry(zw, digest, set.Root, entry.RelPath, archiveName)
			if err != nil {
				reason := collect.ClassifyReason(err)
				w.logger.Warn("skipping unreadable file", "path", archiveName, "reason", reason, "error", err)
				failures = append(failures, collect.Failure{RelPath: archiveName, Reason: reason, Err: err})
				done++
				continue
			}

			result.BytesWritten += n
			result.FileCount++
			done++
			if onProgress != nil {
				onProgress(done, total, result.BytesWritten)
			}
		}
	}

	if err := zw.Close(); err != nil {
		cleanup()
		return nil, failures, fmt.Errorf("closing zip writer: %w", err)
	}
	if ageClose != nil {
		if err := ageClose(); err != nil {
			cleanup()
			return nil, failures, fmt.Errorf("closing encryption writer: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(archivePath)
		return nil, failures, fmt.Errorf("closing archive file: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, failures, fmt.Errorf("stating archive: %w", err)
	}
	result.ArchiveSize = info.Size()
	result.Hash = HashPrefix + hex.EncodeToString(digest.Sum(nil))
	return result, failures, nil
}

// addEntry copies one source file into the zip while feeding the
// running digest with (archive path || file bytes).
func addEntry(zw *zip.Writer, digest hash.Hash, root, relPath, archiveName string) (int64, error) {
	src, err := os.Open(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = src.Close()
	}()

	hdr := &zip.FileHeader{
		Name:     archiveName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, fmt.Errorf("creating zip entry %s: %w", archiveName, err)
	}

	digest.Write([]byte(archiveName))
	n, err := io.Copy(io.MultiWriter(dst, digest), src)
	if err != nil {
		return n, fmt.Errorf("writing zip entry %s: %w", archiveName, err)
	}
	return n, nil
}
