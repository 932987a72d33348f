package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/klauspost/compress/flate"

	"github.com/profilevault/profilevault/internal/safety"
)

// EncryptedSuffix marks age-encrypted archives on disk.
const EncryptedSuffix = ".age"

// openReader opens an archive for reading, decrypting to a temporary
// file first when needed (zip requires random access, age streams
// don't). The returned cleanup must always be called.
func openReader(archivePath string, identities []age.Identity) (*zip.ReadCloser, func(), error) {
	zipPath := archivePath
	cleanupTemp := func() {}

	if strings.HasSuffix(archivePath, EncryptedSuffix) {
		if len(identities) == 0 {
			return nil, cleanupTemp, fmt.Errorf("archive is encrypted and no identity is configured")
		}
		enc, err := os.Open(archivePath)
		if err != nil {
			return nil, cleanupTemp, fmt.Errorf("opening archive: %w", err)
		}
		defer func() {
			_ = enc.Close()
		}()

		plain, err := age.Decrypt(enc, identities...)
		if err != nil {
			return nil, cleanupTemp, fmt.Errorf("decrypting archive: %w", err)
		}

		tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".decrypt-*")
		if err != nil {
			return nil, cleanupTemp, fmt.Errorf("creating decryption scratch file: %w", err)
		}
		tmpPath := tmp.Name()
		cleanupTemp = func() { _ = os.Remove(tmpPath) }

		if _, err := io.Copy(tmp, plain); err != nil {
			_ = tmp.Close()
			cleanupTemp()
			return nil, func() {}, fmt.Errorf("decrypting archive: %w", err)
		}
		if err := tmp.Close(); err != nil {
			cleanupTemp()
			return nil, func() {}, fmt.Errorf("closing scratch file: %w", err)
		}
		zipPath = tmpPath
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		cleanupTemp()
		return nil, func() {}, fmt.Errorf("opening zip: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
	return zr, cleanupTemp, nil
}

// ComputeHash recomputes the content hash of an archive by replaying
// its entry stream in stored order, exactly as the writer hashed it.
func ComputeHash(archivePath string, identities []age.Identity) (string, error) {
	zr, cleanup, err := openReader(archivePath, identities)
	if err != nil {
		return "", err
	}
	defer cleanup()
	defer func() {
		_ = zr.Close()
	}()

	digest := sha256.New()
	for _, f := range zr.File {
		digest.Write([]byte(f.Name))
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening entry %s: %w", f.Name, err)
		}
		_, err = io.Copy(digest, rc)
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			return "", fmt.Errorf("hashing entry %s: %w", f.Name, err)
		}
	}
	return HashPrefix + hex.EncodeToString(digest.Sum(nil)), nil
}

// Entries lists the archive's entry names in stored order.
func Entries(archivePath string, identities []age.Identity) ([]string, error) {
	zr, cleanup, err := openReader(archivePath, identities)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	defer func() {
		_ = zr.Close()
	}()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// ExtractTo unpacks the whole archive under destDir, refusing entries
// that would escape it. Used for staging only; the restore engine never
// extracts straight into a live profile.
func ExtractTo(archivePath, destDir string, identities []age.Identity) (int, error) {
	zr, cleanup, err := openReader(archivePath, identities)
	if err != nil {
		return 0, err
	}
	defer cleanup()
	defer func() {
		_ = zr.Close()
	}()

	extracted := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath, err := safety.SafeJoinUnder(destDir, f.Name)
		if err != nil {
			return extracted, fmt.Errorf("unsafe path in archive %q: %w", f.Name, err)
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return extracted, fmt.Errorf("creating directory: %w", err)
		}

		rc, err := f.Open()
		if err != nil {
			return extracted, fmt.Errorf("opening entry %s: %w", f.Name, err)
		}
		out, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return extracted, fmt.Errorf("creating %s: %w", destPath, err)
		}
		_, err = io.Copy(out, rc)
		_ = rc.Close()
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			return extracted, fmt.Errorf("extracting %s: %w", f.Name, err)
		}
		extracted++
	}
	return extracted, nil
}
