package files

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"platereport/internal/wellfile"
)

// maxEntryBytes caps the decompressed size of a single archive entry
var maxEntryBytes int64 = 1 << 30

// ErrEntryTooLarge is returned for archive entries above maxEntryBytes
var ErrEntryTooLarge = errors.New("archive entry exceeds size limit")

// ExtractWellFiles unpacks the well files of a zip archive into destDir.
// Folder structure is kept; entries escaping destDir are rejected.
func ExtractWellFiles(archivePath, destDir string) ([]FileInfo, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, err
	}

	var extracted int
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() || !wellfile.IsWellFile(entry.Name) || inSkippedDir(entry.Name) {
			continue
		}

		target := filepath.Join(root, filepath.FromSlash(entry.Name))
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return nil, fmt.Errorf("archive entry %q escapes extraction directory", entry.Name)
		}

		if err := extractEntry(entry, target); err != nil {
			return nil, err
		}
		extracted++
	}

	slog.Debug("Extracted archive",
		slog.String("archive", archivePath),
		slog.String("dest", root),
		slog.Int("well_files", extracted))

	return NewDiscovery("").FindWellFiles(root)
}

func inSkippedDir(name string) bool {
	parts := strings.Split(filepath.ToSlash(name), "/")
	for _, p := range parts[:len(parts)-1] {
		if skipDir(p) {
			return true
		}
	}
	return false
}

func extractEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", entry.Name, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	// one byte past the limit tells a full entry from a truncated one
	n, err := io.Copy(dst, io.LimitReader(src, maxEntryBytes+1))
	if err == nil && n > maxEntryBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrEntryTooLarge, maxEntryBytes)
	}
	if err != nil {
		dst.Close()
		os.Remove(target)
		return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	return dst.Close()
}
