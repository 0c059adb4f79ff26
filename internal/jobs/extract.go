package jobs

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/archlens/archlens/internal/apperr"
)

// DefaultMaxExtractBytes bounds the total uncompressed size of an
// extracted archive. Declared sizes in zip headers are not trusted; the
// bound is enforced on bytes actually written.
const DefaultMaxExtractBytes int64 = 1 << 30

// ValidateArchive opens an uploaded archive and counts its regular file
// entries. A malformed archive or one with no files is rejected with the
// matching error code, so callers can refuse bad uploads before any blob
// or database writes happen.
func ValidateArchive(path string) (int, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeProjectInvalidZip, "failed to open zip", err)
	}
	defer r.Close()

	count := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		count++
	}
	if count == 0 {
		return 0, apperr.New(apperr.CodeProjectNoFiles, "archive contains no files")
	}
	return count, nil
}

// extractArchive unpacks a zip archive into root. Entries whose
// normalized destination would escape root are refused, symlinks are
// skipped, and extraction stops once maxBytes of uncompressed content
// have been written. Returns the number of files extracted.
func extractArchive(ctx context.Context, src, root string, maxBytes int64) (int, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxExtractBytes
	}

	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeProjectInvalidZip, "failed to open zip", err)
	}
	defer r.Close()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create extraction root; %w", err)
	}

	var written int64
	count := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		name := filepath.FromSlash(f.Name)
		if !filepath.IsLocal(name) {
			return count, apperr.Newf(apperr.CodeProjectInvalidZip,
				"archive entry %q escapes the extraction root", f.Name)
		}
		target := filepath.Join(root, name)

		mode := f.FileInfo().Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, fmt.Errorf("failed to create directory %s; %w", name, err)
			}
		case mode&fs.ModeSymlink != 0:
			// Symlinks can point anywhere; never materialize them.
			continue
		case mode.IsRegular():
			n, err := extractFile(f, target, maxBytes-written)
			written += n
			if err != nil {
				return count, err
			}
			count++
		default:
			continue
		}
	}
	return count, nil
}

// extractFile writes one zip entry to target, allowing at most remaining
// bytes. Returns the number of bytes written.
func extractFile(f *zip.File, target string, remaining int64) (int64, error) {
	if remaining <= 0 {
		return 0, apperr.New(apperr.CodeProjectInvalidZip, "archive exceeds the extraction size limit")
	}

	rc, err := f.Open()
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeProjectInvalidZip, fmt.Sprintf("failed to open entry %s", f.Name), err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s; %w", f.Name, err)
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s; %w", f.Name, err)
	}
	defer out.Close()

	// Copy one byte past the budget so an oversized entry is detected
	// rather than silently truncated.
	n, err := io.Copy(out, io.LimitReader(rc, remaining+1))
	if err != nil {
		return n, fmt.Errorf("failed to extract %s; %w", f.Name, err)
	}
	if n > remaining {
		return n, apperr.New(apperr.CodeProjectInvalidZip, "archive exceeds the extraction size limit")
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("failed to finish %s; %w", f.Name, err)
	}
	return n, nil
}
