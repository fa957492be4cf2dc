// Package writer implements the Output Writer: it computes an item's
// destination path and writes bytes atomically (temp sibling, fsync,
// rename), rejecting any path that would escape the output root.
package writer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrPathEscape is returned when an output path, once cleaned, would
// fall outside the output root.
var ErrPathEscape = errors.New("writer: output path escapes output root")

// Writer writes rendered bytes to the output tree.
type Writer struct {
	Root string
}

// New returns a Writer rooted at outputRoot.
func New(outputRoot string) *Writer {
	return &Writer{Root: outputRoot}
}

// OutputPath computes a content-page or static-asset's default output
// path relative to the output root: `p/q/name.ext` becomes
// `p/q/name/index.html` for pages and stays `p/q/name.ext` for static
// assets.
func OutputPath(key string, isPage bool) string {
	if !isPage {
		return key
	}
	ext := filepath.Ext(key)
	base := strings.TrimSuffix(key, ext)
	return base + "/index.html"
}

// Write writes data to relPath under w.Root atomically: it creates a
// uniquely named temp sibling, fsyncs it, then renames it over the
// destination, creating parent directories as needed. It is an
// Item-local error (non-fatal) for the caller if this returns an error.
func (w *Writer) Write(relPath string, data []byte) error {
	dest, err := w.resolve(relPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("writer: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".kiln-tmp-*")
	if err != nil {
		return fmt.Errorf("writer: create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writer: write temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("writer: fsync temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writer: close temp file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("writer: rename %s to %s: %w", tmpPath, dest, err)
	}

	log.Debug().Str("path", dest).Int("bytes", len(data)).Msg("writer: wrote output file")
	return nil
}

// Remove deletes the output file at relPath, used by the orchestrator's
// deletion-reconciliation phase. A missing file is not an error.
func (w *Writer) Remove(relPath string) error {
	dest, err := w.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("writer: remove %s: %w", dest, err)
	}
	return nil
}

// resolve joins relPath onto w.Root and rejects any result that escapes
// the root after normalizing `..` segments.
func (w *Writer) resolve(relPath string) (string, error) {
	root, err := filepath.Abs(w.Root)
	if err != nil {
		return "", fmt.Errorf("writer: resolve output root: %w", err)
	}
	joined := filepath.Join(root, relPath)
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, relPath)
	}
	return joined, nil
}
