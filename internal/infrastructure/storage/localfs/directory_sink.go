package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

// DirectorySink writes rebuilt entries as plain files under a root
// directory instead of into a new zip.
type DirectorySink struct {
	root    string
	written int
}

func NewDirectorySink(root string) (*DirectorySink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DirectorySink{root: root}, nil
}

func (d *DirectorySink) WriteEntry(ctx context.Context, entry domain.SinkEntry, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel := filepath.FromSlash(entry.Path)
	if !filepath.IsLocal(rel) {
		return domain.WrapError(domain.ErrInvalidInput, "write entry", fmt.Errorf("not a local path: %q", entry.Path))
	}

	f, err := createAtomic(filepath.Join(d.root, rel))
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.abort()
		return fmt.Errorf("write %s: %w", entry.Path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if !entry.Modified.IsZero() {
		_ = os.Chtimes(f.target, entry.Modified, entry.Modified)
	}
	d.written++
	return nil
}

func (d *DirectorySink) Written() int { return d.written }

func (d *DirectorySink) Close() error { return nil }
