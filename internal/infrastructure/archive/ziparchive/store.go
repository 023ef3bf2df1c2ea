// Package ziparchive reads chat-export zips and writes organized ones.
package ziparchive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
)

const (
	defaultSpoolThreshold = 8 << 20
	defaultMaxTextBytes   = 64 << 20
)

type Options struct {
	// MetadataPrefixes mark OS metadata folders such as "__MACOSX/".
	MetadataPrefixes []string
	// Entries larger than SpoolThreshold are staged in a temp file during
	// rebuild instead of memory.
	SpoolThreshold int64
	TempDir        string
	MaxTextBytes   int64
}

type Store struct {
	opts Options
}

func NewStore(opts Options) *Store {
	if opts.SpoolThreshold <= 0 {
		opts.SpoolThreshold = defaultSpoolThreshold
	}
	if opts.MaxTextBytes <= 0 {
		opts.MaxTextBytes = defaultMaxTextBytes
	}
	return &Store{opts: opts}
}

// Open reads only the central directory. The returned handle owns the reader
// until Close.
func (s *Store) Open(ctx context.Context, src io.ReaderAt, size int64) (ports.Archive, error) {
	if src == nil || size <= 0 {
		return nil, domain.WrapError(domain.ErrCorruptArchive, "open archive", fmt.Errorf("empty input (%d bytes)", size))
	}
	zr, err := zip.NewReader(src, size)
	if err != nil {
		if zr == nil {
			return nil, domain.WrapError(domain.ErrCorruptArchive, "open archive", err)
		}
		// Unsafe names are still readable; destinations are rebuilt from base names.
		slog.WarnContext(ctx, "archive_insecure_paths", "error", err)
	}

	h := newHandle(zr, s.opts)
	go h.serve()
	slog.DebugContext(ctx, "archive_opened", "entries", len(h.entries), "size", size)
	return h, nil
}

func (s *Store) NewWriter(w io.Writer) ports.ArchiveSink {
	return NewZipSink(w)
}

func isMetadata(prefixes []string, name string) bool {
	name = strings.ReplaceAll(name, `\`, "/")
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
