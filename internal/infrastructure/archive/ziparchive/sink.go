package ziparchive

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

// ZipSink writes rebuilt entries as a zip stream. Stored entries stay stored,
// everything else is deflated; modification times are copied through.
type ZipSink struct {
	zw *zip.Writer
}

func NewZipSink(w io.Writer) *ZipSink {
	return &ZipSink{zw: zip.NewWriter(w)}
}

func (s *ZipSink) WriteEntry(ctx context.Context, entry domain.SinkEntry, body io.Reader) error {
	method := zip.Deflate
	if entry.Method == zip.Store {
		method = zip.Store
	}
	hdr := &zip.FileHeader{
		Name:     entry.Path,
		Method:   method,
		Modified: entry.Modified,
	}
	w, err := s.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(w, ctxReader{ctx: ctx, r: body}); err != nil {
		return fmt.Errorf("copy zip entry: %w", err)
	}
	return nil
}

func (s *ZipSink) Close() error {
	return s.zw.Close()
}
