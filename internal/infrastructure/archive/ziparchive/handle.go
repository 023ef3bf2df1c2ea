package ziparchive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
)

var errClosed = errors.New("archive handle closed")

// request asks the worker to copy one entry into dst. Every request carries
// its own reply channel, so a response can only reach its caller.
type request struct {
	ctx   context.Context
	path  string
	dst   io.Writer
	limit int64
	reply chan response
}

type response struct {
	n   int64
	err error
}

// handle is an open archive. A single goroutine owns the zip reader and
// serves entry reads one at a time.
type handle struct {
	opts    Options
	entries []domain.ArchiveEntry
	files   map[string]*zip.File

	requests  chan request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func newHandle(zr *zip.Reader, opts Options) *handle {
	h := &handle{
		opts:     opts,
		files:    make(map[string]*zip.File, len(zr.File)),
		requests: make(chan request),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, f := range zr.File {
		if _, dup := h.files[f.Name]; dup {
			// Readers resolve a name to its first header; later copies are unreachable.
			slog.Warn("archive_duplicate_entry", "path", f.Name, "size", f.UncompressedSize64)
			continue
		}
		h.files[f.Name] = f
		h.entries = append(h.entries, domain.ArchiveEntry{
			Path:             f.Name,
			IsDirectory:      f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/"),
			UncompressedSize: f.UncompressedSize64,
			IsMetadata:       isMetadata(opts.MetadataPrefixes, f.Name),
			Modified:         f.Modified,
		})
	}
	return h
}

func (h *handle) serve() {
	defer close(h.stopped)
	for {
		select {
		case <-h.done:
			return
		case req := <-h.requests:
			req.reply <- h.load(req)
		}
	}
}

func (h *handle) load(req request) response {
	f, ok := h.files[req.path]
	if !ok {
		return response{err: domain.WrapError(domain.ErrEntryNotFound, "read entry", fmt.Errorf("%q", req.path))}
	}
	if f.FileInfo().IsDir() {
		return response{err: domain.WrapError(domain.ErrEntryNotFound, "read entry", fmt.Errorf("%q is a directory", req.path))}
	}

	rc, err := f.Open()
	if err != nil {
		return response{err: domain.WrapError(domain.ErrCorruptEntry, "open entry", err)}
	}
	defer rc.Close()

	var src io.Reader = ctxReader{ctx: req.ctx, r: rc}
	if req.limit > 0 {
		src = io.LimitReader(src, req.limit)
	}
	dst := &trackedWriter{w: req.dst}
	n, err := io.Copy(dst, src)
	switch {
	case err == nil:
		return response{n: n}
	case dst.err != nil:
		return response{n: n, err: fmt.Errorf("stage entry %q: %w", req.path, dst.err)}
	case req.ctx.Err() != nil:
		return response{n: n, err: req.ctx.Err()}
	default:
		return response{n: n, err: domain.WrapError(domain.ErrCorruptEntry, "read entry", fmt.Errorf("%q: %w", req.path, err))}
	}
}

func (h *handle) call(ctx context.Context, path string, dst io.Writer, limit int64) (int64, error) {
	req := request{ctx: ctx, path: path, dst: dst, limit: limit, reply: make(chan response, 1)}
	select {
	case h.requests <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.done:
		return 0, errClosed
	}
	// dst belongs to the worker until it answers; a cancelled context ends
	// the copy at the next read.
	resp := <-req.reply
	return resp.n, resp.err
}

func (h *handle) Entries() iter.Seq[domain.ArchiveEntry] {
	return slices.Values(h.entries)
}

// ReadText decodes an entry as UTF-8, replacing invalid sequences. Text
// beyond MaxTextBytes is dropped with a warning.
func (h *handle) ReadText(ctx context.Context, path string) (string, error) {
	var buf bytes.Buffer
	n, err := h.call(ctx, path, &buf, h.opts.MaxTextBytes)
	if err != nil {
		return "", err
	}
	if f, ok := h.files[path]; ok && f.UncompressedSize64 > uint64(n) {
		slog.WarnContext(ctx, "archive_text_truncated",
			"path", path, "read_bytes", n, "size", f.UncompressedSize64, "limit", h.opts.MaxTextBytes)
	}
	if utf8.Valid(buf.Bytes()) {
		return buf.String(), nil
	}
	return strings.ToValidUTF8(buf.String(), "\uFFFD"), nil
}

func (h *handle) Extract(ctx context.Context, path string) ([]byte, error) {
	var buf bytes.Buffer
	if f, ok := h.files[path]; ok && f.UncompressedSize64 < 1<<30 {
		buf.Grow(int(f.UncompressedSize64))
	}
	if _, err := h.call(ctx, path, &buf, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Rebuild copies every mapped entry into sink, one at a time. Entries that
// are missing or unreadable become omissions; a sink failure aborts.
func (h *handle) Rebuild(ctx context.Context, mappings []domain.PathMapping, sink ports.ArchiveSink) (domain.RebuildResult, error) {
	var result domain.RebuildResult
	sp := newSpool(h.opts.SpoolThreshold, h.opts.TempDir)
	defer sp.Close()

	for _, m := range mappings {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		f, ok := h.files[m.OriginalPath]
		if !ok {
			result.Omissions = append(result.Omissions, h.omit(ctx, m.OriginalPath, "entry not found"))
			continue
		}
		if err := sp.reset(f.UncompressedSize64); err != nil {
			return result, fmt.Errorf("prepare spool: %w", err)
		}

		n, err := h.call(ctx, m.OriginalPath, sp, 0)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			if !domain.IsKind(err, domain.ErrCorruptEntry) && !domain.IsKind(err, domain.ErrEntryNotFound) {
				return result, err
			}
			result.Omissions = append(result.Omissions, h.omit(ctx, m.OriginalPath, err.Error()))
			continue
		}

		body, err := sp.reader()
		if err != nil {
			return result, fmt.Errorf("rewind spool: %w", err)
		}
		entry := domain.SinkEntry{
			Path:     m.DestinationPath,
			Modified: f.Modified,
			Method:   f.Method,
			Size:     uint64(n),
		}
		if err := sink.WriteEntry(ctx, entry, body); err != nil {
			return result, fmt.Errorf("write %q: %w", m.DestinationPath, err)
		}
		result.Written++
	}
	return result, nil
}

func (h *handle) omit(ctx context.Context, path, reason string) domain.Omission {
	slog.WarnContext(ctx, "archive_entry_omitted", "path", path, "reason", reason)
	return domain.Omission{Path: path, Stage: domain.OmissionRebuild, Reason: reason}
}

func (h *handle) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	<-h.stopped
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

type trackedWriter struct {
	w   io.Writer
	err error
}

func (t *trackedWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
