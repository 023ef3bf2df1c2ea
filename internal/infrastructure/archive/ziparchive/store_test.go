package ziparchive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

type testEntry struct {
	name string
	body string
	// stored keeps the entry uncompressed; everything else with a body is deflated.
	stored bool
}

var exportTime = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func buildZip(t *testing.T, entries ...testEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Deflate
		if e.stored || e.body == "" {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method, Modified: exportTime})
		if err != nil {
			t.Fatalf("CreateHeader(%s) error = %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("Write(%s) error = %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func chatExport(t *testing.T) []byte {
	return buildZip(t,
		testEntry{name: "WhatsApp Chat/"},
		testEntry{name: "WhatsApp Chat/_chat.txt", body: "[1/1/24, 10:00] Alice: calc_hw1.pdf <attached: calc_hw1.pdf>\n"},
		testEntry{name: "WhatsApp Chat/calc_hw1.pdf", body: "%PDF-1.4 calc", stored: true},
		testEntry{name: "WhatsApp Chat/meme.jpg", body: "\xff\xd8\xff\xe0 jpeg"},
		testEntry{name: "__MACOSX/WhatsApp Chat/._calc_hw1.pdf", body: "resource fork"},
	)
}

func openArchive(t *testing.T, store *Store, data []byte) *handle {
	t.Helper()
	a, err := store.Open(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a.(*handle)
}

func defaultStore() *Store {
	return NewStore(Options{MetadataPrefixes: []string{"__MACOSX/"}})
}

func TestOpenListsEntriesInArchiveOrder(t *testing.T) {
	h := openArchive(t, defaultStore(), chatExport(t))

	got := slices.Collect(h.Entries())
	if len(got) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(got))
	}
	if !got[0].IsDirectory || got[0].Retained() {
		t.Fatalf("expected directory entry first, got %+v", got[0])
	}
	if got[2].Path != "WhatsApp Chat/calc_hw1.pdf" || got[2].UncompressedSize != uint64(len("%PDF-1.4 calc")) {
		t.Fatalf("unexpected entry: %+v", got[2])
	}
	if !got[4].IsMetadata || got[4].Retained() {
		t.Fatalf("expected metadata entry, got %+v", got[4])
	}
	if !got[1].Modified.Equal(exportTime) {
		t.Fatalf("unexpected modified time: %v", got[1].Modified)
	}
}

func TestOpenRejectsCorruptArchive(t *testing.T) {
	store := defaultStore()
	for name, data := range map[string][]byte{
		"garbage":   []byte("this is not a zip file at all"),
		"truncated": chatExport(t)[:40],
	} {
		if _, err := store.Open(context.Background(), bytes.NewReader(data), int64(len(data))); !domain.IsKind(err, domain.ErrCorruptArchive) {
			t.Fatalf("%s: expected corrupt archive, got %v", name, err)
		}
	}
	if _, err := store.Open(context.Background(), bytes.NewReader(nil), 0); !domain.IsKind(err, domain.ErrCorruptArchive) {
		t.Fatalf("empty input: expected corrupt archive, got %v", err)
	}
}

func TestReadTextAndExtract(t *testing.T) {
	h := openArchive(t, defaultStore(), chatExport(t))
	ctx := context.Background()

	text, err := h.ReadText(ctx, "WhatsApp Chat/_chat.txt")
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if text != "[1/1/24, 10:00] Alice: calc_hw1.pdf <attached: calc_hw1.pdf>\n" {
		t.Fatalf("unexpected transcript: %q", text)
	}

	data, err := h.Extract(ctx, "WhatsApp Chat/meme.jpg")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if string(data) != "\xff\xd8\xff\xe0 jpeg" {
		t.Fatalf("unexpected bytes: %q", data)
	}

	if _, err := h.Extract(ctx, "WhatsApp Chat/missing.pdf"); !domain.IsKind(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected entry not found, got %v", err)
	}
}

func TestReadTextReplacesInvalidUTF8(t *testing.T) {
	data := buildZip(t, testEntry{name: "chat.txt", body: "caf\xe9 notes"})
	h := openArchive(t, defaultStore(), data)

	text, err := h.ReadText(context.Background(), "chat.txt")
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if text != "caf\uFFFD notes" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestReadTextWarnsWhenTruncated(t *testing.T) {
	logs := captureLogs(t)
	data := buildZip(t, testEntry{name: "chat.txt", body: "line one\nline two notes.pdf attached\n"})
	h := openArchive(t, NewStore(Options{MaxTextBytes: 8}), data)

	text, err := h.ReadText(context.Background(), "chat.txt")
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if text != "line one" {
		t.Fatalf("unexpected text: %q", text)
	}
	if !strings.Contains(logs.String(), "archive_text_truncated") {
		t.Fatalf("expected truncation warning, got %q", logs.String())
	}

	logs.Reset()
	full := openArchive(t, defaultStore(), data)
	if _, err := full.ReadText(context.Background(), "chat.txt"); err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if strings.Contains(logs.String(), "archive_text_truncated") {
		t.Fatalf("unexpected truncation warning: %q", logs.String())
	}
}

func TestOpenLogsDuplicatePaths(t *testing.T) {
	logs := captureLogs(t)
	data := buildZip(t,
		testEntry{name: "notes.pdf", body: "first"},
		testEntry{name: "notes.pdf", body: "second copy"},
		testEntry{name: "chat.txt", body: "hi"},
	)
	h := openArchive(t, defaultStore(), data)

	got := slices.Collect(h.Entries())
	if len(got) != 2 || got[0].Path != "notes.pdf" || got[1].Path != "chat.txt" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	body, err := h.Extract(context.Background(), "notes.pdf")
	if err != nil || string(body) != "first" {
		t.Fatalf("Extract() = %q, %v", body, err)
	}
	if !strings.Contains(logs.String(), "archive_duplicate_entry") || !strings.Contains(logs.String(), "path=notes.pdf") {
		t.Fatalf("expected duplicate warning, got %q", logs.String())
	}
}

func TestConcurrentExtractsGetTheirOwnResponse(t *testing.T) {
	var entries []testEntry
	for i := range 20 {
		entries = append(entries, testEntry{name: fmt.Sprintf("f%02d.txt", i), body: fmt.Sprintf("body-%02d", i)})
	}
	h := openArchive(t, defaultStore(), buildZip(t, entries...))

	var wg sync.WaitGroup
	errs := make(chan error, len(entries))
	for _, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := h.Extract(context.Background(), e.name)
			if err != nil {
				errs <- err
				return
			}
			if string(data) != e.body {
				errs <- fmt.Errorf("%s: got %q", e.name, data)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Extract() mismatch: %v", err)
	}
}

func TestRebuildRoundTrip(t *testing.T) {
	for _, threshold := range []int64{1 << 20, 4} {
		t.Run(fmt.Sprintf("spool_threshold_%d", threshold), func(t *testing.T) {
			store := NewStore(Options{MetadataPrefixes: []string{"__MACOSX/"}, SpoolThreshold: threshold, TempDir: t.TempDir()})
			h := openArchive(t, store, chatExport(t))
			mappings := []domain.PathMapping{
				{OriginalPath: "WhatsApp Chat/_chat.txt", DestinationPath: "_chat.txt"},
				{OriginalPath: "WhatsApp Chat/calc_hw1.pdf", DestinationPath: "College_Docs/Math/Notes/calc_hw1.pdf"},
				{OriginalPath: "WhatsApp Chat/meme.jpg", DestinationPath: "Unsorted/meme.jpg"},
			}

			var out bytes.Buffer
			sink := store.NewWriter(&out)
			result, err := h.Rebuild(context.Background(), mappings, sink)
			if err != nil {
				t.Fatalf("Rebuild() error = %v", err)
			}
			if err := sink.Close(); err != nil {
				t.Fatalf("sink Close() error = %v", err)
			}
			if result.Written != 3 || len(result.Omissions) != 0 {
				t.Fatalf("unexpected result: %+v", result)
			}

			rebuilt := openArchive(t, store, out.Bytes())
			for _, m := range mappings {
				want, _ := h.Extract(context.Background(), m.OriginalPath)
				got, err := rebuilt.Extract(context.Background(), m.DestinationPath)
				if err != nil {
					t.Fatalf("Extract(%s) error = %v", m.DestinationPath, err)
				}
				if !bytes.Equal(got, want) {
					t.Fatalf("bytes differ for %s", m.DestinationPath)
				}
			}
			if f := rebuilt.files["College_Docs/Math/Notes/calc_hw1.pdf"]; f.Method != zip.Store {
				t.Fatalf("expected stored method to be preserved, got %d", f.Method)
			}
			if f := rebuilt.files["Unsorted/meme.jpg"]; f.Method != zip.Deflate || !f.Modified.Equal(exportTime) {
				t.Fatalf("unexpected header: method=%d modified=%v", f.Method, f.Modified)
			}
		})
	}
}

func TestRebuildIsDeterministic(t *testing.T) {
	store := defaultStore()
	h := openArchive(t, store, chatExport(t))
	mappings := []domain.PathMapping{
		{OriginalPath: "WhatsApp Chat/calc_hw1.pdf", DestinationPath: "College_Docs/Math/Notes/calc_hw1.pdf"},
		{OriginalPath: "WhatsApp Chat/meme.jpg", DestinationPath: "Unsorted/meme.jpg"},
	}

	build := func() []byte {
		var out bytes.Buffer
		sink := store.NewWriter(&out)
		if _, err := h.Rebuild(context.Background(), mappings, sink); err != nil {
			t.Fatalf("Rebuild() error = %v", err)
		}
		_ = sink.Close()
		return out.Bytes()
	}
	if !bytes.Equal(build(), build()) {
		t.Fatalf("rebuild output differs between runs")
	}
}

func TestRebuildOmitsMissingAndCorruptEntries(t *testing.T) {
	data := buildZip(t,
		testEntry{name: "good.pdf", body: "good bytes", stored: true},
		testEntry{name: "bad.pdf", body: "CORRUPTME-payload", stored: true},
	)
	idx := bytes.Index(data, []byte("CORRUPTME"))
	if idx < 0 {
		t.Fatalf("payload not found in archive")
	}
	data[idx] = 'X'

	store := defaultStore()
	h := openArchive(t, store, data)
	var out bytes.Buffer
	sink := store.NewWriter(&out)
	result, err := h.Rebuild(context.Background(), []domain.PathMapping{
		{OriginalPath: "good.pdf", DestinationPath: "a/good.pdf"},
		{OriginalPath: "bad.pdf", DestinationPath: "a/bad.pdf"},
		{OriginalPath: "ghost.pdf", DestinationPath: "a/ghost.pdf"},
	}, sink)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if result.Written != 1 || len(result.Omissions) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	for _, o := range result.Omissions {
		if o.Stage != domain.OmissionRebuild {
			t.Fatalf("unexpected omission stage: %+v", o)
		}
	}
	if result.Omissions[0].Path != "bad.pdf" || result.Omissions[1].Path != "ghost.pdf" {
		t.Fatalf("unexpected omissions: %+v", result.Omissions)
	}
}

type failingSink struct{ calls int }

func (s *failingSink) WriteEntry(context.Context, domain.SinkEntry, io.Reader) error {
	s.calls++
	return errors.New("no space left on device")
}
func (s *failingSink) Close() error { return nil }

func TestRebuildAbortsOnSinkFailure(t *testing.T) {
	h := openArchive(t, defaultStore(), chatExport(t))
	sink := &failingSink{}

	_, err := h.Rebuild(context.Background(), []domain.PathMapping{
		{OriginalPath: "WhatsApp Chat/calc_hw1.pdf", DestinationPath: "x.pdf"},
		{OriginalPath: "WhatsApp Chat/meme.jpg", DestinationPath: "y.jpg"},
	}, sink)
	if err == nil {
		t.Fatalf("expected sink error")
	}
	if sink.calls != 1 {
		t.Fatalf("expected rebuild to stop after the first failure, got %d calls", sink.calls)
	}
}

func TestRebuildStopsWhenCancelled(t *testing.T) {
	h := openArchive(t, defaultStore(), chatExport(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	result, err := h.Rebuild(ctx, []domain.PathMapping{{OriginalPath: "WhatsApp Chat/meme.jpg", DestinationPath: "y.jpg"}}, NewZipSink(&out))
	if !errors.Is(err, context.Canceled) || result.Written != 0 {
		t.Fatalf("expected cancellation, got %v (%+v)", err, result)
	}
}

func TestClosedHandleRejectsReads(t *testing.T) {
	h := openArchive(t, defaultStore(), chatExport(t))
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := h.Extract(context.Background(), "WhatsApp Chat/meme.jpg"); !errors.Is(err, errClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}
