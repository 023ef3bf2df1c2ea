package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"slices"
	"testing"
	"time"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
	"github.com/kirillkom/semester-scan/internal/core/subject"
	"github.com/kirillkom/semester-scan/internal/core/transcript"
)

type archiveFake struct {
	entries      []domain.ArchiveEntry
	files        map[string][]byte
	extractErr   map[string]error
	extractCalls map[string]int
	rebuildErr   error
	closed       bool
}

func newArchiveFake(files ...string) *archiveFake {
	a := &archiveFake{files: map[string][]byte{}, extractErr: map[string]error{}, extractCalls: map[string]int{}}
	for i := 0; i+1 < len(files); i += 2 {
		a.add(files[i], files[i+1])
	}
	return a
}

func (a *archiveFake) add(path, body string) *archiveFake {
	a.entries = append(a.entries, domain.ArchiveEntry{Path: path, UncompressedSize: uint64(len(body))})
	a.files[path] = []byte(body)
	return a
}

func (a *archiveFake) addDir(path string) *archiveFake {
	a.entries = append(a.entries, domain.ArchiveEntry{Path: path, IsDirectory: true})
	return a
}

func (a *archiveFake) addMetadata(path string) *archiveFake {
	a.entries = append(a.entries, domain.ArchiveEntry{Path: path, IsMetadata: true})
	a.files[path] = []byte("meta")
	return a
}

func (a *archiveFake) Entries() iter.Seq[domain.ArchiveEntry] {
	return slices.Values(a.entries)
}

func (a *archiveFake) ReadText(_ context.Context, path string) (string, error) {
	data, ok := a.files[path]
	if !ok {
		return "", domain.WrapError(domain.ErrEntryNotFound, "read text", fmt.Errorf("%q", path))
	}
	return string(data), nil
}

func (a *archiveFake) Extract(_ context.Context, path string) ([]byte, error) {
	a.extractCalls[path]++
	if err := a.extractErr[path]; err != nil {
		return nil, err
	}
	data, ok := a.files[path]
	if !ok {
		return nil, domain.WrapError(domain.ErrEntryNotFound, "extract entry", fmt.Errorf("%q", path))
	}
	return data, nil
}

func (a *archiveFake) Rebuild(ctx context.Context, mappings []domain.PathMapping, sink ports.ArchiveSink) (domain.RebuildResult, error) {
	var result domain.RebuildResult
	if a.rebuildErr != nil {
		return result, a.rebuildErr
	}
	for _, m := range mappings {
		data, ok := a.files[m.OriginalPath]
		if !ok {
			result.Omissions = append(result.Omissions, domain.Omission{Path: m.OriginalPath, Stage: domain.OmissionRebuild, Reason: "missing"})
			continue
		}
		if err := sink.WriteEntry(ctx, domain.SinkEntry{Path: m.DestinationPath}, bytes.NewReader(data)); err != nil {
			return result, err
		}
		result.Written++
	}
	return result, nil
}

func (a *archiveFake) Close() error {
	a.closed = true
	return nil
}

type archiveStoreFake struct {
	archive *archiveFake
	openErr error
	sinks   []*sinkFake
}

func (s *archiveStoreFake) Open(context.Context, io.ReaderAt, int64) (ports.Archive, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.archive, nil
}

func (s *archiveStoreFake) NewWriter(w io.Writer) ports.ArchiveSink {
	sink := &sinkFake{out: w, files: map[string]string{}}
	s.sinks = append(s.sinks, sink)
	return sink
}

type sinkFake struct {
	out    io.Writer
	files  map[string]string
	order  []string
	err    error
	closed bool
}

func (s *sinkFake) WriteEntry(_ context.Context, entry domain.SinkEntry, body io.Reader) error {
	if s.err != nil {
		return s.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.files[entry.Path] = string(data)
	s.order = append(s.order, entry.Path)
	if s.out != nil {
		_, _ = fmt.Fprintf(s.out, "%s\n", entry.Path)
	}
	return nil
}

func (s *sinkFake) Close() error {
	s.closed = true
	return nil
}

type remoteFake struct {
	responses []string
	errs      []error
	requests  []domain.RemoteRequest
}

func (f *remoteFake) ClassifyContent(_ context.Context, req domain.RemoteRequest) (string, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	if len(f.responses) > 0 {
		return f.responses[len(f.responses)-1], nil
	}
	return `{"category":"Notes","confidence":"High","suggested_filename":null}`, nil
}

type quotaStoreFake struct {
	counts map[string]int
	err    error
}

func newQuotaStoreFake() *quotaStoreFake {
	return &quotaStoreFake{counts: map[string]int{}}
}

func (f *quotaStoreFake) Acquire(_ context.Context, day string, limit int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.counts[day] >= limit {
		return false, nil
	}
	f.counts[day]++
	return true, nil
}

func (f *quotaStoreFake) Release(_ context.Context, day string) error {
	if f.err != nil {
		return f.err
	}
	if f.counts[day] > 0 {
		f.counts[day]--
	}
	return nil
}

func (f *quotaStoreFake) Used(_ context.Context, day string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[day], nil
}

type clockFake struct {
	now time.Time
}

func (c *clockFake) Now() time.Time { return c.now }

type progressFake struct {
	events []domain.ProgressEvent
}

func (p *progressFake) Report(_ context.Context, event domain.ProgressEvent) {
	p.events = append(p.events, event)
}

func (p *progressFake) count(stage domain.ProgressStage) int {
	n := 0
	for _, e := range p.events {
		if e.Stage == stage {
			n++
		}
	}
	return n
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, string, []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type scanFixture struct {
	archive *archiveFake
	store   *archiveStoreFake
	remote  *remoteFake
	quota   *quotaStoreFake
	sleeper *sleepRecorder
	policy  *ClassificationPolicy
	scan    *ScanUseCase
}

// newScanFixture wires the real parser, classifier, policy and organizer
// around fakes. A nil remote means no credential.
func newScanFixture(t *testing.T, archive *archiveFake, remote *remoteFake, quotaLimit int) *scanFixture {
	t.Helper()
	h := domain.DefaultHeuristics()
	parser, err := transcript.NewParser(transcript.Options{
		Extensions:    h.AttachmentExtensions,
		Markers:       h.AttachmentMarkers,
		ContextBefore: h.ContextLinesBefore,
		ContextAfter:  h.ContextLinesAfter,
	})
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}

	fx := &scanFixture{
		archive: archive,
		store:   &archiveStoreFake{archive: archive},
		remote:  remote,
		quota:   newQuotaStoreFake(),
		sleeper: &sleepRecorder{},
	}
	var classifier ports.ContentClassifier
	if remote != nil {
		classifier = remote
	}
	gate := NewQuotaGate(fx.quota, &clockFake{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}, quotaLimit)
	fx.policy = NewClassificationPolicy(PolicyConfig{
		Categories:      h.Categories,
		DefaultCategory: h.DefaultCategory,
		FallbackSubject: h.FallbackSubject,
		ImageExtensions: h.ImageExtensions,
		CallDelay:       2 * time.Second,
	}, classifier, &extractorFake{text: "Lecture 4: Fourier series and convergence of partial sums"}, gate).WithSleeper(fx.sleeper.sleep)
	fx.scan = NewScanUseCase(
		fx.store,
		parser,
		subject.NewClassifier(h.Subjects, h.FallbackSubject),
		fx.policy,
		NewArchiveOrganizer(Layout{OrganizedRoot: h.OrganizedRoot, QuarantineRoot: h.QuarantineRoot, CatchAllRoot: h.CatchAllRoot}),
		h.TranscriptExtension,
	)
	return fx
}

func (fx *scanFixture) run(t *testing.T, opts domain.ScanOptions) (*domain.ScanReport, *sinkFake, error) {
	t.Helper()
	sink := &sinkFake{files: map[string]string{}}
	report, err := fx.scan.Run(context.Background(), ports.ScanInput{
		Name:    "export.zip",
		Source:  bytes.NewReader([]byte("zip")),
		Size:    3,
		Options: opts,
		Sink:    sink,
	})
	return report, sink, err
}
