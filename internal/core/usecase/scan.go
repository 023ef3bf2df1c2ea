package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
	"github.com/kirillkom/semester-scan/internal/core/subject"
	"github.com/kirillkom/semester-scan/internal/core/transcript"
)

// ScanUseCase runs one archive through parse, classify, organize, rebuild.
type ScanUseCase struct {
	store         ports.ArchiveStore
	parser        *transcript.Parser
	subjects      *subject.Classifier
	policy        *ClassificationPolicy
	organizer     *ArchiveOrganizer
	transcriptExt string
	clock         ports.Clock
}

func NewScanUseCase(
	store ports.ArchiveStore,
	parser *transcript.Parser,
	subjects *subject.Classifier,
	policy *ClassificationPolicy,
	organizer *ArchiveOrganizer,
	transcriptExt string,
) *ScanUseCase {
	if transcriptExt == "" {
		transcriptExt = ".txt"
	}
	return &ScanUseCase{
		store:         store,
		parser:        parser,
		subjects:      subjects,
		policy:        policy,
		organizer:     organizer,
		transcriptExt: strings.ToLower(transcriptExt),
		clock:         SystemClock{},
	}
}

// WithClock replaces the clock used for report timestamps.
func (uc *ScanUseCase) WithClock(clock ports.Clock) *ScanUseCase {
	if clock != nil {
		uc.clock = clock
	}
	return uc
}

// Run returns a fatal error only for an unreadable archive, a missing
// transcript, a failing sink or cancellation. On cancellation the partial
// report is returned together with the error.
func (uc *ScanUseCase) Run(ctx context.Context, in ports.ScanInput) (*domain.ScanReport, error) {
	if in.Source == nil || in.Sink == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "scan archive", errors.New("source and sink are required"))
	}
	mode := in.Options.Mode
	if mode == "" {
		mode = domain.ScanModePro
		in.Options.Mode = mode
	}

	archive, err := uc.store.Open(ctx, in.Source, in.Size)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	entries := slices.Collect(archive.Entries())
	report := &domain.ScanReport{
		ArchiveName: in.Name,
		Mode:        mode,
		EntryCount:  len(entries),
		StartedAt:   uc.clock.Now().UTC(),
	}

	items, err := uc.collectItems(ctx, archive, entries, in.Options, report)
	if err != nil {
		return nil, err
	}

	run := uc.policy.begin(ctx, in.Options, in.Progress)
	results := make([]domain.ClassificationResult, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return uc.finish(report, run, results), fmt.Errorf("scan cancelled: %w", err)
		}

		item.subject, item.source = uc.subjects.Match(item.fileName, item.ref.ContextWindow)
		result, omission := run.classify(ctx, archive, item)
		if omission != nil {
			report.Omissions = append(report.Omissions, *omission)
			slog.WarnContext(ctx, "scan_item_skipped", "path", omission.Path, "reason", omission.Reason)
			continue
		}
		results = append(results, result)
		slog.DebugContext(ctx, "scan_item_classified",
			"path", result.EntryPath,
			"subject", result.Subject,
			"category", result.Category,
			"state", result.State,
		)
		reportProgress(ctx, in.Progress, domain.ProgressEvent{
			Stage:  domain.ProgressClassified,
			Index:  i + 1,
			Total:  len(items),
			Path:   result.EntryPath,
			Result: &results[len(results)-1],
		})
	}
	uc.finish(report, run, results)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("scan cancelled: %w", err)
	}

	report.Mappings = uc.organizer.BuildMapping(entries, results, report.Transcript)
	sink := &progressSink{inner: in.Sink, progress: in.Progress, total: len(report.Mappings)}
	rebuilt, err := archive.Rebuild(ctx, report.Mappings, sink)
	report.Written = rebuilt.Written
	report.Omissions = append(report.Omissions, rebuilt.Omissions...)
	report.FinishedAt = uc.clock.Now().UTC()
	if err != nil {
		return report, fmt.Errorf("rebuild archive: %w", err)
	}

	reportProgress(ctx, in.Progress, domain.ProgressEvent{Stage: domain.ProgressDone, Index: report.Written, Total: len(report.Mappings)})
	slog.InfoContext(ctx, "scan_completed",
		"archive", in.Name,
		"items", len(report.Items),
		"written", report.Written,
		"omissions", len(report.Omissions),
		"remote_calls", report.RemoteCalls,
	)
	return report, nil
}

func (uc *ScanUseCase) finish(report *domain.ScanReport, run *policyRun, results []domain.ClassificationResult) *domain.ScanReport {
	report.Items = results
	report.RemoteCalls = run.remoteCalls
	report.QuotaExhausted = run.quotaExhausted
	report.FinishedAt = uc.clock.Now().UTC()
	return report
}

func (uc *ScanUseCase) collectItems(
	ctx context.Context,
	archive ports.Archive,
	entries []domain.ArchiveEntry,
	opts domain.ScanOptions,
	report *domain.ScanReport,
) ([]policyItem, error) {
	transcriptPath, ok := uc.findTranscript(entries)
	if !ok {
		if !opts.AllowMissingTranscript {
			return nil, domain.WrapError(domain.ErrNoTranscriptFound, "scan archive",
				fmt.Errorf("no %s entry outside metadata folders", uc.transcriptExt))
		}
		report.Degraded = true
		items := filenameOnlyItems(entries)
		report.References = len(items)
		return items, nil
	}

	text, err := archive.ReadText(ctx, transcriptPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNoTranscriptFound, "read transcript", err)
	}
	report.Transcript = transcriptPath

	refs := uc.parser.Parse(text)
	items, unresolved := reconcile(refs, entries, transcriptPath)
	report.References = len(refs)
	report.UnresolvedReferences = unresolved
	return items, nil
}

func (uc *ScanUseCase) findTranscript(entries []domain.ArchiveEntry) (string, bool) {
	for _, e := range entries {
		if e.Retained() && strings.HasSuffix(strings.ToLower(e.Path), uc.transcriptExt) {
			return e.Path, true
		}
	}
	return "", false
}

// reconcile keeps references that resolve to a retained entry. A claimed name
// is tried as an exact path, then as a base name, then by dropping leading
// words, since the mention pattern admits spaces. Each entry keeps only its
// first reference.
func reconcile(refs []domain.AttachmentReference, entries []domain.ArchiveEntry, transcriptPath string) ([]policyItem, int) {
	byPath := make(map[string]domain.ArchiveEntry, len(entries))
	byBase := make(map[string]domain.ArchiveEntry, len(entries))
	for _, e := range entries {
		if !e.Retained() || e.Path == transcriptPath {
			continue
		}
		byPath[e.Path] = e
		if _, ok := byBase[domain.EntryBase(e.Path)]; !ok {
			byBase[domain.EntryBase(e.Path)] = e
		}
	}

	lookup := func(name string) (domain.ArchiveEntry, bool) {
		if e, ok := byPath[name]; ok {
			return e, true
		}
		e, ok := byBase[name]
		return e, ok
	}

	claimed := make(map[string]struct{}, len(refs))
	items := make([]policyItem, 0, len(refs))
	unresolved := 0
	for _, ref := range refs {
		entry, ok := resolveReference(ref.FileName, lookup)
		if !ok {
			unresolved++
			continue
		}
		if _, dup := claimed[entry.Path]; dup {
			continue
		}
		claimed[entry.Path] = struct{}{}
		items = append(items, policyItem{
			entry:    entry,
			ref:      ref,
			fileName: domain.EntryBase(entry.Path),
		})
	}
	return items, unresolved
}

func resolveReference(name string, lookup func(string) (domain.ArchiveEntry, bool)) (domain.ArchiveEntry, bool) {
	candidate := strings.TrimSpace(name)
	for candidate != "" {
		if e, ok := lookup(candidate); ok {
			return e, true
		}
		idx := strings.IndexFunc(candidate, unicode.IsSpace)
		if idx < 0 {
			break
		}
		candidate = strings.TrimSpace(candidate[idx:])
	}
	return domain.ArchiveEntry{}, false
}

func filenameOnlyItems(entries []domain.ArchiveEntry) []policyItem {
	items := make([]policyItem, 0, len(entries))
	for _, e := range entries {
		if !e.Retained() {
			continue
		}
		name := domain.EntryBase(e.Path)
		items = append(items, policyItem{
			entry:    e,
			ref:      domain.AttachmentReference{FileName: name},
			fileName: name,
		})
	}
	return items
}

func reportProgress(ctx context.Context, progress ports.ProgressReporter, event domain.ProgressEvent) {
	if progress != nil {
		progress.Report(ctx, event)
	}
}

// progressSink reports every entry that reaches the real sink.
type progressSink struct {
	inner    ports.ArchiveSink
	progress ports.ProgressReporter
	total    int
	written  int
}

func (s *progressSink) WriteEntry(ctx context.Context, entry domain.SinkEntry, body io.Reader) error {
	if err := s.inner.WriteEntry(ctx, entry, body); err != nil {
		return err
	}
	s.written++
	reportProgress(ctx, s.progress, domain.ProgressEvent{
		Stage: domain.ProgressWritten,
		Index: s.written,
		Total: s.total,
		Path:  entry.Path,
	})
	return nil
}

// Close is a no-op: the caller owns the real sink.
func (s *progressSink) Close() error { return nil }
