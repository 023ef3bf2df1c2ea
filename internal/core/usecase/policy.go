package usecase

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
)

const (
	defaultCallDelay      = 2 * time.Second
	defaultExcerptChars   = 100
	defaultMaxInlineBytes = 15 << 20
)

type PolicyConfig struct {
	Categories      []domain.CategoryRule
	DefaultCategory domain.Category
	FallbackSubject domain.Subject
	ImageExtensions []string

	// CallDelay is waited after every request that reached the remote service.
	CallDelay      time.Duration
	ExcerptChars   int
	MaxInlineBytes int64
}

// ClassificationPolicy decides per item between Tier 1 and Tier 2 and owns
// the remote call contract: one attempt, sequential, throttled, metered.
type ClassificationPolicy struct {
	cfg       PolicyConfig
	images    map[string]struct{}
	remote    ports.ContentClassifier
	extractor ports.TextExtractor
	quota     *QuotaGate
	sleep     func(context.Context, time.Duration) error
}

// NewClassificationPolicy accepts a nil remote classifier (no credential) and
// a nil extractor (no document excerpts).
func NewClassificationPolicy(
	cfg PolicyConfig,
	remote ports.ContentClassifier,
	extractor ports.TextExtractor,
	quota *QuotaGate,
) *ClassificationPolicy {
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = domain.CategoryNotes
	}
	if cfg.FallbackSubject == "" {
		cfg.FallbackSubject = domain.SubjectGeneral
	}
	if cfg.CallDelay < 0 {
		cfg.CallDelay = 0
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = defaultExcerptChars
	}
	if cfg.MaxInlineBytes <= 0 {
		cfg.MaxInlineBytes = defaultMaxInlineBytes
	}

	images := make(map[string]struct{}, len(cfg.ImageExtensions))
	for _, ext := range cfg.ImageExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			images["."+ext] = struct{}{}
		}
	}

	return &ClassificationPolicy{
		cfg:       cfg,
		images:    images,
		remote:    remote,
		extractor: extractor,
		quota:     quota,
		sleep:     sleepContext,
	}
}

// WithSleeper replaces the inter-call wait.
func (p *ClassificationPolicy) WithSleeper(fn func(context.Context, time.Duration) error) *ClassificationPolicy {
	if fn != nil {
		p.sleep = fn
	}
	return p
}

// ShouldEscalate is the Tier 2 trigger.
func ShouldEscalate(isImage, imagesEnabled bool, tier1 domain.Subject, fallback domain.Subject) bool {
	return (isImage && imagesEnabled) || tier1 == fallback
}

func (p *ClassificationPolicy) IsImage(fileName string) bool {
	_, ok := p.images[strings.ToLower(path.Ext(fileName))]
	return ok
}

// Tier1Category applies the filename rules in order; the first hit wins.
func (p *ClassificationPolicy) Tier1Category(fileName string) domain.Category {
	lower := strings.ToLower(fileName)
	for _, rule := range p.cfg.Categories {
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(kw)
			if kw != "" && strings.Contains(lower, kw) {
				return rule.Category
			}
		}
	}
	return p.cfg.DefaultCategory
}

type policyItem struct {
	entry    domain.ArchiveEntry
	ref      domain.AttachmentReference
	fileName string
	subject  domain.Subject
	source   domain.MatchSource
}

// policyRun is the per-run state: Tier 2 availability and the call count.
type policyRun struct {
	p              *ClassificationPolicy
	opts           domain.ScanOptions
	progress       ports.ProgressReporter
	tier2Off       bool
	quotaExhausted bool
	remoteCalls    int
}

func (p *ClassificationPolicy) begin(ctx context.Context, opts domain.ScanOptions, progress ports.ProgressReporter) *policyRun {
	run := &policyRun{p: p, opts: opts, progress: progress}
	if opts.Mode == domain.ScanModeFast {
		run.tier2Off = true
		return run
	}
	if p.remote == nil {
		return run
	}
	ok, err := p.quota.Available(ctx)
	switch {
	case err != nil:
		run.denyQuota(ctx, err)
	case !ok:
		run.exhaust(ctx, "daily limit reached")
	}
	return run
}

// classify never fails the run. A non-nil omission means the item was
// skipped and has no result.
func (r *policyRun) classify(ctx context.Context, src ports.Archive, item policyItem) (domain.ClassificationResult, *domain.Omission) {
	p := r.p
	result := domain.ClassificationResult{
		FileName:      item.fileName,
		EntryPath:     item.entry.Path,
		SourceLine:    item.ref.SourceLine,
		Subject:       item.subject,
		SubjectSource: item.source,
		Category:      p.Tier1Category(item.fileName),
		ConfidenceTag: tier1Confidence(item.source),
		State:         domain.StateTier1Only,
	}

	isImage := p.IsImage(item.fileName)
	if r.tier2Off || !ShouldEscalate(isImage, r.opts.IncludeImages, item.subject, p.cfg.FallbackSubject) {
		return result, nil
	}
	if p.remote == nil {
		return fallbackResult(result, "remote classifier not configured"), nil
	}

	req, omission := r.buildRequest(ctx, src, item, isImage)
	if omission != nil {
		return domain.ClassificationResult{}, omission
	}

	claim, granted, err := p.quota.reserve(ctx)
	if err != nil {
		r.denyQuota(ctx, err)
		return result, nil
	}
	if !granted {
		r.exhaust(ctx, "daily limit reached")
		return result, nil
	}

	pending := result
	pending.State = domain.StateTier2Pending
	r.report(ctx, domain.ProgressEvent{Stage: domain.ProgressPending, Path: item.entry.Path, Result: &pending})

	raw, err := p.remote.ClassifyContent(ctx, req)
	dispatched := err == nil || !domain.IsKind(err, domain.ErrNotDispatched)
	if dispatched {
		r.remoteCalls++
	} else if relErr := p.quota.release(ctx, claim); relErr != nil {
		slog.WarnContext(ctx, "quota_refund_failed", "path", item.entry.Path, "error", relErr)
	}
	result = r.applyRemote(ctx, result, raw, err)
	if dispatched {
		// A cancelled wait is noticed by the caller between items.
		_ = p.sleep(ctx, p.cfg.CallDelay)
	}
	return result, nil
}

func (r *policyRun) buildRequest(ctx context.Context, src ports.Archive, item policyItem, isImage bool) (domain.RemoteRequest, *domain.Omission) {
	p := r.p
	req := domain.RemoteRequest{
		FileName:     item.fileName,
		SubjectGuess: item.subject,
		Categories:   domain.KnownCategories,
	}

	wantImage := isImage && r.opts.IncludeImages
	wantText := !isImage && r.opts.IncludeFileContext && p.extractor != nil
	if !wantImage && !wantText {
		return req, nil
	}
	if wantImage && item.entry.UncompressedSize > uint64(p.cfg.MaxInlineBytes) {
		slog.InfoContext(ctx, "inline_image_skipped", "path", item.entry.Path, "size", item.entry.UncompressedSize)
		return req, nil
	}

	data, err := src.Extract(ctx, item.entry.Path)
	if err != nil {
		if domain.IsKind(err, domain.ErrEntryNotFound) {
			return req, &domain.Omission{Path: item.entry.Path, Stage: domain.OmissionExtract, Reason: err.Error()}
		}
		slog.WarnContext(ctx, "entry_extract_failed", "path", item.entry.Path, "error", err)
		return req, nil
	}

	if wantImage {
		req.Image = &domain.InlineImage{MIMEType: imageMIMEType(data, item.fileName), Data: data}
		return req, nil
	}

	text, err := p.extractor.Extract(ctx, item.fileName, data)
	if err != nil {
		slog.DebugContext(ctx, "text_extract_failed", "path", item.entry.Path, "error", err)
		return req, nil
	}
	req.Excerpt = excerpt(text, p.cfg.ExcerptChars)
	return req, nil
}

func (r *policyRun) applyRemote(ctx context.Context, result domain.ClassificationResult, raw string, callErr error) domain.ClassificationResult {
	if callErr != nil {
		if domain.IsKind(callErr, domain.ErrQuotaExhausted) {
			r.exhaust(ctx, "provider rejected request")
		}
		slog.WarnContext(ctx, "remote_classification_failed", "path", result.EntryPath, "error", callErr)
		return fallbackResult(result, callErr.Error())
	}

	verdict, err := ParseRemoteResponse(raw)
	if err != nil {
		slog.WarnContext(ctx, "remote_response_malformed", "path", result.EntryPath, "error", err)
		return fallbackResult(result, "malformed remote response")
	}

	result.Category = normalizeCategory(verdict.Category)
	result.ConfidenceTag = verdict.Confidence
	if result.ConfidenceTag == "" {
		result.ConfidenceTag = domain.ConfidenceRemoteDefault
	}
	result.SuggestedName = suggestedFileName(verdict.SuggestedFilename, result.FileName)
	result.ExtractedText = verdict.OCR
	result.State = domain.StateTier2Succeeded
	return result
}

// exhaust switches Tier 2 off for the rest of the run and logs only once.
func (r *policyRun) exhaust(ctx context.Context, reason string) {
	r.tier2Off = true
	if r.quotaExhausted {
		return
	}
	r.quotaExhausted = true
	slog.WarnContext(ctx, "tier2_quota_exhausted", "reason", reason)
}

// denyQuota fails closed when the counter cannot be read or written.
func (r *policyRun) denyQuota(ctx context.Context, err error) {
	if r.tier2Off {
		return
	}
	r.tier2Off = true
	slog.ErrorContext(ctx, "quota_store_unavailable", "error", err)
}

func (r *policyRun) report(ctx context.Context, event domain.ProgressEvent) {
	if r.progress != nil {
		r.progress.Report(ctx, event)
	}
}

func fallbackResult(result domain.ClassificationResult, reason string) domain.ClassificationResult {
	result.Category = domain.CategoryUncategorized
	result.ConfidenceTag = domain.ConfidenceFallback
	result.SuggestedName = ""
	result.ExtractedText = ""
	result.State = domain.StateTier2Fallback
	result.FailureReason = reason
	return result
}

func tier1Confidence(source domain.MatchSource) string {
	switch source {
	case domain.MatchFilename:
		return domain.ConfidenceFilenameMatch
	case domain.MatchContext:
		return domain.ConfidenceContextMatch
	default:
		return domain.ConfidenceLocalDefault
	}
}

func imageMIMEType(data []byte, fileName string) string {
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(fileName))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
