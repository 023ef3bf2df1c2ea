package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/semester-scan/internal/config"
	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
	"github.com/kirillkom/semester-scan/internal/core/subject"
	"github.com/kirillkom/semester-scan/internal/core/transcript"
	"github.com/kirillkom/semester-scan/internal/core/usecase"
	"github.com/kirillkom/semester-scan/internal/infrastructure/archive/ziparchive"
	"github.com/kirillkom/semester-scan/internal/infrastructure/extractor/document"
	"github.com/kirillkom/semester-scan/internal/infrastructure/llm"
	"github.com/kirillkom/semester-scan/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/semester-scan/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/semester-scan/internal/infrastructure/llm/openai"
	"github.com/kirillkom/semester-scan/internal/infrastructure/resilience"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

type RemoteSettings struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

func remoteSettings(cfg config.Config) RemoteSettings {
	return RemoteSettings{
		Provider: cfg.RemoteProvider,
		APIKey:   cfg.RemoteAPIKey,
		Model:    cfg.RemoteModel,
		BaseURL:  cfg.RemoteBaseURL,
		Timeout:  cfg.RemoteTimeout,
	}
}

// KeylessProvider reports whether provider runs without an API key.
func KeylessProvider(provider string) bool {
	switch strings.ToLower(provider) {
	case ProviderOllama, ProviderNone:
		return true
	default:
		return false
	}
}

// NewRemoteClassifier builds the Tier 2 client behind its circuit breaker.
// It returns nil when remote classification is disabled or has no credential,
// in which case every escalation falls back locally without spending quota.
func NewRemoteClassifier(s RemoteSettings, onStateChange func(operation, state string)) (ports.ContentClassifier, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if provider == "" || provider == ProviderNone {
		return nil, nil
	}
	if s.APIKey == "" && !KeylessProvider(provider) {
		slog.Warn("remote_classifier_disabled", "provider", provider, "reason", "missing api key")
		return nil, nil
	}

	var inner ports.ContentClassifier
	switch provider {
	case ProviderGemini:
		inner = gemini.New(gemini.Config{APIKey: s.APIKey, Model: s.Model, BaseURL: s.BaseURL, Timeout: s.Timeout})
	case ProviderOpenAI:
		inner = openai.New(openai.Config{APIKey: s.APIKey, Model: s.Model, BaseURL: s.BaseURL, Timeout: s.Timeout})
	case ProviderOllama:
		inner = ollama.New(s.BaseURL, s.Model, s.Timeout)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "build remote classifier", fmt.Errorf("unknown provider %q", s.Provider))
	}

	policy := resilience.RemoteConfig()
	policy.OnStateChange = onStateChange
	return llm.NewGuard(inner, resilience.NewExecutor(policy), provider), nil
}

func newArchiveStore(cfg config.Config, h domain.Heuristics) *ziparchive.Store {
	return ziparchive.NewStore(ziparchive.Options{
		MetadataPrefixes: h.MetadataPrefixes,
		SpoolThreshold:   cfg.SpoolThreshold,
	})
}

// newScanner assembles parse, classify, organize and rebuild around store.
func newScanner(
	cfg config.Config,
	h domain.Heuristics,
	store ports.ArchiveStore,
	remote ports.ContentClassifier,
	quota *usecase.QuotaGate,
) (*usecase.ScanUseCase, error) {
	parser, err := transcript.NewParser(transcript.Options{
		Extensions:    h.AttachmentExtensions,
		Markers:       h.AttachmentMarkers,
		ContextBefore: h.ContextLinesBefore,
		ContextAfter:  h.ContextLinesAfter,
	})
	if err != nil {
		return nil, err
	}

	extractor := document.NewExtractor(document.Options{
		MaxChars: cfg.DocumentMaxChars,
		MaxPages: cfg.DocumentMaxPages,
	})

	policy := usecase.NewClassificationPolicy(usecase.PolicyConfig{
		Categories:      h.Categories,
		DefaultCategory: h.DefaultCategory,
		FallbackSubject: h.FallbackSubject,
		ImageExtensions: h.ImageExtensions,
		CallDelay:       cfg.RemoteCallDelay,
		ExcerptChars:    cfg.RemoteExcerptChars,
		MaxInlineBytes:  cfg.RemoteMaxImageBytes,
	}, remote, extractor, quota)

	organizer := usecase.NewArchiveOrganizer(usecase.Layout{
		OrganizedRoot:  h.OrganizedRoot,
		QuarantineRoot: h.QuarantineRoot,
		CatchAllRoot:   h.CatchAllRoot,
	})

	return usecase.NewScanUseCase(
		store,
		parser,
		subject.NewClassifier(h.Subjects, h.FallbackSubject),
		policy,
		organizer,
		h.TranscriptExtension,
	), nil
}
