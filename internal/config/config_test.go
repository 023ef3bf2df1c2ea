package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"QUOTA_DAILY_LIMIT", "REMOTE_CALL_DELAY", "REMOTE_PROVIDER", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT_RPS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.QuotaDailyLimit != 5 {
		t.Fatalf("expected default daily limit 5, got %d", cfg.QuotaDailyLimit)
	}
	if cfg.RemoteCallDelay != 2*time.Second {
		t.Fatalf("expected default call delay 2s, got %v", cfg.RemoteCallDelay)
	}
	if cfg.RemoteProvider != "gemini" {
		t.Fatalf("expected default provider gemini, got %q", cfg.RemoteProvider)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.UploadEnabled() {
		t.Fatalf("uploads must be disabled without an endpoint")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("QUOTA_DAILY_LIMIT", "50")
	t.Setenv("REMOTE_CALL_DELAY", "500ms")
	t.Setenv("REMOTE_PROVIDER", "OpenAI")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := Load()
	if cfg.QuotaDailyLimit != 50 {
		t.Fatalf("expected daily limit 50, got %d", cfg.QuotaDailyLimit)
	}
	if cfg.RemoteCallDelay != 500*time.Millisecond {
		t.Fatalf("expected call delay 500ms, got %v", cfg.RemoteCallDelay)
	}
	if cfg.RemoteProvider != "openai" {
		t.Fatalf("expected provider openai, got %q", cfg.RemoteProvider)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.RateLimitRPS)
	}
	if !cfg.UploadEnabled() || !cfg.MinIOUseSSL {
		t.Fatalf("expected uploads enabled over tls")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("QUOTA_DAILY_LIMIT", "many")
	t.Setenv("REMOTE_CALL_DELAY", "2")

	cfg := Load()
	if cfg.QuotaDailyLimit != 5 || cfg.RemoteCallDelay != 2*time.Second {
		t.Fatalf("expected defaults for malformed values, got %d and %v", cfg.QuotaDailyLimit, cfg.RemoteCallDelay)
	}
}

func TestParseHeuristicsOverlaysDefaults(t *testing.T) {
	h, err := ParseHeuristics([]byte(`
subjects:
  - subject: Chemistry
    keywords: [chem, organic, titration]
attachment_markers: ["(file attached)"]
context_window:
  before: 2
  after: 0
roots:
  organized: Semester_2
`))
	if err != nil {
		t.Fatalf("ParseHeuristics() error = %v", err)
	}
	if len(h.Subjects) != 1 || h.Subjects[0].Subject != "Chemistry" {
		t.Fatalf("unexpected subjects %+v", h.Subjects)
	}
	if h.AttachmentMarkers[0] != "(file attached)" {
		t.Fatalf("unexpected markers %v", h.AttachmentMarkers)
	}
	if h.ContextLinesBefore != 2 || h.ContextLinesAfter != 0 {
		t.Fatalf("unexpected context window %d/%d", h.ContextLinesBefore, h.ContextLinesAfter)
	}
	if h.OrganizedRoot != "Semester_2" || h.QuarantineRoot != "Junk" {
		t.Fatalf("unexpected roots %q %q", h.OrganizedRoot, h.QuarantineRoot)
	}
	def := domain.DefaultHeuristics()
	if len(h.Categories) != len(def.Categories) || h.DefaultCategory != def.DefaultCategory {
		t.Fatalf("categories should keep defaults")
	}
	if len(def.Subjects) != 4 {
		t.Fatalf("defaults must not be mutated, got %d subjects", len(def.Subjects))
	}
}

func TestParseHeuristicsRejectsBadInput(t *testing.T) {
	cases := []string{
		"subjects: [{subject: X}]",
		"context_window: {before: -1, after: 1}",
		"subjects: {",
	}
	for _, raw := range cases {
		if _, err := ParseHeuristics([]byte(raw)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("ParseHeuristics(%q) error = %v, want invalid input", raw, err)
		}
	}
}

func TestLoadHeuristicsFromFile(t *testing.T) {
	h, err := LoadHeuristics("")
	if err != nil || h.OrganizedRoot != "College_Docs" {
		t.Fatalf("LoadHeuristics(\"\") = %v, %v", h.OrganizedRoot, err)
	}

	path := filepath.Join(t.TempDir(), "heuristics.yaml")
	if err := os.WriteFile(path, []byte("default_category: Lab\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	h, err = LoadHeuristics(path)
	if err != nil {
		t.Fatalf("LoadHeuristics() error = %v", err)
	}
	if h.DefaultCategory != domain.CategoryLab {
		t.Fatalf("expected Lab default, got %q", h.DefaultCategory)
	}

	if _, err := LoadHeuristics(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
