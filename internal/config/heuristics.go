package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

type heuristicsFile struct {
	Subjects []struct {
		Subject  string   `yaml:"subject"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"subjects"`
	FallbackSubject string `yaml:"fallback_subject"`

	Categories []struct {
		Category string   `yaml:"category"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"categories"`
	DefaultCategory string `yaml:"default_category"`

	AttachmentExtensions []string `yaml:"attachment_extensions"`
	AttachmentMarkers    []string `yaml:"attachment_markers"`
	ImageExtensions      []string `yaml:"image_extensions"`
	TranscriptExtension  string   `yaml:"transcript_extension"`
	MetadataPrefixes     []string `yaml:"metadata_prefixes"`

	ContextWindow *struct {
		Before int `yaml:"before"`
		After  int `yaml:"after"`
	} `yaml:"context_window"`

	Roots struct {
		Organized  string `yaml:"organized"`
		Quarantine string `yaml:"quarantine"`
		CatchAll   string `yaml:"catch_all"`
	} `yaml:"roots"`
}

// LoadHeuristics overlays the YAML file at path on the built-in tables.
// Sections missing from the file keep their defaults; an empty path returns
// the defaults unchanged.
func LoadHeuristics(path string) (domain.Heuristics, error) {
	h := domain.DefaultHeuristics()
	if path == "" {
		return h, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("read heuristics: %w", err)
	}
	return ParseHeuristics(data)
}

func ParseHeuristics(data []byte) (domain.Heuristics, error) {
	h := domain.DefaultHeuristics()

	var f heuristicsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return h, domain.WrapError(domain.ErrInvalidInput, "parse heuristics", err)
	}

	if len(f.Subjects) > 0 {
		h.Subjects = h.Subjects[:0:0]
		for _, s := range f.Subjects {
			if s.Subject == "" || len(s.Keywords) == 0 {
				return h, domain.WrapError(domain.ErrInvalidInput, "parse heuristics", fmt.Errorf("subject rule needs a name and keywords"))
			}
			h.Subjects = append(h.Subjects, domain.SubjectRule{Subject: domain.Subject(s.Subject), Keywords: s.Keywords})
		}
	}
	if f.FallbackSubject != "" {
		h.FallbackSubject = domain.Subject(f.FallbackSubject)
	}
	if len(f.Categories) > 0 {
		h.Categories = h.Categories[:0:0]
		for _, c := range f.Categories {
			if c.Category == "" {
				return h, domain.WrapError(domain.ErrInvalidInput, "parse heuristics", fmt.Errorf("category rule without a name"))
			}
			h.Categories = append(h.Categories, domain.CategoryRule{Category: domain.Category(c.Category), Keywords: c.Keywords})
		}
	}
	if f.DefaultCategory != "" {
		h.DefaultCategory = domain.Category(f.DefaultCategory)
	}

	if len(f.AttachmentExtensions) > 0 {
		h.AttachmentExtensions = f.AttachmentExtensions
	}
	if len(f.AttachmentMarkers) > 0 {
		h.AttachmentMarkers = f.AttachmentMarkers
	}
	if len(f.ImageExtensions) > 0 {
		h.ImageExtensions = f.ImageExtensions
	}
	if f.TranscriptExtension != "" {
		h.TranscriptExtension = f.TranscriptExtension
	}
	if f.MetadataPrefixes != nil {
		h.MetadataPrefixes = f.MetadataPrefixes
	}
	if f.ContextWindow != nil {
		if f.ContextWindow.Before < 0 || f.ContextWindow.After < 0 {
			return h, domain.WrapError(domain.ErrInvalidInput, "parse heuristics", fmt.Errorf("negative context window"))
		}
		h.ContextLinesBefore = f.ContextWindow.Before
		h.ContextLinesAfter = f.ContextWindow.After
	}

	if f.Roots.Organized != "" {
		h.OrganizedRoot = f.Roots.Organized
	}
	if f.Roots.Quarantine != "" {
		h.QuarantineRoot = f.Roots.Quarantine
	}
	if f.Roots.CatchAll != "" {
		h.CatchAllRoot = f.Roots.CatchAll
	}
	return h, nil
}
