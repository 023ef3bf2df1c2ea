package usecase

import (
	"path"
	"strings"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

const maxSuggestedStem = 40

func sanitizeFilename(name string) string {
	base := domain.EntryBase(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "archive.zip"
	}
	return base
}

// suggestedFileName turns a model suggestion into "<stem><original ext>".
// An empty result means the original name should be kept.
func suggestedFileName(suggestion, original string) string {
	ext := path.Ext(domain.EntryBase(original))
	stem := strings.TrimSpace(suggestion)
	if ext != "" && strings.HasSuffix(strings.ToLower(stem), strings.ToLower(ext)) {
		stem = stem[:len(stem)-len(ext)]
	}
	if strings.TrimSpace(stem) == "" {
		return ""
	}
	stem = sanitizeFilename(stem)
	if len(stem) > maxSuggestedStem {
		stem = stem[:maxSuggestedStem]
	}
	stem = strings.Trim(stem, "._-")
	if stem == "" {
		return ""
	}
	return stem + ext
}

// pathSegment makes a label usable as one directory name.
func pathSegment(label string) string {
	label = strings.TrimSpace(label)
	label = strings.NewReplacer("/", "_", `\`, "_").Replace(label)
	if label == "" || label == "." || label == ".." {
		return "_"
	}
	return label
}

func normalizeCategory(raw string) domain.Category {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.CategoryUncategorized
	}
	for _, known := range domain.KnownCategories {
		if strings.EqualFold(raw, string(known)) {
			return known
		}
	}
	cleaned := strings.Trim(sanitizeFilename(raw), "._-")
	if cleaned == "" {
		return domain.CategoryUncategorized
	}
	return domain.Category(cleaned)
}
