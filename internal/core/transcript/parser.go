// Package transcript finds attachment announcements in chat exports.
package transcript

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

type Options struct {
	Extensions    []string
	Markers       []string
	ContextBefore int
	ContextAfter  int
}

// Parser is safe for concurrent use.
type Parser struct {
	mention *regexp.Regexp
	markers []string
	before  int
	after   int
}

func NewParser(opts Options) (*Parser, error) {
	exts := normalizeExtensions(opts.Extensions)
	if len(exts) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build transcript parser", errors.New("no attachment extensions"))
	}

	markers := make([]string, 0, len(opts.Markers))
	for _, m := range opts.Markers {
		if m != "" {
			markers = append(markers, m)
		}
	}
	if len(markers) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build transcript parser", errors.New("no attachment markers"))
	}

	quoted := make([]string, len(exts))
	for i, ext := range exts {
		quoted[i] = regexp.QuoteMeta(ext)
	}
	// Alternation is leftmost-first, so longer extensions go first ("docx" before "doc").
	// The lazy prefix stops at the first extension so "a.pdf and b.pptx" yields a.pdf.
	mention, err := regexp.Compile(`(?i)[\w\-.()\s]+?\.(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compile mention pattern", err)
	}

	return &Parser{
		mention: mention,
		markers: markers,
		before:  max(opts.ContextBefore, 0),
		after:   max(opts.ContextAfter, 1),
	}, nil
}

// Parse scans the transcript once, top to bottom. A line yields at most one
// reference and only when it carries a marker. Whether the file exists in the
// archive is not checked here.
func (p *Parser) Parse(text string) []domain.AttachmentReference {
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	var refs []domain.AttachmentReference
	for i, line := range lines {
		if !p.hasMarker(line) {
			continue
		}
		name := strings.TrimSpace(p.mention.FindString(line))
		if name == "" {
			continue
		}
		refs = append(refs, domain.AttachmentReference{
			SourceLine:    uint32(i + 1),
			FileName:      name,
			ContextWindow: p.window(lines, i),
		})
	}
	return refs
}

// window joins lines [i-before, i+after) clipped to the document. after is at
// least 1, so the announcing line is always part of its own window.
func (p *Parser) window(lines []string, i int) string {
	lo := max(0, i-p.before)
	hi := min(len(lines), i+p.after)
	return strings.Join(lines[lo:hi], " ")
}

func (p *Parser) hasMarker(line string) bool {
	for _, m := range p.markers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func normalizeExtensions(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, ext := range raw {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	slices.SortFunc(out, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return out
}
