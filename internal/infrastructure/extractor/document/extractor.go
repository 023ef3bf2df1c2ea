// Package document pulls a short plain-text prefix out of office documents
// and PDFs for the remote classification prompt.
package document

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/kirillkom/semester-scan/internal/infrastructure/extractor/plaintext"
)

const (
	DefaultMaxChars = 3000
	DefaultMaxPages = 3
)

type Options struct {
	MaxChars int
	MaxPages int
}

// Extractor picks a decoder by file extension. Unknown formats yield no text.
type Extractor struct {
	opts  Options
	plain *plaintext.Extractor
}

func NewExtractor(opts Options) *Extractor {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	return &Extractor{opts: opts, plain: plaintext.NewExtractor(0)}
}

func (e *Extractor) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(path.Ext(fileName)); ext {
	case ".pdf":
		text, err = extractPDF(ctx, data, e.opts.MaxPages, e.opts.MaxChars)
	case ".docx":
		text, err = extractDOCX(data, e.opts.MaxChars)
	case ".pptx":
		text, err = extractPPTX(ctx, data, e.opts.MaxChars)
	case ".xlsx":
		text, err = extractXLSX(data, e.opts.MaxChars)
	case ".txt", ".md", ".csv":
		text, err = e.plain.Extract(ctx, fileName, data)
	default:
		slog.DebugContext(ctx, "text_extract_unsupported", "file", fileName)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return truncate(normalizeSpace(text), e.opts.MaxChars), nil
}

func normalizeSpace(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func truncate(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

// capped collects text until limit runes are reached.
type capped struct {
	b     strings.Builder
	limit int
	n     int
}

func (c *capped) full() bool { return c.n >= c.limit }

func (c *capped) write(s string) {
	if c.full() {
		return
	}
	c.b.WriteString(s)
	c.n += len([]rune(s))
}

func (c *capped) String() string { return c.b.String() }
