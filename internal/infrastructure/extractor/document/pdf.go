package document

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

func extractPDF(ctx context.Context, data []byte, maxPages, maxChars int) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", domain.WrapError(domain.ErrCorruptEntry, "extract pdf", fmt.Errorf("parser panic: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrCorruptEntry, "extract pdf", err)
	}

	out := &capped{limit: maxChars}
	pages := min(r.NumPage(), maxPages)
	for i := 1; i <= pages && !out.full(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		out.write(content)
		out.write("\n")
	}
	return out.String(), nil
}
