package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

// progressPrinter writes one line per classified item and a line for every
// tenth of the rebuild.
type progressPrinter struct {
	w           io.Writer
	lastPercent int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, lastPercent: -1}
}

func (p *progressPrinter) Report(_ context.Context, event domain.ProgressEvent) {
	switch event.Stage {
	case domain.ProgressPending:
		fmt.Fprintf(p.w, "[%d/%d] %s: asking remote classifier\n", event.Index, event.Total, event.Path)
	case domain.ProgressClassified:
		if event.Result == nil {
			return
		}
		r := event.Result
		name := r.FileName
		if r.SuggestedName != "" {
			name += " -> " + r.SuggestedName
		}
		fmt.Fprintf(p.w, "[%d/%d] %s: %s/%s (%s)\n", event.Index, event.Total, name, r.Subject, r.Category, r.ConfidenceTag)
	case domain.ProgressWritten:
		if event.Total <= 0 {
			return
		}
		percent := event.Index * 100 / event.Total
		if percent/10 > p.lastPercent/10 || event.Index == event.Total {
			if percent != p.lastPercent {
				fmt.Fprintf(p.w, "rebuilding archive: %d/%d (%d%%)\n", event.Index, event.Total, percent)
				p.lastPercent = percent
			}
		}
	}
}
