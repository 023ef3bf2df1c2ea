package ports

import (
	"context"
	"io"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

// ScanInput is one archive to organize. Progress may be nil.
type ScanInput struct {
	Name     string
	Source   io.ReaderAt
	Size     int64
	Options  domain.ScanOptions
	Sink     ArchiveSink
	Progress ProgressReporter
}

// ScanRunner runs the whole pipeline on one archive.
type ScanRunner interface {
	Run(ctx context.Context, input ScanInput) (*domain.ScanReport, error)
}

// ScanIngestor accepts an uploaded archive and queues a scan.
type ScanIngestor interface {
	Upload(ctx context.Context, filename string, opts domain.ScanOptions, body io.Reader) (*domain.ScanJob, error)
}

// ScanProcessor runs a queued scan.
type ScanProcessor interface {
	ProcessByID(ctx context.Context, scanID string) error
}

// ScanReader exposes job state and finished output.
type ScanReader interface {
	GetByID(ctx context.Context, scanID string) (*domain.ScanJob, error)
	OpenOutput(ctx context.Context, scanID string) (io.ReadCloser, *domain.ScanJob, error)
}

type QuotaReporter interface {
	Usage(ctx context.Context) (domain.QuotaUsage, error)
}
