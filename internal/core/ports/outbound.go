package ports

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

// ArchiveStore opens zip archives without reading their contents and creates
// writers for rebuilt archives.
type ArchiveStore interface {
	Open(ctx context.Context, src io.ReaderAt, size int64) (Archive, error)
	NewWriter(w io.Writer) ArchiveSink
}

// Archive is an open handle. Entry bytes are materialized only on request.
type Archive interface {
	Entries() iter.Seq[domain.ArchiveEntry]
	ReadText(ctx context.Context, path string) (string, error)
	Extract(ctx context.Context, path string) ([]byte, error)
	Rebuild(ctx context.Context, mappings []domain.PathMapping, sink ArchiveSink) (domain.RebuildResult, error)
	Close() error
}

// ArchiveSink receives rebuilt entries one at a time, in archive order.
type ArchiveSink interface {
	WriteEntry(ctx context.Context, entry domain.SinkEntry, body io.Reader) error
	Close() error
}

// TextExtractor turns document bytes into a short plain-text prefix.
type TextExtractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (string, error)
}

// ContentClassifier performs one remote classification request and returns
// the raw model output.
type ContentClassifier interface {
	ClassifyContent(ctx context.Context, req domain.RemoteRequest) (string, error)
}

// QuotaStore persists the daily Tier 2 counter.
type QuotaStore interface {
	Acquire(ctx context.Context, day string, limit int) (bool, error)
	// Release refunds one acquired request; it never drops below zero.
	Release(ctx context.Context, day string) error
	Used(ctx context.Context, day string) (int, error)
}

type Clock interface {
	Now() time.Time
}

type ProgressReporter interface {
	Report(ctx context.Context, event domain.ProgressEvent)
}

// ArchiveUploader pushes a finished archive to external storage.
type ArchiveUploader interface {
	Upload(ctx context.Context, name string, body io.Reader, size int64, token string) (domain.UploadReceipt, error)
}

// ScanRepository persists scan job state.
type ScanRepository interface {
	Create(ctx context.Context, job *domain.ScanJob) error
	GetByID(ctx context.Context, id string) (*domain.ScanJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.ScanStatus, errMessage string) error
	SaveOutcome(ctx context.Context, id string, outcome domain.ScanOutcome) error
}

// ArchiveFile is a stored archive opened for random access.
type ArchiveFile interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// ObjectStorage stores uploaded and organized archives.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	OpenArchive(ctx context.Context, key string) (ArchiveFile, error)
	Create(ctx context.Context, key string) (io.WriteCloser, error)
}

// MessageQueue publishes/consumes scan requests.
type MessageQueue interface {
	PublishScanRequested(ctx context.Context, scanID string) error
	SubscribeScanRequested(ctx context.Context, handler func(context.Context, string) error) error
	Close()
}
