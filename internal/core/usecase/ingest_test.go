package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

type ingestRepoFake struct {
	created *domain.ScanJob
	err     error
}

func (f *ingestRepoFake) Create(_ context.Context, job *domain.ScanJob) error {
	if f.err != nil {
		return f.err
	}
	copyJob := *job
	f.created = &copyJob
	return nil
}

func (f *ingestRepoFake) GetByID(context.Context, string) (*domain.ScanJob, error) {
	return nil, errors.New("not implemented")
}
func (f *ingestRepoFake) UpdateStatus(context.Context, string, domain.ScanStatus, string) error {
	return errors.New("not implemented")
}
func (f *ingestRepoFake) SaveOutcome(context.Context, string, domain.ScanOutcome) error {
	return errors.New("not implemented")
}

type ingestQueueFake struct {
	scanID string
	err    error
}

func (f *ingestQueueFake) PublishScanRequested(_ context.Context, scanID string) error {
	if f.err != nil {
		return f.err
	}
	f.scanID = scanID
	return nil
}

func (f *ingestQueueFake) SubscribeScanRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func (f *ingestQueueFake) Close() {}

func TestIngestUploadSuccess(t *testing.T) {
	repo := &ingestRepoFake{}
	storage := newStorageFake()
	queue := &ingestQueueFake{}
	uc := NewIngestScanUseCase(repo, storage, queue)

	job, err := uc.Upload(context.Background(), "WhatsApp Chat (1).zip", domain.ScanOptions{IncludeImages: true}, bytes.NewBufferString("PK"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if job.Status != domain.ScanStatusQueued {
		t.Fatalf("expected queued status, got %s", job.Status)
	}
	if job.Options.Mode != domain.ScanModePro {
		t.Fatalf("expected default pro mode, got %q", job.Options.Mode)
	}
	if !strings.HasSuffix(job.InputKey, "/WhatsApp_Chat__1_.zip") {
		t.Fatalf("unexpected input key: %s", job.InputKey)
	}
	if storage.objects[job.InputKey] != "PK" {
		t.Fatalf("unexpected stored body: %q", storage.objects[job.InputKey])
	}
	if repo.created == nil || repo.created.ID != job.ID {
		t.Fatalf("expected job to be persisted, got %+v", repo.created)
	}
	if queue.scanID != job.ID {
		t.Fatalf("expected published id %s, got %s", job.ID, queue.scanID)
	}
}

func TestIngestUploadRejectsUnknownMode(t *testing.T) {
	uc := NewIngestScanUseCase(&ingestRepoFake{}, newStorageFake(), &ingestQueueFake{})

	_, err := uc.Upload(context.Background(), "a.zip", domain.ScanOptions{Mode: "turbo"}, bytes.NewBufferString("PK"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestIngestUploadRejectsEmptyArchive(t *testing.T) {
	repo := &ingestRepoFake{}
	uc := NewIngestScanUseCase(repo, newStorageFake(), &ingestQueueFake{})

	_, err := uc.Upload(context.Background(), "a.zip", domain.ScanOptions{}, strings.NewReader(""))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if repo.created != nil {
		t.Fatalf("empty archive must not create a job")
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	repo := &ingestRepoFake{}
	queue := &ingestQueueFake{err: errors.New("nats down")}
	uc := NewIngestScanUseCase(repo, newStorageFake(), queue)

	_, err := uc.Upload(context.Background(), "a.zip", domain.ScanOptions{}, bytes.NewBufferString("PK"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish scan request") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIngestUploadStorageError(t *testing.T) {
	storage := newStorageFake()
	storage.saveErr = errors.New("disk full")
	uc := NewIngestScanUseCase(&ingestRepoFake{}, storage, &ingestQueueFake{})

	_, err := uc.Upload(context.Background(), "a.zip", domain.ScanOptions{}, io.LimitReader(strings.NewReader("PK"), 2))
	if err == nil || !strings.Contains(err.Error(), "save to object storage") {
		t.Fatalf("expected storage error, got %v", err)
	}
}
