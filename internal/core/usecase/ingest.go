package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
)

type IngestScanUseCase struct {
	repo    ports.ScanRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestScanUseCase(
	repo ports.ScanRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestScanUseCase {
	return &IngestScanUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestScanUseCase) Upload(
	ctx context.Context,
	filename string,
	opts domain.ScanOptions,
	body io.Reader,
) (*domain.ScanJob, error) {
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload archive", errors.New("archive body is required"))
	}
	if opts.Mode == "" {
		opts.Mode = domain.ScanModePro
	}
	if _, ok := domain.ParseScanMode(string(opts.Mode)); !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload archive", fmt.Errorf("unknown scan mode %q", opts.Mode))
	}

	id := uuid.NewString()
	inputKey := id + "/" + sanitizeFilename(filename)
	now := time.Now().UTC()

	size, err := uc.storage.Save(ctx, inputKey, body)
	if err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if size == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload archive", errors.New("archive is empty"))
	}

	job := &domain.ScanJob{
		ID:          id,
		ArchiveName: strings.TrimSpace(filename),
		Status:      domain.ScanStatusQueued,
		Options:     opts,
		InputKey:    inputKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create scan job: %w", err)
	}

	if err := uc.queue.PublishScanRequested(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish scan request: %w", err)
	}

	return job, nil
}
