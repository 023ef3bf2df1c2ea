package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
)

// reportObserver is implemented by progress reporters that also want the
// finished report, such as scan metrics.
type reportObserver interface {
	ObserveReport(report *domain.ScanReport)
}

type ProcessScanUseCase struct {
	repo     ports.ScanRepository
	storage  ports.ObjectStorage
	store    ports.ArchiveStore
	runner   ports.ScanRunner
	uploader ports.ArchiveUploader
	progress ports.ProgressReporter
	clock    ports.Clock

	uploadToken string
}

// NewProcessScanUseCase accepts a nil uploader and a nil progress reporter.
func NewProcessScanUseCase(
	repo ports.ScanRepository,
	storage ports.ObjectStorage,
	store ports.ArchiveStore,
	runner ports.ScanRunner,
	uploader ports.ArchiveUploader,
	progress ports.ProgressReporter,
	uploadToken string,
) *ProcessScanUseCase {
	return &ProcessScanUseCase{
		repo:        repo,
		storage:     storage,
		store:       store,
		runner:      runner,
		uploader:    uploader,
		progress:    progress,
		clock:       SystemClock{},
		uploadToken: uploadToken,
	}
}

func (uc *ProcessScanUseCase) ProcessByID(ctx context.Context, scanID string) error {
	if err := uc.markStatus(ctx, scanID, domain.ScanStatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	outcome, err := uc.processPipeline(ctx, scanID)
	if err == nil {
		err = uc.persistOutcome(ctx, scanID, outcome)
	}
	if err != nil {
		if failErr := uc.markFailed(ctx, scanID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, scanID, domain.ScanStatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessScanUseCase) processPipeline(ctx context.Context, scanID string) (domain.ScanOutcome, error) {
	job, err := uc.repo.GetByID(ctx, scanID)
	if err != nil {
		return domain.ScanOutcome{}, fmt.Errorf("fetch scan by id: %w", err)
	}

	report, outputKey, err := uc.organize(ctx, job)
	if err != nil {
		return domain.ScanOutcome{}, err
	}

	if obs, ok := uc.progress.(reportObserver); ok {
		obs.ObserveReport(report)
	}

	outcome := domain.ScanOutcome{Report: report, OutputKey: outputKey}
	if uc.uploader != nil {
		receipt, err := uc.upload(ctx, outputKey)
		if err != nil {
			return domain.ScanOutcome{}, err
		}
		outcome.UploadURL = receipt.URL
	}
	return outcome, nil
}

func (uc *ProcessScanUseCase) organize(ctx context.Context, job *domain.ScanJob) (*domain.ScanReport, string, error) {
	src, err := uc.storage.OpenArchive(ctx, job.InputKey)
	if err != nil {
		return nil, "", fmt.Errorf("open stored archive: %w", err)
	}
	defer src.Close()

	outputKey := job.ID + "/organized.zip"
	out, err := uc.storage.Create(ctx, outputKey)
	if err != nil {
		return nil, "", fmt.Errorf("create output archive: %w", err)
	}

	sink := uc.store.NewWriter(out)
	report, runErr := uc.runner.Run(ctx, ports.ScanInput{
		Name:     job.ArchiveName,
		Source:   src,
		Size:     src.Size(),
		Options:  job.Options,
		Sink:     sink,
		Progress: uc.progress,
	})
	closeErr := errors.Join(sink.Close(), out.Close())
	if runErr != nil {
		return nil, "", fmt.Errorf("run scan: %w", runErr)
	}
	if closeErr != nil {
		return nil, "", fmt.Errorf("finalize output archive: %w", closeErr)
	}
	return report, outputKey, nil
}

func (uc *ProcessScanUseCase) upload(ctx context.Context, outputKey string) (domain.UploadReceipt, error) {
	file, err := uc.storage.OpenArchive(ctx, outputKey)
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("open output for upload: %w", err)
	}
	defer file.Close()

	name := UploadName(uc.clock.Now())
	receipt, err := uc.uploader.Upload(ctx, name, io.NewSectionReader(file, 0, file.Size()), file.Size(), uc.uploadToken)
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("upload organized archive: %w", err)
	}
	return receipt, nil
}

func (uc *ProcessScanUseCase) persistOutcome(ctx context.Context, scanID string, outcome domain.ScanOutcome) error {
	if err := uc.repo.SaveOutcome(ctx, scanID, outcome); err != nil {
		return fmt.Errorf("save scan outcome: %w", err)
	}
	return nil
}

func (uc *ProcessScanUseCase) markStatus(ctx context.Context, scanID string, status domain.ScanStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, scanID, status, errMessage)
}

func (uc *ProcessScanUseCase) markFailed(ctx context.Context, scanID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, scanID, domain.ScanStatusFailed, processErr.Error())
}

// GetByID and OpenOutput serve the read side of the API.
func (uc *ProcessScanUseCase) GetByID(ctx context.Context, scanID string) (*domain.ScanJob, error) {
	return uc.repo.GetByID(ctx, scanID)
}

func (uc *ProcessScanUseCase) OpenOutput(ctx context.Context, scanID string) (io.ReadCloser, *domain.ScanJob, error) {
	job, err := uc.repo.GetByID(ctx, scanID)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != domain.ScanStatusReady || job.OutputKey == "" {
		return nil, job, domain.WrapError(domain.ErrScanNotReady, "open scan output", fmt.Errorf("scan %s is %s", scanID, job.Status))
	}
	rc, err := uc.storage.Open(ctx, job.OutputKey)
	if err != nil {
		return nil, job, fmt.Errorf("open scan output: %w", err)
	}
	return rc, job, nil
}

// UploadName is the object name used for uploaded archives.
func UploadName(now time.Time) string {
	return "Organized_Semester_" + now.Format(time.DateOnly) + ".zip"
}
