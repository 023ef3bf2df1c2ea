package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func (r *ScanRepository) Create(ctx context.Context, job *domain.ScanJob) error {
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO scans (id, archive_name, status, options, input_key, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, job.ID, job.ArchiveName, string(job.Status), optionsJSON, job.InputKey, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (r *ScanRepository) GetByID(ctx context.Context, id string) (*domain.ScanJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, archive_name, status, options, input_key, output_key, report, upload_url, error_message, created_at, updated_at
FROM scans
WHERE id = $1
`, id)

	var (
		job        domain.ScanJob
		status     string
		optionsRaw []byte
		reportRaw  []byte
	)
	err := row.Scan(
		&job.ID, &job.ArchiveName, &status, &optionsRaw, &job.InputKey, &job.OutputKey,
		&reportRaw, &job.UploadURL, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrScanNotFound, "get scan", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}

	job.Status = domain.ScanStatus(status)
	if len(optionsRaw) > 0 {
		if err := json.Unmarshal(optionsRaw, &job.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	if len(reportRaw) > 0 {
		var report domain.ScanReport
		if err := json.Unmarshal(reportRaw, &report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		job.Report = &report
	}
	return &job, nil
}

func (r *ScanRepository) UpdateStatus(ctx context.Context, id string, status domain.ScanStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE scans
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}
	return requireRow(result, "update scan status", id)
}

func (r *ScanRepository) SaveOutcome(ctx context.Context, id string, outcome domain.ScanOutcome) error {
	var reportJSON []byte
	if outcome.Report != nil {
		var err error
		if reportJSON, err = json.Marshal(outcome.Report); err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE scans
SET report = $2, output_key = $3, upload_url = $4, updated_at = $5
WHERE id = $1
`, id, reportJSON, outcome.OutputKey, outcome.UploadURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save scan outcome: %w", err)
	}
	return requireRow(result, "save scan outcome", id)
}

func requireRow(result sql.Result, op, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrScanNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
