package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// QuotaRepository keeps the daily remote request counter in one row per day
// so every worker shares it.
type QuotaRepository struct {
	db *sql.DB
}

func NewQuotaRepository(db *sql.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

func (r *QuotaRepository) Acquire(ctx context.Context, day string, limit int) (bool, error) {
	var used int
	err := r.db.QueryRowContext(ctx, `
INSERT INTO remote_quota (day, used) VALUES ($1::date, 1)
ON CONFLICT (day) DO UPDATE SET used = remote_quota.used + 1
WHERE remote_quota.used < $2
RETURNING used
`, day, limit).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire quota: %w", err)
	}
	return true, nil
}

func (r *QuotaRepository) Release(ctx context.Context, day string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE remote_quota SET used = used - 1
WHERE day = $1::date AND used > 0
`, day)
	if err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	return nil
}

func (r *QuotaRepository) Used(ctx context.Context, day string) (int, error) {
	var used int
	err := r.db.QueryRowContext(ctx, `SELECT used FROM remote_quota WHERE day = $1::date`, day).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota: %w", err)
	}
	return used, nil
}
