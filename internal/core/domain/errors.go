package domain

import (
	"errors"
	"fmt"
)

var (
	ErrScanNotFound = errors.New("scan not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")

	// Fatal for a whole run.
	ErrCorruptArchive    = errors.New("corrupt archive")
	ErrNoTranscriptFound = errors.New("no transcript found")

	// Scoped to a single entry or item; the run continues.
	ErrEntryNotFound         = errors.New("entry not found")
	ErrCorruptEntry          = errors.New("corrupt entry")
	ErrRemoteClassification  = errors.New("remote classification failed")
	ErrQuotaExhausted        = errors.New("quota exhausted")
	ErrNotDispatched         = errors.New("remote call not dispatched")
	ErrScanNotReady          = errors.New("scan output not ready")
	ErrMissingRemoteSettings = errors.New("remote classifier credential missing")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
