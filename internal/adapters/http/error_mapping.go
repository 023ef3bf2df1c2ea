package httpadapter

import (
	"net/http"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrScanNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrScanNotReady):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrCorruptArchive), domain.IsKind(err, domain.ErrNoTranscriptFound):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrQuotaExhausted):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
