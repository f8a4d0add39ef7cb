package httpadapter

import (
	"net/http"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrDocumentNotFound), domain.IsKind(err, domain.ErrCaptureNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal detail of unexpected failures from clients.
func errorMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "storage operation failed"
	}
	return err.Error()
}
