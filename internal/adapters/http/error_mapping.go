package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

type errorResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrPrecondition):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrAnalysisFailed):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessages returns what a caller may see; server-side failures are
// reduced to their status text.
func errorMessages(err error, status int) []string {
	if messages := domain.PreconditionMessages(err); len(messages) > 0 {
		return messages
	}
	if status >= http.StatusInternalServerError {
		return []string{http.StatusText(status)}
	}
	return []string{err.Error()}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Success: false, Errors: errorMessages(err, status)})
}

func writeErrorMessages(w http.ResponseWriter, status int, messages ...string) {
	writeJSON(w, status, errorResponse{Success: false, Errors: messages})
}
