package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/studentgrades/studentgrades-api/internal/domain/shared"
	"github.com/studentgrades/studentgrades-api/pkg/logger"
)

const (
	msgValidation = "One or more validation errors occurred."
	msgUnexpected = "An unexpected error occurred."
	msgBadJSON    = "The request body is not valid JSON."
	msgTooLarge   = "Request body too large."
)

// requestError is a malformed request detected before any service call.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

// statusFor maps an error to its HTTP status. missingStudent is the status
// used for shared.ErrStudentNotFound, which depends on the route.
func statusFor(err error, missingStudent int) int {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return re.status
	case shared.IsValidation(err):
		return http.StatusBadRequest
	case shared.IsStudentNotFound(err):
		return missingStudent
	case shared.IsNotFound(err):
		return http.StatusNotFound
	case shared.IsDuplicateEmail(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func bodyFor(err error, status int) errorResponse {
	if status == http.StatusInternalServerError {
		return errorResponse{Message: msgUnexpected}
	}

	var ve *shared.ValidationError
	if errors.As(err, &ve) {
		return errorResponse{Message: msgValidation, Errors: ve.Fields}
	}

	var re *requestError
	if errors.As(err, &re) {
		return errorResponse{Message: re.message}
	}

	if msg, ok := shared.MessageOf(err); ok {
		return errorResponse{Message: msg}
	}
	return errorResponse{Message: err.Error()}
}

// writeError answers with the status and body for err. Missing students
// referenced by a request body are a client error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorWith(w, r, err, http.StatusBadRequest)
}

func (s *Server) writeErrorWith(w http.ResponseWriter, r *http.Request, err error, missingStudent int) {
	status := statusFor(err, missingStudent)
	log := logger.FromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.String("path", r.URL.Path), logger.Err(err))
	} else {
		log.Debug("request rejected", logger.Int("status", status), logger.Err(err))
	}
	writeJSON(w, status, bodyFor(err, status))
}
