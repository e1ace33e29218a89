package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mercator-hq/arbiter/pkg/codec"
	"mercator-hq/arbiter/pkg/engine"
	"mercator-hq/arbiter/pkg/registry"
	"mercator-hq/arbiter/pkg/telemetry/logging"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	// Type categorizes the error, one of the ErrorType constants.
	Type string `json:"type"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Details lists validation problems when Type is ErrorTypeInvalidDefinition.
	Details []string `json:"details,omitempty"`

	RequestID string `json:"requestId,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest    = "invalid_request"
	ErrorTypeInvalidDefinition = "invalid_definition"
	ErrorTypeNotFound          = "not_found"
	ErrorTypeTooLarge          = "request_too_large"
	ErrorTypeServerError       = "server_error"
)

// apiError carries the HTTP status for an error raised by a handler.
type apiError struct {
	status  int
	kind    string
	message string
	details []string
	cause   error
}

func (e *apiError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *apiError) Unwrap() error {
	return e.cause
}

func badRequest(message string, cause error) *apiError {
	return &apiError{status: http.StatusBadRequest, kind: ErrorTypeInvalidRequest, message: message, cause: cause}
}

func notFound(message string, cause error) *apiError {
	return &apiError{status: http.StatusNotFound, kind: ErrorTypeNotFound, message: message, cause: cause}
}

func invalidDefinition(message string, details []string) *apiError {
	return &apiError{
		status:  http.StatusUnprocessableEntity,
		kind:    ErrorTypeInvalidDefinition,
		message: message,
		details: details,
	}
}

// classify maps errors from the domain packages onto API errors.
func classify(err error) *apiError {
	var (
		ae         *apiError
		maxBytes   *http.MaxBytesError
		decodeErr  *codec.DecodeError
		notValid   *engine.NotValidatedError
		transition *registry.TransitionError
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &maxBytes):
		return &apiError{
			status:  http.StatusRequestEntityTooLarge,
			kind:    ErrorTypeTooLarge,
			message: "request body too large",
			cause:   err,
		}
	case errors.As(err, &notValid):
		return invalidDefinition("workflow failed validation", notValid.Errors)
	case errors.As(err, &decodeErr):
		return invalidDefinition("definition could not be decoded", []string{decodeErr.Error()})
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return badRequest("malformed JSON body", err)
	case errors.Is(err, registry.ErrNotFound):
		return notFound("workflow not found", err)
	case errors.As(err, &transition):
		return badRequest(err.Error(), nil)
	case errors.Is(err, engine.ErrNilDefinition):
		return badRequest("workflow is required", nil)
	}
	return &apiError{
		status:  http.StatusInternalServerError,
		kind:    ErrorTypeServerError,
		message: "an internal error occurred",
		cause:   err,
	}
}

// writeError renders err as an ErrorResponse. Internal causes are logged,
// never returned to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ae := classify(err)
	if ae.status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
		)
	}

	message := ae.message
	if ae.status < http.StatusInternalServerError && ae.cause != nil {
		message = ae.Error()
	}
	writeJSON(w, ae.status, ErrorResponse{Error: ErrorDetail{
		Type:      ae.kind,
		Message:   message,
		Details:   ae.details,
		RequestID: logging.RequestID(r.Context()),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
