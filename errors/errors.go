// Package errors provides the structured error types used across the
// transcription pipeline. Every failure surfaced to a caller identifies the
// failing stage and provider through a machine-readable code; raw backend
// responses never leak past this package.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code identifying the failing stage.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Provider names the recognition backend involved, if any.
	Provider string `json:"provider,omitempty"`
	// Retryable indicates if the whole operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	prefix := string(e.Code)
	if e.Provider != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Code, e.Provider)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// AsAppError extracts an *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// --- Constructors, one per pipeline stage ---

// Configuration creates an error for invalid or unknown configuration.
// Never retryable; surfaced before any I/O occurs.
func Configuration(message string) *AppError {
	return &AppError{
		Code: ErrCodeConfiguration, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// UnknownProvider creates a configuration error for an unrecognized provider
// identifier.
func UnknownProvider(name string) *AppError {
	return &AppError{
		Code: ErrCodeConfiguration, Message: fmt.Sprintf("unknown provider %q", name),
		Provider: name, HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Download creates an error for a failed media download.
func Download(url string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDownload, Message: fmt.Sprintf("download failed for %s", url),
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// Transcode creates an error for a failed audio extraction or conversion.
func Transcode(path string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTranscode, Message: fmt.Sprintf("audio extraction failed for %s", path),
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false, Cause: cause,
	}
}

// Upload creates an error for a failed audio upload to a remote backend.
func Upload(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeUpload, Message: "audio upload to recognition backend failed",
		Provider: provider, HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// Submit creates an error for a failed recognition task submission.
func Submit(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeSubmit, Message: "recognition task submission failed",
		Provider: provider, HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// RemoteTask creates an error for a recognition task that failed on the
// backend, or for exhausted poll retries.
func RemoteTask(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeRemoteTask, Message: "recognition task failed on the backend",
		Provider: provider, HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// Recognition creates an error for a failed local model inference.
func Recognition(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeRecognition, Message: "speech recognition failed",
		Provider: provider, HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// Timeout creates an error for an operation that exceeded its deadline.
// Not retried automatically; the caller may retry the whole request.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s exceeded its deadline", operation),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: false,
	}
}

// Cache creates an error for a cache read or write failure. Callers treat
// this as non-fatal: it is logged and the operation proceeds as a miss.
func Cache(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCache, Message: "transcript cache operation failed",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// Internal creates an error for an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
