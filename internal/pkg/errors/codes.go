package errors

import (
	"fmt"
	"net/http"
)

// Error code constants. Errors carry code + params; clients render the
// user-facing message from the code, backend logs stay in English.

// Transition engine error codes.
const (
	CodeUnknownStage     = "UNKNOWN_STAGE"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeConflict         = "CONFLICT"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// Deal error codes.
const (
	CodeDealNotFound = "DEAL_NOT_FOUND"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Request error codes.
const (
	CodeInvalidRequestField = "INVALID_REQUEST_FIELD"
)

// Convenience constructors using predefined codes.

// ErrUnknownStagef creates an error for a stage id missing from the registry.
func ErrUnknownStagef(stageID string) *AppError {
	return (&AppError{
		Code:       CodeUnknownStage,
		Message:    fmt.Sprintf("stage %q is not defined in the pipeline", stageID),
		HTTPStatus: http.StatusBadRequest,
	}).WithParams(map[string]interface{}{"stage": stageID})
}

// ErrDealNotFoundf creates a deal not found error.
func ErrDealNotFoundf(dealID string) *AppError {
	return (&AppError{
		Code:       CodeDealNotFound,
		Message:    "deal not found",
		HTTPStatus: http.StatusNotFound,
	}).WithParams(map[string]interface{}{"deal_id": dealID})
}

// ErrValidationFailed creates a validation rejection carrying the hard errors.
func ErrValidationFailed(errs []string) *AppError {
	fieldErrors := make([]FieldError, 0, len(errs))
	for _, msg := range errs {
		fieldErrors = append(fieldErrors, FieldError{Code: CodeValidationFailed, Message: msg})
	}
	return (&AppError{
		Code:       CodeValidationFailed,
		Message:    "transition blocked by validation rules",
		HTTPStatus: http.StatusBadRequest,
	}).WithFieldErrors(fieldErrors)
}

// ErrCapacityExceededf creates a WIP limit rejection with count and limit.
func ErrCapacityExceededf(stageName string, current, limit int) *AppError {
	return (&AppError{
		Code:       CodeCapacityExceeded,
		Message:    fmt.Sprintf("WIP limit of %d reached for %s", limit, stageName),
		HTTPStatus: http.StatusConflict,
	}).WithParams(map[string]interface{}{
		"stage":   stageName,
		"current": current,
		"limit":   limit,
	})
}

// ErrTransitionConflict creates a retryable concurrent-modification error.
func ErrTransitionConflict(err error) *AppError {
	return Wrap(err, CodeConflict, "deal was modified concurrently, retry the request", http.StatusConflict)
}

// ErrStoreUnavailable creates a retryable infrastructure failure.
func ErrStoreUnavailable(err error) *AppError {
	return Wrap(err, CodeStoreUnavailable, "deal store is unavailable", http.StatusServiceUnavailable)
}
