// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
//
// Every failure carries a stable machine-readable code distinct from its human
// message, so clients branch on the code and never on message text.
package apierror

import "net/http"

// Stable machine codes. Business-rule violations are 400 (resubmit with
// corrected input); state conflicts are 409 (re-fetch current state).
const (
	CodeValidation = "VALIDATION"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL"

	CodePreviousShiftOpen     = "BIZ_PREVIOUS_SHIFT_OPEN"
	CodeJustificationRequired = "BIZ_JUSTIFICATION_REQUIRED"
	CodeInvalidMeterReading   = "BIZ_INVALID_METER_READING"
	CodeInvalidDipReading     = "BIZ_INVALID_DIP_READING"
	CodeIncompleteSubmission  = "BIZ_INCOMPLETE_SUBMISSION"
	CodeNoPriceConfigured     = "BIZ_NO_PRICE_CONFIGURED"
	CodeUllageExceeded        = "BIZ_ULLAGE_EXCEEDED"

	CodeShiftNotOpen      = "CONFLICT_SHIFT_NOT_OPEN"
	CodeDuplicateShift    = "CONFLICT_DUPLICATE_SHIFT"
	CodeDuplicateBL       = "CONFLICT_DUPLICATE_BL"
	CodeStaleVersion      = "CONFLICT_STALE_VERSION"
	CodeInvalidTransition = "CONFLICT_INVALID_TRANSITION"
	CodeInProgress        = "CONFLICT_IN_PROGRESS"
)

// Error is the typed error services return. Handlers map it straight onto the
// response envelope without inspecting the message.
type Error struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (e *Error) Error() string { return e.Detail }

// BadRequest builds a 400 business-rule error.
func BadRequest(code, detail string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Detail: detail}
}

// Conflict builds a 409 state-conflict error.
func Conflict(code, detail string) *Error {
	return &Error{Status: http.StatusConflict, Code: code, Detail: detail}
}

// NotFound builds a 404 error.
func NotFound(detail string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Detail: detail}
}

// Internal builds a 500 error with a generic client-safe message.
// The underlying cause is logged, never returned.
func Internal() *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Detail: "internal server error"}
}

// From coerces any error into an *Error, defaulting to Internal for
// unexpected failures.
func From(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return Internal()
}

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func New(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// ValidationError wraps multiple field errors.
type ValidationError struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: CodeValidation, Detail: "validation failed", Fields: fields}
}
