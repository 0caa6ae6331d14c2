package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeNoContainer  = "NO_CONTAINER"
	ErrCodeEmptyResult  = "EMPTY_RESULT"
	ErrCodeTimeout      = "HARVEST_TIMEOUT"
	ErrCodeCanceled     = "HARVEST_CANCELED"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodePersist      = "PERSIST_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Matching compares codes only, so any
// HarvestError carrying the same code satisfies the check.
var (
	ErrNoContainer = &HarvestError{Code: ErrCodeNoContainer, Message: "scrollable results container not found"}
	ErrEmptyResult = &HarvestError{Code: ErrCodeEmptyResult, Message: "no records extracted"}
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HarvestError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type HarvestError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *HarvestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HarvestError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a HarvestError with the same code.
func (e *HarvestError) Is(target error) bool {
	t, ok := target.(*HarvestError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewHarvestError creates a new HarvestError.
func NewHarvestError(code, message string, err error) *HarvestError {
	return &HarvestError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *HarvestError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
