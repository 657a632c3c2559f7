package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a handoff error code.
type ErrorCode string

const (
	ErrInvalidRequest         ErrorCode = "INVALID_REQUEST"           // 400
	ErrMalformedAddress       ErrorCode = "MALFORMED_ADDRESS"         // 400
	ErrNotFound               ErrorCode = "NOT_FOUND"                 // 404
	ErrUnsupportedContent     ErrorCode = "UNSUPPORTED_CONTENT"       // 415
	ErrInternal               ErrorCode = "INTERNAL"                  // 500
	ErrDispatchTargetNotFound ErrorCode = "DISPATCH_TARGET_NOT_FOUND" // 502
	ErrHostUnavailable        ErrorCode = "HOST_UNAVAILABLE"          // 503
)

// ShareError represents a structured error with code, status, and details.
type ShareError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ShareError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ShareError {
	return &ShareError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewMalformedAddress creates a 400 error for an address that is not a share handoff.
func NewMalformedAddress(address, reason string) *ShareError {
	return &ShareError{
		Code:    ErrMalformedAddress,
		Status:  400,
		Message: fmt.Sprintf("not a share address: %s", reason),
		Details: map[string]any{"address": address, "reason": reason},
	}
}

// NewNotFound creates a 404 error for a missing record.
func NewNotFound(identifier string) *ShareError {
	return &ShareError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewUnsupportedContent creates a 415 error when no attachment yields a URI.
func NewUnsupportedContent(candidates int) *ShareError {
	return &ShareError{
		Code:    ErrUnsupportedContent,
		Status:  415,
		Message: fmt.Sprintf("no shared attachment contains a URL (%d candidates)", candidates),
		Details: map[string]any{"candidates": candidates},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the cause is kept in Details for logging.
func NewInternal(err error) *ShareError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &ShareError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// NewDispatchTargetNotFound creates a 502 error when no opener accepted the address.
func NewDispatchTargetNotFound(tried []string) *ShareError {
	return &ShareError{
		Code:    ErrDispatchTargetNotFound,
		Status:  502,
		Message: fmt.Sprintf("no opener could handle the address (tried %v)", tried),
		Details: map[string]any{"tried": tried},
	}
}

// NewHostUnavailable creates a 503 error when no running host accepted the address.
func NewHostUnavailable(endpoint string, err error) *ShareError {
	msg := fmt.Sprintf("host not reachable at %s", endpoint)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &ShareError{
		Code:    ErrHostUnavailable,
		Status:  503,
		Message: msg,
		Details: map[string]any{"endpoint": endpoint},
	}
}

// Is checks if an error (or anything it wraps) is a ShareError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *ShareError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
