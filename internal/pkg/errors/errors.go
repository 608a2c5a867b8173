package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error. Every failure surfaced to an acting
// identity or to the dashboard carries exactly one Kind.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindUnauthorized   Kind = "unauthorized"
	KindAlreadyClaimed Kind = "already_claimed"
	KindNotClaimant    Kind = "not_claimant"
	KindInvalidInput   Kind = "invalid_input"
	KindPlatformCall   Kind = "platform_call_failed"
	KindSystemDisabled Kind = "system_disabled"
	KindConflict       Kind = "conflict"
	KindInternal       Kind = "internal"
)

// AppError represents an application error with a stable kind code
type AppError struct {
	Kind    Kind        `json:"kind"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match AppErrors by kind, so sentinel comparisons like
// errors.Is(err, ErrAlreadyClaimed) keep working across wrapping.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Kind == appErr.Kind
	}
	return false
}

// New creates a new AppError
func New(kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
	}
}

// Wrap wraps an existing error with a kind and message
func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// WithDetails returns a copy of the error with details attached
func (e *AppError) WithDetails(details interface{}) *AppError {
	return &AppError{
		Kind:    e.Kind,
		Message: e.Message,
		Details: details,
		Err:     e.Err,
	}
}

// Common errors
var (
	ErrNotFound        = New(KindNotFound, "resource not found")
	ErrRoomNotFound    = New(KindNotFound, "room is not managed")
	ErrRequestNotFound = New(KindNotFound, "request not found or expired")
	ErrMemberNotFound  = New(KindNotFound, "member not found")

	ErrUnauthorized  = New(KindUnauthorized, "you are not allowed to do that")
	ErrNotOwner      = New(KindUnauthorized, "only the room owner can use these controls")
	ErrNotPrivileged = New(KindUnauthorized, "you do not have permission to manage requests")

	ErrAlreadyClaimed = New(KindAlreadyClaimed, "request is already claimed")
	ErrNotClaimant    = New(KindNotClaimant, "only the claimant can resolve this request")

	ErrInvalidInput = New(KindInvalidInput, "invalid input")
	ErrInvalidLimit = New(KindInvalidInput, "limit must be between 0 and 99")

	ErrSystemDisabled = New(KindSystemDisabled, "this system is disabled")

	ErrPlatformCall = New(KindPlatformCall, "platform call failed")

	ErrConflict = New(KindConflict, "resource conflict")
	ErrInternal = New(KindInternal, "internal server error")
)

// PlatformCall wraps a failed outbound platform call with the operation name.
func PlatformCall(err error, op string) *AppError {
	return Wrap(err, KindPlatformCall, fmt.Sprintf("platform call %s failed", op))
}

// KindOf returns the kind of an error, or KindInternal for unknown errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// GetHTTPStatus maps an error kind to an HTTP status for the dashboard surface.
func GetHTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindAlreadyClaimed, KindNotClaimant, KindConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindSystemDisabled:
		return http.StatusServiceUnavailable
	case KindPlatformCall:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetMessage returns the user-facing message for an error.
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
