package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Code so a wrapped sentinel compares equal to the bare one.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrLoad          = &AppError{Code: "STORE_001", Message: "failed to load user record"}
	ErrPersist       = &AppError{Code: "STORE_002", Message: "failed to persist user record"}
	ErrNotOnboarded  = &AppError{Code: "STORE_003", Message: "no user profile; run onboarding first"}
	ErrOnboarded     = &AppError{Code: "STORE_004", Message: "user profile already exists"}
	ErrStorageDriver = &AppError{Code: "STORE_005", Message: "unknown storage driver"}

	ErrInvalidInput = &AppError{Code: "VALID_001", Message: "invalid input"}

	ErrLookupFailed = &AppError{Code: "LOOKUP_001", Message: "remote medicine lookup failed"}

	ErrNotificationFailed = &AppError{Code: "NOTIFY_001", Message: "failed to show notification"}
	ErrPermissionDenied   = &AppError{Code: "NOTIFY_002", Message: "notification permission not granted"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapAs wraps err under the code and message of a sentinel.
func WrapAs(sentinel *AppError, err error) *AppError {
	return Wrap(err, sentinel.Code, sentinel.Message)
}

// Invalid builds a VALID_001 error with a field-specific message.
func Invalid(format string, args ...interface{}) *AppError {
	return &AppError{Code: ErrInvalidInput.Code, Message: fmt.Sprintf(format, args...)}
}
