package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a GlideError.
type ErrorCode string

const (
	ErrParseFailed      ErrorCode = "PARSE_FAILED"
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED"
	ErrStorageFailed    ErrorCode = "STORAGE_FAILED"
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrPolicyDenied     ErrorCode = "POLICY_DENIED"
)

// Messages shown to end users. They never include provider or database detail.
const (
	MsgBreakdownFailed = "Failed to break down task. Please try again."
	MsgSplitFailed     = "Failed to split step. Please try again."
	MsgStorageFailed   = "Something went wrong while saving. Please try again."
)

// GlideError is the error type returned across package boundaries.
// Message is user-safe; Cause carries the underlying failure for logs.
type GlideError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the user-safe message only.
func (e *GlideError) Error() string {
	return e.Message
}

// Detail formats the error with its code and cause, for logging.
func (e *GlideError) Detail() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *GlideError) Unwrap() error {
	return e.Cause
}

// Is matches any GlideError with the same code.
func (e *GlideError) Is(target error) bool {
	var ge *GlideError
	if errors.As(target, &ge) {
		return e.Code == ge.Code
	}
	return false
}

func NewError(code ErrorCode, message string) *GlideError {
	return &GlideError{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, cause error) *GlideError {
	return &GlideError{Code: code, Message: message, Cause: cause}
}

// NewParseError reports model output without the expected structure.
func NewParseError(message string) *GlideError {
	return NewError(ErrParseFailed, message)
}

// NewGenerationError wraps a model or parse failure behind a fixed message.
func NewGenerationError(message string, cause error) *GlideError {
	return WrapError(ErrGenerationFailed, message, cause)
}

// NewStorageError wraps a failure from the storage layer.
func NewStorageError(op string, cause error) *GlideError {
	return WrapError(ErrStorageFailed, MsgStorageFailed, fmt.Errorf("%s: %w", op, cause))
}

func NewNotFoundError(what, id string) *GlideError {
	return NewError(ErrNotFound, fmt.Sprintf("%s %s not found", what, id))
}

func hasCode(err error, code ErrorCode) bool {
	var ge *GlideError
	for err != nil {
		if errors.As(err, &ge) {
			if ge.Code == code {
				return true
			}
			err = ge.Cause
			continue
		}
		return false
	}
	return false
}

func IsParseError(err error) bool      { return hasCode(err, ErrParseFailed) }
func IsGenerationError(err error) bool { return hasCode(err, ErrGenerationFailed) }
func IsStorageError(err error) bool    { return hasCode(err, ErrStorageFailed) }
func IsNotFound(err error) bool        { return hasCode(err, ErrNotFound) }

// UserMessage returns what may be shown to an end user for err.
func UserMessage(err error) string {
	var ge *GlideError
	if errors.As(err, &ge) {
		return ge.Message
	}
	return "Something went wrong. Please try again."
}

// Detail returns the loggable form of err.
func Detail(err error) string {
	var ge *GlideError
	if errors.As(err, &ge) {
		return ge.Detail()
	}
	return err.Error()
}
