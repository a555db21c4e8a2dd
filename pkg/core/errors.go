package core

import "fmt"

// Error codes shared across packages
const (
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeInvalidState  = "INVALID_STATE"
	CodeIO            = "IO"
)

// Error is a coded error. Cause, when set, is reachable through errors.Is/As.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code so sentinel values compare equal
// to wrapped instances carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// NewError creates a coded error
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a coded error wrapping cause
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
