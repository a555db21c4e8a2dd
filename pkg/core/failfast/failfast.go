package failfast

import (
	"fmt"
	"reflect"
	"runtime/debug"
)

// InvariantError is the panic value raised by this package.
// Stack holds the goroutine stack captured at the failing check.
type InvariantError struct {
	Message string
	Cause   error
	Stack   []byte
}

func (e *InvariantError) Error() string {
	if e.Cause != nil {
		return "fail-fast: " + e.Message + ": " + e.Cause.Error()
	}
	return "fail-fast: " + e.Message
}

func (e *InvariantError) Unwrap() error {
	return e.Cause
}

// Err panics if err != nil (fail-fast principle)
// Includes stack trace for debugging
func Err(err error) {
	if err != nil {
		panic(&InvariantError{Message: "unexpected error", Cause: err, Stack: debug.Stack()})
	}
}

// If panics if condition is false
// Allows formatted messages with args
func If(condition bool, message string, args ...interface{}) {
	if !condition {
		panic(&InvariantError{Message: fmt.Sprintf(message, args...), Stack: debug.Stack()})
	}
}

// NotNil panics if ptr is nil
// Handles both untyped nil and typed nil pointers correctly
func NotNil(ptr interface{}, name string) {
	if ptr == nil {
		panic(&InvariantError{Message: name + " is nil", Stack: debug.Stack()})
	}
	v := reflect.ValueOf(ptr)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan:
		if v.IsNil() {
			panic(&InvariantError{Message: name + " is nil", Stack: debug.Stack()})
		}
	}
}

// Recover converts a panic into an error stored in *errp.
// Must be called directly via defer:
//
//	defer failfast.Recover(&err)
//
// Panics with an *InvariantError are stored as is; any other value is
// wrapped into one.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	switch v := r.(type) {
	case *InvariantError:
		*errp = v
	case error:
		*errp = &InvariantError{Message: "panic", Cause: v, Stack: debug.Stack()}
	default:
		*errp = &InvariantError{Message: fmt.Sprintf("panic: %v", v), Stack: debug.Stack()}
	}
}
