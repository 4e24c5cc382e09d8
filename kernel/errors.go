package kernel

import (
	"errors"
	"fmt"

	"github.com/gokern/gokern/internal/abi"
)

// Error is a structured kernel error: a failed operation plus the abi.Code
// the kernel core returned for it, with enough context (task, op name) to
// log or report without the caller re-deriving it from the raw Code.
type Error struct {
	Op   string   // operation that failed, e.g. "Spawn", "Ipc"
	Tid  abi.Tid  // task involved, 0 if not applicable
	Code abi.Code // the kernel's error taxonomy
	Msg  string   // human-readable message, defaults to Code.String()
	Inner error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Tid != 0 {
		return fmt.Sprintf("kernel: %s: %s (tid=%d)", e.Op, msg, e.Tid)
	}
	return fmt.Sprintf("kernel: %s: %s", e.Op, msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison against another *Error: it matches when
// the Codes are equal. Any other target does not match.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// NewError builds an *Error for a failed operation not tied to a particular
// task (e.g. a malformed boot image).
func NewError(op string, code abi.Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewTaskError builds an *Error for a failed operation on a specific task.
func NewTaskError(op string, tid abi.Tid, code abi.Code) *Error {
	return &Error{Op: op, Tid: tid, Code: code}
}

// WrapError wraps an existing error with kernel context. If inner is
// already an *Error, its Code/Tid survive and only Op is replaced, mirroring
// the op-rewrite a caller higher up the call stack wants.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ke, ok := inner.(*Error); ok {
		return &Error{Op: op, Tid: ke.Tid, Code: ke.Code, Msg: ke.Msg, Inner: ke.Inner}
	}
	return &Error{Op: op, Code: abi.InvalidArg, Msg: inner.Error(), Inner: inner}
}

// codeErr turns a non-OK abi.Code into an *Error, or nil if code is OK.
func codeErr(op string, tid abi.Tid, code abi.Code) error {
	if code == abi.OK {
		return nil
	}
	return NewTaskError(op, tid, code)
}

// IsCode reports whether err is a *Error (directly or via wrapping) whose
// Code matches code.
func IsCode(err error, code abi.Code) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code == code
	}
	return false
}
