package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrorNoConversation ErrorCode = "NO_CONVERSATION"
	ErrorNotFound       ErrorCode = "NOT_FOUND"
	ErrorPersistence    ErrorCode = "PERSISTENCE_ERROR"
	ErrorInternal       ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the code carried by err, or ErrorInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ErrorInternal
}

// IsPersistence reports whether err only signals a failed save; the in-memory
// mutation that preceded it has been applied.
func IsPersistence(err error) bool {
	return err != nil && CodeOf(err) == ErrorPersistence
}

var errNoConversation = newError(ErrorNoConversation, "no_current_conversation", nil)
