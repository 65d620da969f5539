// Package errors classifies pipeline failures by kind and keeps a stack
// trace of where they were raised.
package errors

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind names a failure class.
type Kind string

// Failure classes.
const (
	KindFetch  Kind = "FETCH"
	KindParse  Kind = "PARSE"
	KindNotify Kind = "NOTIFY"
	KindStore  Kind = "STORE"
	KindConfig Kind = "CONFIG"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Stack   []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StackTrace returns the captured stack.
func (e *Error) StackTrace() []byte {
	return e.Stack
}

// New builds an Error of the given kind. If err already carries a go-errors
// stack, that stack is reused.
func New(kind Kind, message string, err error) *Error {
	var stack []byte
	switch {
	case err == nil:
		stack = goerrors.Wrap(message, 2).Stack()
	default:
		var withStack *goerrors.Error
		if stderrors.As(err, &withStack) {
			stack = withStack.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	}
	return &Error{Kind: kind, Message: message, Err: err, Stack: stack}
}

// Fetch wraps a source retrieval failure.
func Fetch(message string, err error) *Error { return New(KindFetch, message, err) }

// Parse wraps an extraction failure.
func Parse(message string, err error) *Error { return New(KindParse, message, err) }

// Notify wraps an alert delivery failure.
func Notify(message string, err error) *Error { return New(KindNotify, message, err) }

// Store wraps a history read/write failure.
func Store(message string, err error) *Error { return New(KindStore, message, err) }

// Config wraps a configuration failure.
func Config(message string, err error) *Error { return New(KindConfig, message, err) }

// KindOf reports the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// StackOf returns the stack of the first classified error in err's chain.
func StackOf(err error) []byte {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Stack
	}
	return nil
}
