package core

import (
	"errors"
	"fmt"
)

// Error kinds. Adapters wrap their failures with one of these so callers
// can tell the causes apart with errors.Is.
var (
	ErrConfig    = errors.New("configuration error")
	ErrMailbox   = errors.New("mailbox error")
	ErrAuth      = errors.New("authentication failed")
	ErrMalformed = errors.New("malformed message")
	ErrIndex     = errors.New("search engine error")
	ErrPartial   = errors.New("run finished with failures")
)

// KindError tags an underlying error with one of the error kinds
type KindError struct {
	Kind error
	Op   string
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Op: op, Err: err}
}

// Errorf builds a new error of the given kind
func Errorf(kind error, op string, format string, args ...interface{}) error {
	return &KindError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
