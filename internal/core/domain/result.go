package domain

import (
	"errors"
	"fmt"
)

// ErrorKind tags the stage failure recorded on a failed document.
type ErrorKind string

const (
	ErrorKindNotFound          ErrorKind = "not_found"
	ErrorKindInvalidTransition ErrorKind = "invalid_transition"
	ErrorKindInvalidInput      ErrorKind = "invalid_input"
	ErrorKindStorage           ErrorKind = "storage"
	ErrorKindStore             ErrorKind = "store"
	ErrorKindInternal          ErrorKind = "internal"
)

// StageError is the Err arm of Result.
type StageError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return "stage error"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Result is either Ok(Value) or Err(StageError).
type Result[T any] struct {
	Value T
	Err   *StageError
}

func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Fail[T any](kind ErrorKind, stage string, err error) Result[T] {
	return Result[T]{Err: &StageError{Kind: kind, Stage: stage, Err: err}}
}

func (r Result[T]) IsOk() bool {
	return r.Err == nil
}

// KindOf picks the ErrorKind for a store error using the sentinel kinds.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrInvalidTransition):
		return ErrorKindInvalidTransition
	case errors.Is(err, ErrInvalidInput):
		return ErrorKindInvalidInput
	default:
		return fallback
	}
}
