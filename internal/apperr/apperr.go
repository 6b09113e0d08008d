// Package apperr defines the error kinds surfaced by the voice pipeline.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnsupportedFormat Kind = "unsupported_format"
	KindModelNotFound     Kind = "model_not_found"
	KindEmptyInput        Kind = "empty_input"
	KindEngineUnavailable Kind = "engine_unavailable"
	KindSynthesisFailed   Kind = "synthesis_failed"
	KindComposeFailed     Kind = "compose_failed"
	KindConfig            Kind = "config"
	KindStorage           Kind = "storage"
	KindUnknown           Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error

	// Diagnostics holds captured engine output, if any.
	Diagnostics string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
	if e.Diagnostics != "" {
		msg += ": " + e.Diagnostics
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// Wrap attaches a kind to err. Errors that already carry a kind are
// returned as is so the innermost classification wins.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return New(kind, op, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first typed error in the chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsInput reports whether err was caused by the request rather than the
// deployment or the engine.
func IsInput(err error) bool {
	switch KindOf(err) {
	case KindUnsupportedFormat, KindEmptyInput:
		return true
	}
	return false
}
