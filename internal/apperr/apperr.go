// Package apperr defines the error taxonomy shared by all pipeline stages.
// Callers classify failures by Kind instead of matching error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the failure domain of an error.
type Kind string

const (
	KindConfig      Kind = "config"
	KindStorage     Kind = "storage"
	KindOCR         Kind = "ocr"
	KindLLM         Kind = "llm"
	KindEPUB        Kind = "epub"
	KindTranslation Kind = "translation"
)

// Error is a kind-tagged error. It wraps an optional cause so errors.Is and
// errors.As keep working through the pipeline.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a kind-tagged error without a cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a kind-tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an existing error. Returns nil when err
// is nil so call sites can wrap unconditionally.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
