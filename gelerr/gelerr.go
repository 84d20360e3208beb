// Package gelerr is the error-reporting surface shared by every gelpp
// package: a small exception hierarchy (spec.md §7) plus a pluggable
// handler a Manager routes warnings through instead of failing outright.
package gelerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a Error the way spec.md §7 enumerates failure kinds.
type Kind int

const (
	KindIO Kind = iota
	KindFormat
	KindInvariant
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	case KindInvariant:
		return "invariant"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Severity mirrors spec.md §4.G's {info, warning, error, fatal} levels.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Err is the unified Exception type from spec.md §4.G. It always carries a
// Kind and a Severity; Fatal-severity Errs are the ones format/elf/image/
// dwarfline raise to unwind to the top-level caller, per §7's propagation
// policy. Non-fatal ones are routed through a Handler and execution
// continues.
type Err struct {
	Kind     Kind
	Severity Severity
	Message  string
	cause    error
}

func (e *Err) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Severity, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Severity, e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Err) Unwrap() error { return e.cause }

// New builds a fatal-severity Err of the given Kind.
func New(kind Kind, format string, args ...interface{}) *Err {
	return &Err{Kind: kind, Severity: Fatal, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning-severity Err of the given Kind.
func Warnf(kind Kind, format string, args ...interface{}) *Err {
	return &Err{Kind: kind, Severity: Warning, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind/severity to a lower-level error, preserving its stack
// via pkg/errors the way the teacher's go/task.go wraps Cpu-layer errors.
func Wrap(cause error, kind Kind, format string, args ...interface{}) *Err {
	return &Err{
		Kind:     kind,
		Severity: Fatal,
		Message:  fmt.Sprintf(format, args...),
		cause:    errors.WithStack(cause),
	}
}

// Is reports whether err is (or wraps) a *Err of the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Err); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
