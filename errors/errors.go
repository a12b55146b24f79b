package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseQueue    Phase = "queue"    // rendezvous queue operations
	PhaseTransfer Phase = "transfer" // shared-memory two-phase transfer
	PhaseDispatch Phase = "dispatch" // worker request dispatch
	PhaseSocket   Phase = "socket"   // socket adapter
	PhaseReceive  Phase = "receive"  // host proxy receive paths
	PhaseCompile  Phase = "compile"  // public compile entry point
)

// Kind categorizes the error
type Kind string

const (
	KindTimeout        Kind = "timeout"
	KindCancelled      Kind = "cancelled"
	KindTagMismatch    Kind = "tag_mismatch"
	KindDoubleWait     Kind = "double_wait"
	KindProtocolMisuse Kind = "protocol_misuse"
	KindNotConnected   Kind = "not_connected"
	KindInvalidData    Kind = "invalid_data"
	KindUnhandledFrame Kind = "unhandled_frame"
	KindClosed         Kind = "closed"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Want   string
	Got    string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Want != "" || e.Got != "" {
		b.WriteString(": ")
		if e.Want != "" && e.Got != "" {
			b.WriteString("want ")
			b.WriteString(e.Want)
			b.WriteString(", got ")
			b.WriteString(e.Got)
		} else if e.Want != "" {
			b.WriteString("want ")
			b.WriteString(e.Want)
		} else {
			b.WriteString("got ")
			b.WriteString(e.Got)
		}
	}

	if e.Detail != "" {
		if e.Want != "" || e.Got != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Want sets the expected tag
func (b *Builder) Want(tag string) *Builder {
	b.err.Want = tag
	return b
}

// Got sets the observed tag
func (b *Builder) Got(tag string) *Builder {
	b.err.Got = tag
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Timeout creates a blocking-timeout error
func Timeout(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTimeout,
		Detail: what,
	}
}

// Cancelled creates a cancellation error
func Cancelled(phase Phase, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindCancelled,
		Cause: cause,
	}
}

// TagMismatch creates a tag mismatch error
func TagMismatch(phase Phase, want, got string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindTagMismatch,
		Want:  want,
		Got:   got,
	}
}

// DoubleWait creates a double-registration error
func DoubleWait(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDoubleWait,
		Detail: what,
	}
}

// Misuse creates a protocol misuse error
func Misuse(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindProtocolMisuse,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// NotConnected creates a not-connected error
func NotConnected(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotConnected,
		Detail: "socket is not connected",
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Closed creates an error for operations on a closed component
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: what,
	}
}
