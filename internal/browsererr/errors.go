// Package browsererr defines the error taxonomy shared by the snapshot, query,
// locator and live-session layers. Every error carries a Kind that callers
// match with errors.Is, plus the operation and target that produced it.
package browsererr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. A Kind is itself an error so it can be used as
// the target of errors.Is.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	// ErrParse means the page HTML could not be parsed into a tree.
	ErrParse Kind = "parse error"
	// ErrNotFound means a query that required a result matched nothing.
	ErrNotFound Kind = "element not found"
	// ErrLocator means no stable locator could be derived for a node.
	ErrLocator Kind = "locator error"
	// ErrStaleElement means a locator no longer resolves against the live DOM.
	ErrStaleElement Kind = "stale element"
	// ErrInteraction means the element exists but cannot accept the action.
	ErrInteraction Kind = "interaction error"
	// ErrNavigation means a page load failed or did not finish in time.
	ErrNavigation Kind = "navigation error"
	// ErrInvalidQuery means a selector or query value is malformed.
	ErrInvalidQuery Kind = "invalid query"
	// ErrClosed means the session was already closed.
	ErrClosed Kind = "session closed"
)

// Error is a classified failure scoped to a single call.
type Error struct {
	Kind   Kind
	Op     string // e.g. "click", "goto", "find"
	Target string // URL, selector or locator involved, if any
	Err    error  // underlying cause, may be nil
}

// New builds a classified error.
func New(kind Kind, op, target string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Target: target, Err: cause}
}

// Newf builds a classified error whose cause is a formatted message.
func Newf(kind Kind, op, target, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Target: target, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Op + ": " + string(e.Kind)
	if e.Target != "" {
		msg += fmt.Sprintf(" (%s)", e.Target)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause so errors.Is(err, context.DeadlineExceeded) keeps working.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of the first classified error in err's chain, or ""
// if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
