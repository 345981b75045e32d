// Package invariant provides contract assertions for miq.
//
// Preconditions and invariants here are programming-error detectors, not
// user-facing validation: a failing assertion panics, because the only way
// it can fail is a bug in this binary (a corrupt unit record is a
// miqerr.EvalSchema error returned to the caller, never a panic).
package invariant

import "fmt"

// Precondition checks an input contract at function entry.
func Precondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Invariant checks an internal consistency condition.
func Invariant(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if v is nil; name is used in the panic message.
func NotNil(v interface{}, name string) {
	if v == nil {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

func fail(kind, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	panic(fmt.Sprintf("%s VIOLATION: %s", kind, msg))
}
