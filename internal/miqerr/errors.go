// Package miqerr implements the error taxonomy of spec.md §7: every fatal
// condition the core can raise is tagged with a Kind and carries zero or
// more Suggestions, so a single top-level formatter (cmd/miq's FormatError)
// can render any failure consistently instead of every call site hand
// rolling fmt.Errorf output.
package miqerr

import (
	"errors"
	"fmt"
)

// Kind is the closed taxonomy from spec.md §7.
type Kind string

const (
	Config         Kind = "config"          // bad CLI, missing env
	EvalSchema     Kind = "eval_schema"     // record/selector/deserialize failure
	Graph          Kind = "graph"           // cycle, missing dep, ceiling exceeded
	Transient      Kind = "transient"       // network I/O, not auto-retried
	Permanent      Kind = "permanent"       // permission, non-2xx, disk full
	Sandbox        Kind = "sandbox"         // namespace/mount/pivot/exec setup
	BuildScript    Kind = "build_script"    // non-zero child exit
	LockContention Kind = "lock_contention" // another instance holds /miq/lock
)

// Error is the error type returned by every fallible operation in the core.
type Error struct {
	Kind        Kind
	Msg         string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error of the given Kind with no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an Error of the given Kind wrapping cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// WithSuggestions returns a copy of e with suggestions appended.
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	cp := *e
	cp.Suggestions = append(append([]string{}, e.Suggestions...), suggestions...)
	return &cp
}

// KindOf extracts the Kind of err if it (or something it wraps) is an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// BuildFailureSuggestions builds the three standard suggestions spec.md §4.3
// requires on any realization failure: the eval path, the log file path, and
// the (partial) store path left behind for post-mortem.
func BuildFailureSuggestions(evalPath, logPath, storePath string) []string {
	return []string{
		fmt.Sprintf("inspect the unit record: %s", evalPath),
		fmt.Sprintf("inspect the build log: %s", logPath),
		fmt.Sprintf("inspect the partial output: %s", storePath),
	}
}
