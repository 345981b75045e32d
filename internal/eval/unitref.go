// Package eval implements spec.md §4.1: the evaluator that turns a unit
// reference into a fully materialized eval-directory tree, dispatching to a
// scripting host (see the mqf subpackage) when the reference names a source
// file rather than an already-evaluated record.
package eval

import (
	"fmt"
	"strings"

	"github.com/viperML/miq/internal/miqerr"
	"github.com/viperML/miq/internal/unit"
)

// UnitRef is a parsed unit reference, per spec.md §4.1's grammar. Exactly
// one of Result or (Source, Selector) is populated.
type UnitRef struct {
	// Result is set when the reference named an already-evaluated eval
	// file: "<root>/eval/<result>.toml".
	Result unit.Result
	// Source and Selector are set when the reference named a source file
	// and a dotted element path: "<source-file>#<element-path>".
	Source   string
	Selector string
}

// ParseUnitRef parses s against root's eval directory convention.
func ParseUnitRef(root, s string) (UnitRef, error) {
	parts := strings.SplitN(s, "#", 2)

	switch len(parts) {
	case 1:
		path := parts[0]
		prefix := root + "/eval/"
		if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, ".toml") {
			return UnitRef{}, miqerr.New(miqerr.Config, fmt.Sprintf("%q is not a valid unit reference", s))
		}
		id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), ".toml")
		if id == "" {
			return UnitRef{}, miqerr.New(miqerr.Config, fmt.Sprintf("%q is not a valid unit reference", s))
		}
		return UnitRef{Result: unit.Result(id)}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return UnitRef{}, miqerr.New(miqerr.Config, fmt.Sprintf("%q is not a valid unit reference", s))
		}
		return UnitRef{Source: parts[0], Selector: parts[1]}, nil
	default:
		return UnitRef{}, miqerr.New(miqerr.Config, fmt.Sprintf("%q is not a valid unit reference", s))
	}
}
