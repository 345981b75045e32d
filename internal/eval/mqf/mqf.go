// Package mqf is the host-function API a unit source interprets against:
// the Go-source equivalent of the original project's mqf.mk_fetch/mqf.package
// Lua globals (spec.md §4.1's "scripting host" collaborator). A unit source
// declares package-level variables built by calling Fetch/Package; it has
// no package clause of its own (the host prepends "package miqsrc"), e.g.:
//
//	import "mqf/mqf"
//
//	var hello = mqf.Fetch(mqf.FetchInput{URL: "https://example.org/hello.txt"})
//
// Every unit.Unit built this way is recorded in a per-evaluation registry so
// the evaluator can recursively write the whole dependency closure to disk
// without re-walking the interpreter.
package mqf

import (
	"fmt"
	"net/url"
	"path"
	"sync"

	"github.com/viperML/miq/internal/unit"
)

var (
	mu       sync.Mutex
	root     string
	registry map[unit.Result]unit.Unit
)

// SetRoot configures the store root used to resolve interpolated store
// paths and resets the unit registry. The host calls this once before
// interpreting a source.
func SetRoot(r string) {
	mu.Lock()
	defer mu.Unlock()
	root = r
	registry = make(map[unit.Result]unit.Unit)
}

// Registry returns every unit.Unit built by Fetch or Package since the last
// SetRoot call, keyed by its Result.
func Registry() map[unit.Result]unit.Unit {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[unit.Result]unit.Unit, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

func getRoot() string {
	mu.Lock()
	defer mu.Unlock()
	return root
}

func record(u unit.Unit) unit.Unit {
	mu.Lock()
	defer mu.Unlock()
	registry[u.ID()] = u
	return u
}

// FetchInput is the argument shape for Fetch.
type FetchInput struct {
	Name       string
	URL        string
	Integrity  string
	Executable bool
}

func (in FetchInput) name() string {
	if in.Name != "" {
		return in.Name
	}
	if parsed, err := url.Parse(in.URL); err == nil {
		if base := path.Base(parsed.Path); base != "." && base != "/" {
			return base
		}
	}
	return in.URL
}

// Fetch builds and registers a Fetch unit. Name defaults to the last path
// segment of URL when unset, matching the original project's convention.
func Fetch(in FetchInput) unit.Unit {
	f := unit.Fetch{
		Name:       in.name(),
		URL:        in.URL,
		Integrity:  in.Integrity,
		Executable: in.Executable,
	}
	f.Result = unit.DeriveFetchID(f)
	return record(unit.Unit{Fetch: &f})
}

// PackageInput is the argument shape for Package.
type PackageInput struct {
	Name    string
	Version string
	Deps    []unit.Unit
	Script  MetaText
	Env     map[string]MetaText
}

// Package builds and registers a Package unit. Every dependency named by an
// interpolated Script or Env value is folded into Deps alongside the
// explicit ones, per spec.md §4.1's string-interpolation invariant: any
// identifier textually present in a Package's script or env also appears in
// its deps.
func Package(in PackageInput) unit.Unit {
	depSet := make(map[unit.Result]struct{}, len(in.Deps))
	for _, d := range in.Deps {
		depSet[d.ID()] = struct{}{}
	}
	for _, d := range in.Script.Deps {
		depSet[d] = struct{}{}
	}
	for _, mt := range in.Env {
		for _, d := range mt.Deps {
			depSet[d] = struct{}{}
		}
	}

	deps := make([]unit.Result, 0, len(depSet))
	for d := range depSet {
		deps = append(deps, d)
	}

	env := make([]unit.EnvVar, 0, len(in.Env))
	for k, mt := range in.Env {
		env = append(env, unit.EnvVar{Key: k, Value: mt.Text})
	}

	p := unit.Package{
		Name:    in.Name,
		Version: in.Version,
		Deps:    deps,
		Script:  in.Script.Text,
		Env:     env,
	}
	p.Result = unit.DerivePackageID(p)
	return record(unit.Unit{Package: &p})
}

// MetaText is the structured interpolation result spec.md §4.1 requires: a
// string paired with the set of unit identifiers textually embedded in it.
// Pushing this through the scripting-host boundary as a value (rather than
// a bare string) is what lets Package fold interpolated deps automatically.
type MetaText struct {
	Text string
	Deps []unit.Result
}

// Interpolate converts a plain string or a unit.Unit into a MetaText. A
// Unit's text is its store path under the configured root; a plain string
// carries no dependencies.
func Interpolate(v any) MetaText {
	switch x := v.(type) {
	case string:
		return MetaText{Text: x}
	case MetaText:
		return x
	case unit.Unit:
		return MetaText{Text: x.ID().StorePath(getRoot()), Deps: []unit.Result{x.ID()}}
	default:
		return MetaText{Text: fmt.Sprintf("%v", x)}
	}
}

// Text concatenates the interpolated text of each part and unions their
// Deps, implementing spec.md §4.1's "compound templates accumulate
// extra-deps as the union of all interpolated units."
func Text(parts ...any) MetaText {
	var out MetaText
	depSet := make(map[unit.Result]struct{})
	for _, p := range parts {
		mt := Interpolate(p)
		out.Text += mt.Text
		for _, d := range mt.Deps {
			depSet[d] = struct{}{}
		}
	}
	out.Deps = make([]unit.Result, 0, len(depSet))
	for d := range depSet {
		out.Deps = append(out.Deps, d)
	}
	return out
}
