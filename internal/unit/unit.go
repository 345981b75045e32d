// Package unit implements spec.md §3: the Unit data model (Fetch and
// Package) and the Result content-addressed identifier derived from a
// unit's canonical serialization.
package unit

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/mod/semver"

	"github.com/viperML/miq/internal/invariant"
)

// Result is the content-addressed identifier of a Unit: "<human-name>-<hex>".
// It is purely an identity (collision avoidance, not cryptographic binding),
// per spec.md §3.
type Result string

// EvalPath is "<root>/eval/<result>.toml".
func (r Result) EvalPath(root string) string {
	return filepath.Join(root, "eval", string(r)+".toml")
}

// StorePath is "<root>/store/<result>".
func (r Result) StorePath(root string) string {
	return filepath.Join(root, "store", string(r))
}

// LogPath is "<root>/log/<result>.log".
func (r Result) LogPath(root string) string {
	return filepath.Join(root, "log", string(r)+".log")
}

// EnvVar is one entry of a Package's ordered environment map. Units store
// Env as a slice (not a Go map) so that canonicalization does not depend on
// Go's randomized map iteration order; Canonicalize sorts it by Key.
type EnvVar struct {
	Key   string
	Value string
}

// Fetch downloads a file from a URL into the store, per spec.md §3/§4.5.
type Fetch struct {
	Result     Result
	Name       string
	URL        string
	Integrity  string
	Executable bool
}

// Package runs a shell script in the sandbox, per spec.md §3/§4.6.
type Package struct {
	Result  Result
	Name    string
	Version string // optional; "" means absent
	Deps    []Result
	Script  string
	Env     []EnvVar
}

// Unit is the tagged sum spec.md §3 describes: exactly one of Fetch or
// Package is non-nil.
type Unit struct {
	Fetch   *Fetch
	Package *Package
}

// ID returns the Result embedded in whichever variant is set.
func (u Unit) ID() Result {
	switch {
	case u.Fetch != nil:
		return u.Fetch.Result
	case u.Package != nil:
		return u.Package.Result
	default:
		invariant.Invariant(false, "unit has neither Fetch nor Package set")
		return ""
	}
}

// Deps returns the dependency set of a Package, or nil for a Fetch (which
// has no deps).
func (u Unit) Deps() []Result {
	if u.Package == nil {
		return nil
	}
	return u.Package.Deps
}

// Canonicalize sorts Deps and Env in place so repeated calls to ID and
// codec marshaling are insensitive to construction order, matching
// spec.md §3's "deps is an ordered set" / "env is an ordered map" language.
func (u *Unit) Canonicalize() {
	if u.Package == nil {
		return
	}
	sortResults(u.Package.Deps)
	sort.Slice(u.Package.Env, func(i, j int) bool {
		return u.Package.Env[i].Key < u.Package.Env[j].Key
	})
}

func sortResults(rs []Result) {
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
}

// fetchHashInput and packageHashInput are the canonical hash-input shapes:
// the same fields as Fetch/Package, minus Result (held at zero per spec.md
// §3's identifier invariant), with a struct field order fixed by the Go
// compiler and slices pre-sorted, so CBOR canonical encoding of these types
// is a pure function of content.
type fetchHashInput struct {
	Name       string
	URL        string
	Integrity  string
	Executable bool
}

type packageHashInput struct {
	Name    string
	Version string
	Deps    []string
	Script  string
	Env     []EnvVar
}

var canonicalEncMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("miq: building canonical CBOR encoder: %v", err))
	}
	return mode
}()

// CanonicalBytes returns the deterministic CBOR encoding that ID hashes.
func (f *Fetch) CanonicalBytes() []byte {
	b, err := canonicalEncMode.Marshal(fetchHashInput{
		Name:       f.Name,
		URL:        f.URL,
		Integrity:  f.Integrity,
		Executable: f.Executable,
	})
	invariant.Invariant(err == nil, "canonical fetch encoding must not fail: %v", err)
	return b
}

// CanonicalBytes returns the deterministic CBOR encoding that ID hashes.
func (p *Package) CanonicalBytes() []byte {
	deps := make([]string, len(p.Deps))
	for i, d := range p.Deps {
		deps[i] = string(d)
	}
	sort.Strings(deps)

	env := append([]EnvVar(nil), p.Env...)
	sort.Slice(env, func(i, j int) bool { return env[i].Key < env[j].Key })

	b, err := canonicalEncMode.Marshal(packageHashInput{
		Name:    p.Name,
		Version: normalizeVersion(p.Version),
		Deps:    deps,
		Script:  p.Script,
		Env:     env,
	})
	invariant.Invariant(err == nil, "canonical package encoding must not fail: %v", err)
	return b
}

// normalizeVersion canonicalizes syntactically-valid semver so "1.2.3" and
// "v1.2.3" hash identically (SPEC_FULL.md §3); anything else passes through
// unchanged, since packaged software routinely carries non-semver versions.
func normalizeVersion(v string) string {
	if v == "" {
		return ""
	}
	candidate := v
	if !strings.HasPrefix(candidate, "v") {
		candidate = "v" + candidate
	}
	if semver.IsValid(candidate) {
		return semver.Canonical(candidate)
	}
	return v
}

// humanName is the "<human-name>" half of a Result: the Package's
// "name-version" (or bare "name" if version is absent), or the Fetch's
// name, matching the original project's convention.
func humanName(name, version string) string {
	if version == "" {
		return name
	}
	return fmt.Sprintf("%s-%s", name, version)
}

// DeriveFetchID computes the Result for a Fetch whose Result field is not
// yet set (or is being re-derived for verification).
func DeriveFetchID(f Fetch) Result {
	f.Result = ""
	hash := xxhash.Sum64(f.CanonicalBytes())
	return Result(fmt.Sprintf("%s-%x", humanName(f.Name, ""), hash))
}

// DerivePackageID computes the Result for a Package whose Result field is
// not yet set (or is being re-derived for verification).
func DerivePackageID(p Package) Result {
	p.Result = ""
	hash := xxhash.Sum64(p.CanonicalBytes())
	return Result(fmt.Sprintf("%s-%x", humanName(p.Name, normalizeVersion(p.Version)), hash))
}

// Verify checks the identifier invariant of spec.md §3: u.ID() must equal
// the identifier derived from the unit's own canonical bytes.
func Verify(u Unit) bool {
	switch {
	case u.Fetch != nil:
		return u.Fetch.Result == DeriveFetchID(*u.Fetch)
	case u.Package != nil:
		return u.Package.Result == DerivePackageID(*u.Package)
	default:
		return false
	}
}
