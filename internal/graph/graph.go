// Package graph builds the dependency DAG spec.md §4.2 describes: given a
// root Unit and a lookup of every Unit it (transitively) depends on, build
// builds an adjacency structure over Results, detects cycles, and exposes a
// dependency-first build order for the scheduler to walk.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/viperML/miq/internal/miqerr"
	"github.com/viperML/miq/internal/unit"
)

// maxCycleDepth bounds the depth-first search: a legitimate dependency
// chain in a package ecosystem essentially never nests past this, so a
// search that exceeds it is almost certainly a cycle the visiting-set
// check failed to catch early, or a pathological input. Mirrors the
// original project's max_cycles = 10 recursion ceiling.
const maxCycleDepth = 10

// Lookup resolves a Result to its Unit. The graph package never owns unit
// storage; it is handed a lookup over whatever the caller already loaded
// (the eval directory, or an in-memory map in tests).
type Lookup func(unit.Result) (unit.Unit, bool)

// Graph is the resolved dependency DAG rooted at one or more Results. Nodes
// are deduplicated by Result identity: a Result reachable via two different
// paths appears once.
type Graph struct {
	nodes map[unit.Result]unit.Unit
	// order is nodes in post-order (completion) sequence: every
	// element's dependencies appear before it. This is also the build
	// order the scheduler consumes.
	order []unit.Result
}

// CycleError reports a dependency cycle discovered while building a Graph.
type CycleError struct {
	Path []unit.Result
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, r := range e.Path {
		names[i] = string(r)
	}
	return fmt.Sprintf("dependency cycle: %s", strings.Join(names, " -> "))
}

// Build performs a depth-first walk from roots, resolving every dependency
// through lookup, deduplicating nodes by Result, and failing with a
// miqerr.Graph error if a cycle (wrapping a *CycleError), a missing
// dependency, or a chain deeper than maxCycleDepth is found.
func Build(roots []unit.Result, lookup Lookup) (*Graph, error) {
	g := &Graph{nodes: make(map[unit.Result]unit.Unit)}
	visiting := make(map[unit.Result]bool)
	done := make(map[unit.Result]bool)

	var visit func(r unit.Result, path []unit.Result) error
	visit = func(r unit.Result, path []unit.Result) error {
		if done[r] {
			return nil
		}
		if visiting[r] {
			cycle := append(append([]unit.Result(nil), path...), r)
			return miqerr.Wrap(miqerr.Graph, &CycleError{Path: cycle}, "building dependency graph")
		}
		if len(path) > maxCycleDepth {
			return miqerr.New(miqerr.Graph, fmt.Sprintf(
				"dependency chain exceeds depth %d at %s; likely a cycle the visiting check missed",
				maxCycleDepth, r))
		}

		u, ok := lookup(r)
		if !ok {
			return miqerr.New(miqerr.Graph, fmt.Sprintf("unit %s not found while building dependency graph", r))
		}

		visiting[r] = true
		nextPath := append(append([]unit.Result(nil), path...), r)
		for _, dep := range u.Deps() {
			if err := visit(dep, nextPath); err != nil {
				return err
			}
		}
		delete(visiting, r)
		done[r] = true

		g.nodes[r] = u
		g.order = append(g.order, r)
		return nil
	}

	roots = append([]unit.Result(nil), roots...)
	sortResults(roots)
	for _, r := range roots {
		if err := visit(r, nil); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func sortResults(rs []unit.Result) {
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
}

// Nodes returns every Result in the graph, in dependency-first build order.
func (g *Graph) Nodes() []unit.Result {
	return append([]unit.Result(nil), g.order...)
}

// Unit returns the Unit for a Result known to this graph.
func (g *Graph) Unit(r unit.Result) (unit.Unit, bool) {
	u, ok := g.nodes[r]
	return u, ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// DepsOf returns the direct dependencies of r, or nil if r has none (or is
// a Fetch, which has no dependencies).
func (g *Graph) DepsOf(r unit.Result) []unit.Result {
	u, ok := g.nodes[r]
	if !ok {
		return nil
	}
	return u.Deps()
}
