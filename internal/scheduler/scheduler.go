// Package scheduler realizes a resolved graph.Graph in dependency order
// with bounded package concurrency, per spec.md §4.3: a single dispatch
// loop advances each node through Waiting -> Building -> Finished,
// starting a node only once every dependency it has is Finished.
package scheduler

import (
	"context"
	"fmt"

	"github.com/viperML/miq/internal/graph"
	"github.com/viperML/miq/internal/miqerr"
	"github.com/viperML/miq/internal/unit"
)

// RebuildMode controls which already-registered units are forced to
// realize again (spec.md §4.3).
type RebuildMode int

const (
	// RebuildNone skips any unit whose store path is already registered.
	RebuildNone RebuildMode = iota
	// RebuildRoot forces realization of the root only. A Fetch root that is
	// already registered is not fetched again.
	RebuildRoot
	// RebuildAll forces realization of every Package (Fetches remain
	// cache-hit-on-register regardless of mode).
	RebuildAll
)

type nodeState int

const (
	stateWaiting nodeState = iota
	stateBuilding
	stateFinished
)

// maxIterationsPerNode guards the dispatch loop against livelock: a correctly
// implemented scheduler over a finite DAG converges in at most one
// iteration per node per dependency level, so a generous multiple of the
// node count is a loud, not a tight, ceiling.
const maxIterationsPerNode = 64

// Realizer realizes a single unit.Unit. cmd/miq supplies an implementation
// that dispatches to the fetch or sandbox package depending on the unit's
// kind.
type Realizer interface {
	RealizeFetch(ctx context.Context, f unit.Fetch) error
	RealizePackage(ctx context.Context, p unit.Package) error
}

// Reporter receives scheduler progress. cmd/miq wires this to stdout.
type Reporter interface {
	// Completed is called after a node finishes successfully, with its
	// store path and a short human description.
	Completed(storePath, description string)
	// Failed is called once, for the node whose failure aborted scheduling.
	Failed(result unit.Result, err error, suggestions []string)
}

// Scheduler realizes a graph.Graph.
type Scheduler struct {
	Root        string
	Concurrency int // J: max Packages Building at once. <= 0 means 1.
	Mode        RebuildMode
	Realizer    Realizer
	Reporter    Reporter
	IsRegistered func(storePath string) (bool, error)
}

// Run realizes g's root, returning the first error encountered (if any).
func (s *Scheduler) Run(ctx context.Context, g *graph.Graph, root unit.Result) error {
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	states := make(map[unit.Result]nodeState, g.Len())
	for _, r := range g.Nodes() {
		states[r] = stateWaiting
	}

	type result struct {
		r   unit.Result
		err error
	}
	done := make(chan result, g.Len())
	inFlight := 0        // every Building node, Fetch or Package
	packagesBuilding := 0 // Building nodes that are Packages, bounded by J

	childrenFinished := func(r unit.Result) bool {
		for _, dep := range g.DepsOf(r) {
			if states[dep] != stateFinished {
				return false
			}
		}
		return true
	}

	forceRebuild := func(r unit.Result, u unit.Unit) bool {
		switch s.Mode {
		case RebuildAll:
			return u.Package != nil
		case RebuildRoot:
			return r == root
		default:
			return false
		}
	}

	dispatch := func(r unit.Result) {
		u, _ := g.Unit(r)
		states[r] = stateBuilding
		inFlight++
		if u.Package != nil {
			packagesBuilding++
		}

		go func() {
			err := s.realizeOne(ctx, u, forceRebuild(r, u))
			done <- result{r: r, err: err}
		}()
	}

	iterations := 0
	nodeCount := len(states)
	pending := nodeCount

	for pending > 0 {
		iterations++
		if iterations > maxIterationsPerNode*nodeCount+maxIterationsPerNode {
			return miqerr.New(miqerr.Permanent, "scheduler exceeded its iteration ceiling; likely a livelock bug")
		}

		dispatchedThisPass := false
		for _, r := range g.Nodes() {
			if states[r] != stateWaiting {
				continue
			}
			if !childrenFinished(r) {
				continue
			}
			u, _ := g.Unit(r)
			if u.Package != nil && packagesBuilding >= concurrency {
				continue
			}
			dispatch(r)
			dispatchedThisPass = true
		}

		if !dispatchedThisPass && inFlight == 0 {
			// Nothing in flight and nothing dispatchable: either we are
			// done, or a dependency is permanently stuck (a bug, since
			// Build() already proved the graph acyclic and complete).
			if pending > 0 {
				return miqerr.New(miqerr.Permanent, "scheduler deadlocked: no node is dispatchable but the graph is not finished")
			}
			break
		}

		res := <-done
		inFlight--
		u, _ := g.Unit(res.r)
		if u.Package != nil {
			packagesBuilding--
		}

		if res.err != nil {
			s.report(root, res.r, res.err)
			return res.err
		}

		states[res.r] = stateFinished
		pending--
		if s.Reporter != nil {
			s.Reporter.Completed(res.r.StorePath(s.Root), describe(u))
		}
	}

	return nil
}

func (s *Scheduler) realizeOne(ctx context.Context, u unit.Unit, force bool) error {
	switch {
	case u.Fetch != nil:
		if !force {
			registered, err := s.IsRegistered(u.Fetch.Result.StorePath(s.Root))
			if err != nil {
				return err
			}
			if registered {
				return nil
			}
		}
		return s.Realizer.RealizeFetch(ctx, *u.Fetch)
	case u.Package != nil:
		if !force {
			registered, err := s.IsRegistered(u.Package.Result.StorePath(s.Root))
			if err != nil {
				return err
			}
			if registered {
				return nil
			}
		}
		return s.Realizer.RealizePackage(ctx, *u.Package)
	default:
		return miqerr.New(miqerr.Permanent, "scheduler encountered an empty unit")
	}
}

func (s *Scheduler) report(root, failed unit.Result, err error) {
	if s.Reporter == nil {
		return
	}
	suggestions := miqerr.BuildFailureSuggestions(
		failed.EvalPath(s.Root),
		failed.LogPath(s.Root),
		failed.StorePath(s.Root),
	)
	s.Reporter.Failed(failed, err, suggestions)
}

func describe(u unit.Unit) string {
	switch {
	case u.Fetch != nil:
		return fmt.Sprintf("fetch %s", u.Fetch.Name)
	case u.Package != nil:
		return fmt.Sprintf("package %s", u.Package.Name)
	default:
		return "unknown unit"
	}
}
