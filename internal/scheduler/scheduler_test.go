package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viperML/miq/internal/graph"
	"github.com/viperML/miq/internal/unit"
)

func pkg(name string, deps ...unit.Result) unit.Unit {
	p := unit.Package{Name: name, Script: "true", Deps: deps}
	p.Result = unit.DerivePackageID(p)
	return unit.Unit{Package: &p}
}

type fakeRealizer struct {
	mu            sync.Mutex
	built         []string
	maxConcurrent int32
	concurrent    int32
	fail          unit.Result
}

func (f *fakeRealizer) RealizeFetch(ctx context.Context, fe unit.Fetch) error {
	f.mu.Lock()
	f.built = append(f.built, string(fe.Result))
	f.mu.Unlock()
	return nil
}

func (f *fakeRealizer) RealizePackage(ctx context.Context, p unit.Package) error {
	cur := atomic.AddInt32(&f.concurrent, 1)
	for {
		max := atomic.LoadInt32(&f.maxConcurrent)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxConcurrent, max, cur) {
			break
		}
	}
	defer atomic.AddInt32(&f.concurrent, -1)

	f.mu.Lock()
	f.built = append(f.built, string(p.Result))
	f.mu.Unlock()

	if p.Result == f.fail {
		return assertErr
	}
	return nil
}

var assertErr = &fakeError{}

type fakeError struct{}

func (*fakeError) Error() string { return "fake build failure" }

type fakeReporter struct {
	mu        sync.Mutex
	completed []string
	failed    unit.Result
}

func (r *fakeReporter) Completed(storePath, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, storePath)
}

func (r *fakeReporter) Failed(result unit.Result, err error, suggestions []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = result
}

func buildGraph(t *testing.T, root string, units map[unit.Result]unit.Unit) *graph.Graph {
	t.Helper()
	lookup := func(r unit.Result) (unit.Unit, bool) { u, ok := units[r]; return u, ok }
	g, err := graph.Build([]unit.Result{unit.Result(root)}, lookup)
	require.NoError(t, err)
	return g
}

func TestSchedulerRunsInDependencyOrder(t *testing.T) {
	leaf := pkg("leaf")
	top := pkg("top", leaf.Package.Result)

	units := map[unit.Result]unit.Unit{leaf.ID(): leaf, top.ID(): top}
	g := buildGraph(t, string(top.ID()), units)

	realizer := &fakeRealizer{}
	reporter := &fakeReporter{}
	s := &Scheduler{
		Root:         "/miq",
		Concurrency:  2,
		Realizer:     realizer,
		Reporter:     reporter,
		IsRegistered: func(string) (bool, error) { return false, nil },
	}

	require.NoError(t, s.Run(context.Background(), g, top.ID()))
	require.Equal(t, []string{string(leaf.ID()), string(top.ID())}, realizer.built)
	require.Len(t, reporter.completed, 2)
}

func TestSchedulerBoundsPackageConcurrency(t *testing.T) {
	a := pkg("a")
	b := pkg("b")
	top := pkg("top", a.Package.Result, b.Package.Result)

	units := map[unit.Result]unit.Unit{a.ID(): a, b.ID(): b, top.ID(): top}
	g := buildGraph(t, string(top.ID()), units)

	realizer := &fakeRealizer{}
	s := &Scheduler{
		Root:         "/miq",
		Concurrency:  1,
		Realizer:     realizer,
		Reporter:     &fakeReporter{},
		IsRegistered: func(string) (bool, error) { return false, nil },
	}

	require.NoError(t, s.Run(context.Background(), g, top.ID()))
	require.LessOrEqual(t, realizer.maxConcurrent, int32(1))
}

func TestSchedulerSkipsRegistered(t *testing.T) {
	leaf := pkg("leaf")
	units := map[unit.Result]unit.Unit{leaf.ID(): leaf}
	g := buildGraph(t, string(leaf.ID()), units)

	realizer := &fakeRealizer{}
	s := &Scheduler{
		Root:         "/miq",
		Concurrency:  1,
		Realizer:     realizer,
		Reporter:     &fakeReporter{},
		IsRegistered: func(string) (bool, error) { return true, nil },
	}

	require.NoError(t, s.Run(context.Background(), g, leaf.ID()))
	require.Empty(t, realizer.built, "an already-registered unit must not be realized")
}

func TestSchedulerPropagatesFailure(t *testing.T) {
	leaf := pkg("leaf")
	top := pkg("top", leaf.Package.Result)

	units := map[unit.Result]unit.Unit{leaf.ID(): leaf, top.ID(): top}
	g := buildGraph(t, string(top.ID()), units)

	realizer := &fakeRealizer{fail: top.ID()}
	reporter := &fakeReporter{}
	s := &Scheduler{
		Root:         "/miq",
		Concurrency:  1,
		Realizer:     realizer,
		Reporter:     reporter,
		IsRegistered: func(string) (bool, error) { return false, nil },
	}

	err := s.Run(context.Background(), g, top.ID())
	require.Error(t, err)
	require.Equal(t, top.ID(), reporter.failed)
}
