package eval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viperML/miq/internal/unit"
)

type fakeHost struct {
	root     unit.Unit
	registry map[unit.Result]unit.Unit
	names    []string
	err      error
}

func (h *fakeHost) Select(source, selector string) (unit.Unit, map[unit.Result]unit.Unit, []string, error) {
	if h.err != nil {
		return unit.Unit{}, nil, h.names, h.err
	}
	return h.root, h.registry, h.names, nil
}

func fetchUnit(name string) unit.Unit {
	f := unit.Fetch{Name: name, URL: "https://example.org/" + name}
	f.Result = unit.DeriveFetchID(f)
	return unit.Unit{Fetch: &f}
}

func packageUnit(name string, deps ...unit.Result) unit.Unit {
	p := unit.Package{Name: name, Script: "true", Deps: deps}
	p.Result = unit.DerivePackageID(p)
	return unit.Unit{Package: &p}
}

// writeSource creates a unit source file under dir. fakeHost ignores its
// contents, but Evaluate reads the file before calling the host.
func writeSource(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "pkgs.miqsrc")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func TestEvaluateSourceWritesClosure(t *testing.T) {
	root := t.TempDir()
	src := writeSource(t, root)
	leaf := fetchUnit("leaf")
	top := packageUnit("top", leaf.ID())

	host := &fakeHost{
		root: top,
		registry: map[unit.Result]unit.Unit{
			leaf.ID(): leaf,
			top.ID():  top,
		},
	}

	e := &Evaluator{Root: root, Host: host}
	result, err := e.Evaluate(UnitRef{Source: src, Selector: "top"})
	require.NoError(t, err)
	require.Equal(t, top.ID(), result)

	for _, u := range []unit.Unit{leaf, top} {
		_, err := os.Stat(u.ID().EvalPath(root))
		require.NoError(t, err, "expected eval file for %s", u.ID())
	}
}

func TestEvaluateSourceIsIdempotentByteForByte(t *testing.T) {
	root := t.TempDir()
	src := writeSource(t, root)
	leaf := fetchUnit("leaf")

	host := &fakeHost{
		root:     leaf,
		registry: map[unit.Result]unit.Unit{leaf.ID(): leaf},
	}
	e := &Evaluator{Root: root, Host: host}

	_, err := e.Evaluate(UnitRef{Source: src, Selector: "leaf"})
	require.NoError(t, err)

	path := leaf.ID().EvalPath(root)
	before, err := os.Stat(path)
	require.NoError(t, err)

	_, err = e.Evaluate(UnitRef{Source: src, Selector: "leaf"})
	require.NoError(t, err)

	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, before.ModTime(), after.ModTime(), "unchanged record must not be rewritten")
}

func TestEvaluateSourceFailsOnMissingRegistryDep(t *testing.T) {
	root := t.TempDir()
	src := writeSource(t, root)
	leaf := fetchUnit("leaf")
	top := packageUnit("top", leaf.ID())

	host := &fakeHost{
		root:     top,
		registry: map[unit.Result]unit.Unit{top.ID(): top}, // leaf missing
	}

	e := &Evaluator{Root: root, Host: host}
	_, err := e.Evaluate(UnitRef{Source: src, Selector: "top"})
	require.Error(t, err)
}

func TestEvaluateSerializedReadsExistingRecord(t *testing.T) {
	root := t.TempDir()
	leaf := fetchUnit("leaf")

	data, err := unit.Marshal(leaf)
	require.NoError(t, err)
	path := leaf.ID().EvalPath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))

	e := &Evaluator{Root: root, Host: &fakeHost{}}
	result, err := e.Evaluate(UnitRef{Result: leaf.ID()})
	require.NoError(t, err)
	require.Equal(t, leaf.ID(), result)
}

func TestEvaluateSerializedFailsWhenRecordMissing(t *testing.T) {
	root := t.TempDir()
	e := &Evaluator{Root: root, Host: &fakeHost{}}
	_, err := e.Evaluate(UnitRef{Result: unit.Result("ghost-deadbeef")})
	require.Error(t, err)
}
