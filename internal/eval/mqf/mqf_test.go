package mqf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viperML/miq/internal/unit"
)

func TestFetchDerivesNameFromURL(t *testing.T) {
	SetRoot("/miq")
	u := Fetch(FetchInput{URL: "https://example.org/files/hello.txt"})
	require.Equal(t, "hello.txt", u.Fetch.Name)
}

func TestFetchHonorsExplicitName(t *testing.T) {
	SetRoot("/miq")
	u := Fetch(FetchInput{Name: "renamed", URL: "https://example.org/files/hello.txt"})
	require.Equal(t, "renamed", u.Fetch.Name)
}

func TestInterpolateUnitProducesStorePath(t *testing.T) {
	SetRoot("/miq")
	dep := Fetch(FetchInput{URL: "https://example.org/hello.txt"})

	mt := Interpolate(dep)
	require.Equal(t, dep.ID().StorePath("/miq"), mt.Text)
	require.Equal(t, []unit.Result{dep.ID()}, mt.Deps)
}

func TestInterpolateStringHasNoDeps(t *testing.T) {
	mt := Interpolate("plain text")
	require.Equal(t, "plain text", mt.Text)
	require.Empty(t, mt.Deps)
}

func TestTextConcatenatesAndUnionsDeps(t *testing.T) {
	SetRoot("/miq")
	a := Fetch(FetchInput{Name: "a", URL: "https://example.org/a"})
	b := Fetch(FetchInput{Name: "b", URL: "https://example.org/b"})

	mt := Text("prefix ", a, " middle ", b, " suffix")

	require.Contains(t, mt.Text, a.ID().StorePath("/miq"))
	require.Contains(t, mt.Text, b.ID().StorePath("/miq"))
	require.ElementsMatch(t, []unit.Result{a.ID(), b.ID()}, mt.Deps)
}

func TestPackageFoldsInterpolatedDepsIntoDeps(t *testing.T) {
	SetRoot("/miq")
	dep := Fetch(FetchInput{Name: "dep", URL: "https://example.org/dep"})
	script := Text("cp ", dep, " $miq_out")

	p := Package(PackageInput{
		Name:   "uses-dep",
		Script: script,
	})

	require.ElementsMatch(t, []unit.Result{dep.ID()}, p.Package.Deps)
}

func TestPackageFoldsEnvDepsAndExplicitDeps(t *testing.T) {
	SetRoot("/miq")
	explicit := Fetch(FetchInput{Name: "explicit", URL: "https://example.org/explicit"})
	envDep := Fetch(FetchInput{Name: "env-dep", URL: "https://example.org/env-dep"})

	p := Package(PackageInput{
		Name:   "multi-dep",
		Deps:   []unit.Unit{explicit},
		Script: Interpolate("true"),
		Env: map[string]MetaText{
			"TOOL": Interpolate(envDep),
		},
	})

	require.ElementsMatch(t, []unit.Result{explicit.ID(), envDep.ID()}, p.Package.Deps)
}

func TestRegistryAccumulatesAllBuiltUnits(t *testing.T) {
	SetRoot("/miq")
	a := Fetch(FetchInput{Name: "a", URL: "https://example.org/a"})
	b := Package(PackageInput{Name: "b", Deps: []unit.Unit{a}})

	reg := Registry()
	require.Contains(t, reg, a.ID())
	require.Contains(t, reg, b.ID())
}

func TestSetRootClearsRegistry(t *testing.T) {
	SetRoot("/miq")
	Fetch(FetchInput{Name: "stale", URL: "https://example.org/stale"})
	SetRoot("/miq")
	require.Empty(t, Registry())
}
