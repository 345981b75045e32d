package eval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExportedNamesFindsVarFuncConstDecls(t *testing.T) {
	source := `
var hello = mqf.Fetch(mqf.FetchInput{URL: "https://example.org/hello"})
const other = 1
func helper() {}
`
	names := exportedNames(source)
	require.ElementsMatch(t, []string{"hello", "other", "helper"}, names)
}

func TestExportedNamesDeduplicates(t *testing.T) {
	source := `
var hello = 1
var hello = 2
`
	names := exportedNames(source)
	require.Equal(t, []string{"hello"}, names)
}

func TestWrapSourcePrependsPackageClause(t *testing.T) {
	wrapped := wrapSource("var x = 1")
	require.Contains(t, wrapped, "package "+sourcePackage)
	require.Contains(t, wrapped, "var x = 1")
}

func TestSelectEvaluatesHostBuiltUnit(t *testing.T) {
	source := `
import "mqf/mqf"

var hello = mqf.Fetch(mqf.FetchInput{URL: "https://example.org/files/hello.txt"})
`
	host := NewYaegiHost("/miq")
	u, registry, names, err := host.Select(source, "hello")
	require.NoError(t, err)
	require.NotNil(t, u.Fetch)
	require.Equal(t, "hello.txt", u.Fetch.Name)
	require.Contains(t, registry, u.ID())
	require.Contains(t, names, "hello")
}

func TestSelectReportsMissingSelector(t *testing.T) {
	source := `
import "mqf/mqf"

var hello = mqf.Fetch(mqf.FetchInput{URL: "https://example.org/files/hello.txt"})
`
	host := NewYaegiHost("/miq")
	_, _, names, err := host.Select(source, "goodbye")
	require.Error(t, err)
	require.Contains(t, names, "hello")
}
