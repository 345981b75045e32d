package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viperML/miq/internal/unit"
)

func TestParseUnitRefSerialized(t *testing.T) {
	ref, err := ParseUnitRef("/miq", "/miq/eval/hello-deadbeef.toml")
	require.NoError(t, err)
	require.Equal(t, unit.Result("hello-deadbeef"), ref.Result)
	require.Empty(t, ref.Source)
}

func TestParseUnitRefSource(t *testing.T) {
	ref, err := ParseUnitRef("/miq", "pkgs.miqsrc#hello")
	require.NoError(t, err)
	require.Empty(t, ref.Result)
	require.Equal(t, "pkgs.miqsrc", ref.Source)
	require.Equal(t, "hello", ref.Selector)
}

func TestParseUnitRefRejectsWrongPrefix(t *testing.T) {
	_, err := ParseUnitRef("/miq", "/other/eval/hello.toml")
	require.Error(t, err)
}

func TestParseUnitRefRejectsMissingExtension(t *testing.T) {
	_, err := ParseUnitRef("/miq", "/miq/eval/hello")
	require.Error(t, err)
}

func TestParseUnitRefRejectsEmptySelectorHalf(t *testing.T) {
	_, err := ParseUnitRef("/miq", "pkgs.miqsrc#")
	require.Error(t, err)

	_, err = ParseUnitRef("/miq", "#hello")
	require.Error(t, err)
}

func TestParseUnitRefRoundTripsEvalPath(t *testing.T) {
	id := unit.Result("hello-deadbeef")
	ref, err := ParseUnitRef("/miq", id.EvalPath("/miq"))
	require.NoError(t, err)
	require.Equal(t, id, ref.Result)
}
