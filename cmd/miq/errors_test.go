package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viperML/miq/internal/miqerr"
)

func TestFormatErrorPrintsMessageAndSuggestions(t *testing.T) {
	err := miqerr.New(miqerr.BuildScript, "build failed").
		WithSuggestions("inspect the log", "inspect the store")

	var buf bytes.Buffer
	FormatError(&buf, err, false)

	out := buf.String()
	require.Contains(t, out, "build failed")
	require.Contains(t, out, "inspect the log")
	require.Contains(t, out, "inspect the store")
}

func TestFormatErrorHandlesNil(t *testing.T) {
	var buf bytes.Buffer
	FormatError(&buf, nil, false)
	require.Empty(t, buf.String())
}

func TestShouldUseColorRespectsNoColorFlag(t *testing.T) {
	require.False(t, shouldUseColor(true))
}

func TestColorizeNoopWhenDisabled(t *testing.T) {
	require.Equal(t, "hello", colorize("hello", colorRed, false))
}

func TestColorizeWrapsWhenEnabled(t *testing.T) {
	require.Equal(t, colorRed+"hello"+colorReset, colorize("hello", colorRed, true))
}
