package fetch

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viperML/miq/internal/store"
	"github.com/viperML/miq/internal/unit"
)

func testRoot(t *testing.T) (string, *store.Index) {
	t.Helper()
	root := t.TempDir()
	idx, err := store.Open(filepath.Join(root, "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return root, idx
}

func TestRealizeSetsReadOnlyPermissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	root, idx := testRoot(t)

	f := unit.Fetch{Name: "hello", URL: srv.URL}
	f.Result = unit.DeriveFetchID(f)

	client := &Client{}
	require.NoError(t, client.Realize(t.Context(), root, idx, f))

	info, err := os.Stat(f.Result.StorePath(root))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm())

	registered, err := idx.IsRegistered(f.Result.StorePath(root))
	require.NoError(t, err)
	require.True(t, registered)
}

func TestRealizeExecutableBit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#!/bin/sh\necho hi\n"))
	}))
	defer srv.Close()

	root, idx := testRoot(t)
	f := unit.Fetch{Name: "script", URL: srv.URL, Executable: true}
	f.Result = unit.DeriveFetchID(f)

	client := &Client{}
	require.NoError(t, client.Realize(t.Context(), root, idx, f))

	info, err := os.Stat(f.Result.StorePath(root))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o555), info.Mode().Perm())
}

func TestRealizeVerifiesIntegrity(t *testing.T) {
	body := []byte("pinned content")
	sum := sha256.Sum256(body)
	digest := "sha256-" + base64.StdEncoding.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	root, idx := testRoot(t)
	f := unit.Fetch{Name: "pinned", URL: srv.URL, Integrity: digest}
	f.Result = unit.DeriveFetchID(f)

	client := &Client{}
	require.NoError(t, client.Realize(t.Context(), root, idx, f))
}

func TestRealizeRejectsIntegrityMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("unexpected content"))
	}))
	defer srv.Close()

	root, idx := testRoot(t)
	f := unit.Fetch{Name: "pinned", URL: srv.URL, Integrity: "sha256-" + base64.StdEncoding.EncodeToString(make([]byte, 32))}
	f.Result = unit.DeriveFetchID(f)

	client := &Client{}
	err := client.Realize(t.Context(), root, idx, f)
	require.Error(t, err)

	registered, regErr := idx.IsRegistered(f.Result.StorePath(root))
	require.NoError(t, regErr)
	require.False(t, registered)
}

func TestRealizeShortCircuitsAlreadyRegistered(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("body"))
	}))
	defer srv.Close()

	root, idx := testRoot(t)
	f := unit.Fetch{Name: "hello", URL: srv.URL}
	f.Result = unit.DeriveFetchID(f)

	require.NoError(t, os.MkdirAll(filepath.Dir(f.Result.StorePath(root)), 0o755))
	require.NoError(t, os.WriteFile(f.Result.StorePath(root), []byte("cached"), 0o444))
	require.NoError(t, idx.Register(f.Result.StorePath(root)))

	client := &Client{}
	require.NoError(t, client.Realize(t.Context(), root, idx, f))
	require.False(t, called, "an already-registered fetch must not re-download")
}
