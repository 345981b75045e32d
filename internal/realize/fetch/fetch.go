// Package fetch realizes unit.Fetch units: it streams a URL's body into the
// store, verifies integrity, sets the store's read-only permission
// convention, and registers the result, per spec.md §4.5.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/viperML/miq/internal/invariant"
	"github.com/viperML/miq/internal/miqerr"
	"github.com/viperML/miq/internal/store"
	"github.com/viperML/miq/internal/unit"
)

// permissions spec.md §4.5 requires: non-executable fetches land read-only
// for everyone, executable ones additionally gain the execute bit.
const (
	modeRegular    = 0o444
	modeExecutable = 0o555
)

// Client fetches a Fetch unit's URL over HTTP. A zero-value Client uses
// http.DefaultClient.
type Client struct {
	HTTP *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// Realize downloads f into root's store and registers it in idx. If f's
// store path is already registered, Realize returns immediately without
// re-fetching (spec.md §4's reuse invariant).
func (c *Client) Realize(ctx context.Context, root string, idx *store.Index, f unit.Fetch) error {
	invariant.Precondition(f.Result != "", "fetch unit must carry a derived Result before realization")

	storePath := f.Result.StorePath(root)

	registered, err := idx.IsRegistered(storePath)
	if err != nil {
		return err
	}
	if registered {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, "creating store directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(storePath), ".fetch-*.tmp")
	if err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, "creating temp file for fetch")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := c.download(ctx, f, tmp); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return miqerr.Wrap(miqerr.Permanent, err, "fsyncing fetched file")
	}
	if err := tmp.Close(); err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, "closing fetched file")
	}

	if err := verifyIntegrity(f, tmpPath); err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, fmt.Sprintf("verifying integrity of %s", f.URL))
	}

	mode := os.FileMode(modeRegular)
	if f.Executable {
		mode = modeExecutable
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, "setting store permissions")
	}

	if err := os.Rename(tmpPath, storePath); err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, "moving fetched file into store")
	}

	// A concurrent realizer may have registered the same path between our
	// check and here; that race is a success, not a conflict (spec.md §4).
	return idx.Register(storePath)
}

func (c *Client) download(ctx context.Context, f unit.Fetch, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, "building fetch request")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return miqerr.Wrap(miqerr.Transient, err, fmt.Sprintf("fetching %s", f.URL))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return miqerr.New(miqerr.Permanent, fmt.Sprintf("fetching %s: unexpected status %s", f.URL, resp.Status))
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return miqerr.Wrap(miqerr.Transient, err, fmt.Sprintf("streaming body of %s", f.URL))
	}
	return nil
}

func verifyIntegrity(f unit.Fetch, path string) error {
	if f.Integrity == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return unit.VerifyIntegrity(f.Integrity, file)
}
