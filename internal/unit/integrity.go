// integrity.go resolves SPEC_FULL.md §3's integrity design: Fetch.Integrity
// is an SRI-shaped "<algorithm>-<base64-digest>" string, verified (when
// non-empty) by the fetch realizer after the body is streamed to disk.
package unit

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SupportedIntegrityAlgorithms lists the algorithm names accepted in an
// integrity string.
var SupportedIntegrityAlgorithms = []string{"sha256", "blake2b-256"}

func newIntegrityHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New(), nil
	case "blake2b-256":
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("unsupported integrity algorithm %q (supported: %s)",
			algorithm, strings.Join(SupportedIntegrityAlgorithms, ", "))
	}
}

// VerifyIntegrity re-reads r and checks it against an SRI-shaped integrity
// string. An empty integrity string is treated as "not yet pinned" and
// always verifies successfully, matching spec.md §4.5's "integrity is a
// reserved field ... need not verify" baseline for unpinned fetches.
func VerifyIntegrity(integrity string, r io.Reader) error {
	if integrity == "" {
		return nil
	}

	// Split at the last dash: algorithm names may contain one
	// ("blake2b-256"), a standard base64 digest never does.
	sep := strings.LastIndex(integrity, "-")
	if sep < 0 {
		return fmt.Errorf("malformed integrity string %q, want \"<algorithm>-<digest>\"", integrity)
	}
	algorithm, digest := integrity[:sep], integrity[sep+1:]

	h, err := newIntegrityHash(algorithm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(h, r); err != nil {
		return fmt.Errorf("hashing fetch body for integrity check: %w", err)
	}

	got := base64.StdEncoding.EncodeToString(h.Sum(nil))
	if got != digest {
		return fmt.Errorf("integrity mismatch: want %s, got %s-%s", integrity, algorithm, got)
	}
	return nil
}
