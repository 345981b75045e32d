//go:build linux

package sandbox

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestBuildEnvBaselineAndOverride(t *testing.T) {
	cfg := &buildConfig{StorePath: "/miq/store/hello-1", Env: map[string]string{"PATH": "/custom/bin"}}
	env := buildEnv(cfg)

	got := map[string]string{}
	for _, kv := range env {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				got[kv[:i]] = kv[i+1:]
				break
			}
		}
	}

	require.Equal(t, "/build", got["HOME"])
	require.Equal(t, "/miq/store/hello-1", got["PREFIX"])
	require.Equal(t, "/miq/store/hello-1", got["miq_out"])
	require.Equal(t, "/custom/bin", got["PATH"], "package Env must be able to override the baseline")
}

func TestAppletsAreUnique(t *testing.T) {
	seen := make(map[string]bool, len(Applets))
	for _, a := range Applets {
		require.False(t, seen[a], "duplicate applet %q", a)
		seen[a] = true
	}
}

// canUnshareUserNamespace reports whether this process is allowed to
// create a user namespace, which unprivileged CI containers frequently
// forbid via a sysctl or seccomp profile.
func canUnshareUserNamespace() bool {
	if os.Getenv("MIQ_TEST_SANDBOX") == "" {
		return false
	}
	return unix.Unshare(unix.CLONE_NEWUSER) == nil
}

func TestRealizeEndToEnd(t *testing.T) {
	if !canUnshareUserNamespace() {
		t.Skip("user namespaces unavailable or MIQ_TEST_SANDBOX not set; skipping privileged sandbox test")
	}
	t.Skip("full sandbox realization requires a real embedded bash/busybox binary, not the placeholder assets checked into this tree")
}
