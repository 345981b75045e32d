//go:build linux

package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

// ReexecArg is the argv[1] sentinel that tells the miq binary it has just
// been spawned as the sandboxed build child, rather than invoked as the
// CLI. cmd/miq checks for this before cobra ever parses flags.
const ReexecArg = "__miq_sandbox_init__"

// MaybeRunInit runs the sandbox child entrypoint and exits the process if
// argv requests it; it is a no-op otherwise. Call this first thing in
// main(), before any other startup work.
func MaybeRunInit() {
	if len(os.Args) < 2 || os.Args[1] != ReexecArg {
		return
	}
	if err := runInit(); err != nil {
		fmt.Fprintf(os.Stderr, "miq: sandbox init failed: %v\n", err)
		os.Exit(1)
	}
	// runInit execs into bash on success and never returns; reaching here
	// means something upstream changed without updating this invariant.
	os.Exit(1)
}

// runInit is the sandbox child: it sets up the mount namespace, pivots
// into it, and execs the build script under the embedded bash. It never
// returns on success, because exec replaces the process image.
func runInit() error {
	sandboxPath := os.Getenv("MIQ_SANDBOX_PATH")
	buildPath := os.Getenv("MIQ_BUILD_PATH")
	if sandboxPath == "" || buildPath == "" {
		return fmt.Errorf("sandbox init missing MIQ_SANDBOX_PATH/MIQ_BUILD_PATH")
	}

	if err := setupMounts(sandboxPath, buildPath); err != nil {
		return err
	}

	if err := unix.Chdir(sandboxPath); err != nil {
		return fmt.Errorf("chdir into sandbox root: %w", err)
	}
	if err := unix.PivotRoot(sandboxPath, sandboxPath); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	if err := unix.Chdir("/build"); err != nil {
		return fmt.Errorf("chdir /build after pivot_root: %w", err)
	}

	cfg, err := readBuildConfig("/build/" + buildConfigName)
	if err != nil {
		return err
	}

	if err := os.WriteFile("/build-script", []byte(cfg.Script), 0o755); err != nil {
		return fmt.Errorf("writing /build-script: %w", err)
	}

	env := buildEnv(cfg)
	return unix.Exec("/bin/bash", []string{"bash", "--norc", "--noprofile", "/build-script"}, env)
}

func readBuildConfig(path string) (*buildConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sandbox build config: %w", err)
	}
	var cfg buildConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding sandbox build config: %w", err)
	}
	return &cfg, nil
}

// setupMounts binds the host's essential directories, /build, and a
// tmpfs-backed /bin and /usr/bin (populated with symlinks to the embedded
// bash/busybox binaries) into sandboxPath, so pivot_root has a complete,
// self-contained root to switch into. Grounded on the original project's
// Package::sandbox_setup.
func setupMounts(sandboxPath, buildPath string) error {
	if err := unix.Mount(sandboxPath, sandboxPath, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind-mounting sandbox root onto itself: %w", err)
	}
	if err := unix.Mount("", sandboxPath, "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("making sandbox root mount private: %w", err)
	}

	for _, element := range []string{"dev", "etc", "run", "tmp", "var", "sys", "miq", "proc"} {
		dst := filepath.Join(sandboxPath, element)
		if err := os.Mkdir(dst, 0o755); err != nil {
			return fmt.Errorf("creating sandbox %s: %w", element, err)
		}
		src := filepath.Join("/", element)
		if err := unix.Mount(src, dst, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("bind-mounting %s into sandbox: %w", element, err)
		}
	}

	buildDst := filepath.Join(sandboxPath, "build")
	if err := os.Mkdir(buildDst, 0o755); err != nil {
		return fmt.Errorf("creating sandbox build dir: %w", err)
	}
	if err := unix.Mount(buildPath, buildDst, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind-mounting build dir into sandbox: %w", err)
	}

	if err := mountEmbeddedBinary(sandboxPath, "bin", "bash", Bash, map[string]string{"sh": "/bin/bash"}); err != nil {
		return err
	}
	applets := make(map[string]string, len(Applets))
	for _, applet := range Applets {
		applets[applet] = "/usr/bin/busybox"
	}
	if err := mountEmbeddedBinary(sandboxPath, filepath.Join("usr", "bin"), "busybox", Busybox, applets); err != nil {
		return err
	}

	return nil
}

// heldMemfds keeps every memfd created by mountEmbeddedBinary reachable
// until the process execs into bash.
var heldMemfds []*os.File

// mountEmbeddedBinary creates a tmpfs at sandboxPath/dir, memfd's data as
// name, symlinks it in, and creates the requested additional symlinks
// (applet names, or "sh" pointing at bash) alongside it.
func mountEmbeddedBinary(sandboxPath, dir, name string, data []byte, symlinks map[string]string) error {
	dst := filepath.Join(sandboxPath, dir)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("creating sandbox %s: %w", dir, err)
	}
	if err := unix.Mount("tmpfs", dst, "tmpfs", 0, ""); err != nil {
		return fmt.Errorf("mounting tmpfs at %s: %w", dir, err)
	}

	f, err := memfdWrite(name, data)
	if err != nil {
		return err
	}
	// The memfd outlives this function via /proc/self/fd; closing our
	// reference would release it, so it is deliberately never closed here.
	// Holding the *os.File keeps its finalizer from closing the fd.
	heldMemfds = append(heldMemfds, f)

	target := fmt.Sprintf("/proc/self/fd/%d", f.Fd())
	if err := os.Symlink(target, filepath.Join(dst, name)); err != nil {
		return fmt.Errorf("symlinking embedded %s: %w", name, err)
	}

	names := make([]string, 0, len(symlinks))
	for n := range symlinks {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := os.Symlink(symlinks[n], filepath.Join(dst, n)); err != nil {
			return fmt.Errorf("symlinking %s: %w", n, err)
		}
	}
	return nil
}

// buildEnv constructs the build script's environment, per spec.md §4.6:
// a fixed baseline followed by the package's own Env, which may override
// the baseline.
func buildEnv(cfg *buildConfig) []string {
	base := map[string]string{
		"HOME":    "/build",
		"PREFIX":  cfg.StorePath,
		"miq_out": cfg.StorePath,
		"TMP":     "/tmp",
		"TEMP":    "/temp",
		"TMPDIR":  "/tmp",
		"TEMPDIR": "/temp",
		"PS1":     "$PWD # ",
		"PATH":    "/usr/bin:/bin",
	}
	for k, v := range cfg.Env {
		base[k] = v
	}

	keys := make([]string, 0, len(base))
	for k := range base {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+base[k])
	}
	return env
}
