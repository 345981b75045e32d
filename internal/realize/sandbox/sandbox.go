//go:build linux

// Package sandbox realizes unit.Package units inside a Linux user/mount/
// network namespace, per spec.md §4.6: the build script runs as root
// inside the namespace (mapped to the invoking user outside it), sees a
// minimal filesystem assembled from bind mounts plus an embedded bash and
// busybox, and cannot reach the network or any host path it wasn't given.
package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/viperML/miq/internal/invariant"
	"github.com/viperML/miq/internal/miqerr"
	"github.com/viperML/miq/internal/store"
	"github.com/viperML/miq/internal/unit"
)

// Logger receives one line of build output at a time, already associated
// with the package that produced it. cmd/miq wires this to both the
// console (prefixed by package name) and the per-result log file.
type Logger func(line string, stderr bool)

// Sandbox realizes Package units under root.
type Sandbox struct {
	Root string
}

// New returns a Sandbox rooted at root (spec.md §2's MIQ_ROOT).
func New(root string) *Sandbox {
	return &Sandbox{Root: root}
}

// Realize runs p's build script inside a fresh namespace and registers the
// resulting store path. The scheduler skips registered packages unless a
// rebuild is forced, so a registered store path reaching Realize is
// unregistered (and its tree removed) first, then rebuilt.
func (s *Sandbox) Realize(ctx context.Context, idx *store.Index, p unit.Package, log Logger) error {
	invariant.Precondition(p.Result != "", "package unit must carry a derived Result before realization")

	storePath := p.Result.StorePath(s.Root)

	registered, err := idx.IsRegistered(storePath)
	if err != nil {
		return err
	}
	if registered {
		if err := idx.Unregister(storePath); err != nil {
			return err
		}
	}

	_ = os.RemoveAll(storePath)

	buildDir, err := os.MkdirTemp("", "miq-build-")
	if err != nil {
		return miqerr.Wrap(miqerr.Sandbox, err, "creating build directory")
	}
	defer os.RemoveAll(buildDir)

	sandboxDir, err := os.MkdirTemp("", "miq-sandbox-")
	if err != nil {
		return miqerr.Wrap(miqerr.Sandbox, err, "creating sandbox directory")
	}
	defer os.RemoveAll(sandboxDir)

	if err := writeBuildConfig(buildDir, p, storePath); err != nil {
		return err
	}

	if err := s.run(ctx, sandboxDir, buildDir, p, log); err != nil {
		return err
	}

	if _, err := os.Stat(storePath); err != nil {
		return miqerr.New(miqerr.BuildScript, fmt.Sprintf("package %s produced no output at %s", p.Name, storePath))
	}

	return idx.Register(storePath)
}

func writeBuildConfig(buildDir string, p unit.Package, storePath string) error {
	env := make(map[string]string, len(p.Env))
	for _, kv := range p.Env {
		env[kv.Key] = kv.Value
	}

	data, err := json.Marshal(buildConfig{Script: p.Script, Env: env, StorePath: storePath})
	if err != nil {
		return miqerr.Wrap(miqerr.Sandbox, err, "encoding sandbox build config")
	}
	if err := os.WriteFile(filepath.Join(buildDir, buildConfigName), data, 0o644); err != nil {
		return miqerr.Wrap(miqerr.Sandbox, err, "writing sandbox build config")
	}
	return nil
}

func (s *Sandbox) run(ctx context.Context, sandboxDir, buildDir string, p unit.Package, log Logger) error {
	self, err := os.Executable()
	if err != nil {
		return miqerr.Wrap(miqerr.Sandbox, err, "resolving miq binary path for sandbox re-exec")
	}

	cmd := exec.CommandContext(ctx, self, ReexecArg)
	cmd.Env = []string{
		"MIQ_SANDBOX_PATH=" + sandboxDir,
		"MIQ_BUILD_PATH=" + buildDir,
		"MIQ_ROOT=" + s.Root,
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWUSER | syscall.CLONE_NEWNET | syscall.CLONE_NEWNS,
		UidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: os.Getuid(), Size: 1},
		},
		GidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: os.Getgid(), Size: 1},
		},
		GidMappingsEnableSetgroups: false,
	}
	// Terminate the namespaced child on cancellation instead of leaving it
	// to finish unsupervised (mirrors the original's cmd.kill_on_drop).
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return miqerr.Wrap(miqerr.Sandbox, err, "opening sandbox stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return miqerr.Wrap(miqerr.Sandbox, err, "opening sandbox stderr")
	}

	if err := cmd.Start(); err != nil {
		return miqerr.Wrap(miqerr.Sandbox, err, fmt.Sprintf("starting sandboxed build of %s", p.Name))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(&wg, stdout, false, log)
	go streamLines(&wg, stderr, true, log)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return miqerr.Wrap(miqerr.BuildScript, err, fmt.Sprintf("build script for %s exited with an error", p.Name))
	}
	return nil
}

func streamLines(wg *sync.WaitGroup, r io.Reader, stderr bool, log Logger) {
	defer wg.Done()
	if log == nil {
		io.Copy(io.Discard, r)
		return
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		log(scanner.Text(), stderr)
	}
}
