package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/viperML/miq/internal/miqerr"
	"github.com/viperML/miq/internal/realize/fetch"
	"github.com/viperML/miq/internal/realize/sandbox"
	"github.com/viperML/miq/internal/store"
	"github.com/viperML/miq/internal/unit"
)

// cliRealizer wires the scheduler's Realizer interface to the fetch and
// sandbox packages, tee-ing build output to both the per-result log file
// (spec.md §6) and, unless quiet, the console: lines the build wrote to
// stdout go to stdout, lines it wrote to stderr go to stderr.
type cliRealizer struct {
	root   string
	idx    *store.Index
	fetch  *fetch.Client
	sbox   *sandbox.Sandbox
	logger *zap.Logger
	quiet  bool
}

func (r *cliRealizer) RealizeFetch(ctx context.Context, f unit.Fetch) error {
	r.logger.Info("fetching", zap.String("result", string(f.Result)), zap.String("url", f.URL))
	return r.fetch.Realize(ctx, r.root, r.idx, f)
}

func (r *cliRealizer) RealizePackage(ctx context.Context, p unit.Package) error {
	logPath := p.Result.LogPath(r.root)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, "creating log directory")
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, fmt.Sprintf("creating build log %s", logPath))
	}
	defer logFile.Close()

	prefix := fmt.Sprintf("[%s] ", p.Name)
	logLine := func(line string, stderr bool) {
		fmt.Fprintln(logFile, line)
		if r.quiet {
			return
		}
		if stderr {
			fmt.Fprintln(os.Stderr, prefix+line)
		} else {
			fmt.Fprintln(os.Stdout, prefix+line)
		}
	}

	r.logger.Info("building", zap.String("result", string(p.Result)), zap.String("name", p.Name))
	return r.sbox.Realize(ctx, r.idx, p, logLine)
}

// cliReporter prints scheduler progress to stdout/stderr.
type cliReporter struct {
	useColor bool
	quiet    bool
}

func (rep *cliReporter) Completed(storePath, description string) {
	if rep.quiet {
		return
	}
	fmt.Fprintf(os.Stdout, "%s %s -> %s\n", colorize("done:", colorYellow, rep.useColor), description, storePath)
}

func (rep *cliReporter) Failed(result unit.Result, err error, suggestions []string) {
	fmt.Fprintf(os.Stderr, "%s building %s: %v\n", colorize("Error:", colorRed, rep.useColor), result, err)
	for _, s := range suggestions {
		fmt.Fprintf(os.Stderr, "  -> %s\n", s)
	}
}
