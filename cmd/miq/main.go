// Command miq is the CLI surface of spec.md §6: evaluate unit sources,
// build their dependency graph, and realize it against the store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/viperML/miq/internal/config"
	"github.com/viperML/miq/internal/realize/sandbox"
	"github.com/viperML/miq/internal/store"
)

var (
	noColor bool
	verbose bool

	cfg    *config.Config
	idx    *store.Index
	lock   *processLock
	logger *zap.Logger
)

func main() {
	// Must run before cobra ever parses argv: the sandbox realizer re-execs
	// this binary with sandbox.ReexecArg as argv[1] so it can set up the
	// freshly created user/mount/network namespaces and exec the build
	// script (spec.md §4.6). If this process isn't that re-exec'd child,
	// MaybeRunInit returns immediately.
	sandbox.MaybeRunInit()

	rootCmd := newRootCmd()

	exitCode := 0
	if err := rootCmd.Execute(); err != nil {
		FormatError(os.Stderr, err, shouldUseColor(noColor))
		exitCode = 1
	}

	if lock != nil {
		_ = lock.Release()
	}
	if idx != nil {
		_ = idx.Close()
	}
	if logger != nil {
		_ = logger.Sync()
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "miq",
		Short:         "A content-addressed package builder",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd.Name())
		},
	}

	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newSchemaCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newBuildCmd())
	root.AddCommand(newStoreCmd())
	root.AddCommand(newLuaCmd())

	return root
}

// setup resolves config, opens the store index, and (for every command
// except the lockless "schema" subcommand, which only renders a static
// document) takes the process-singleton lock, per spec.md §6's
// `/miq/lock`.
func setup(cmdName string) error {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	var err error
	logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	if cmdName != "schema" {
		lock, err = acquireLock(cfg.LockPath())
		if err != nil {
			return err
		}
	}

	idx, err = store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	return nil
}

// newCancellableContext returns a context canceled on SIGINT/SIGTERM, so a
// long-running build can unwind cleanly instead of leaving a half-written
// sandbox behind.
func newCancellableContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
