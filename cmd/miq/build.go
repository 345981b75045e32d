package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viperML/miq/internal/eval"
	"github.com/viperML/miq/internal/realize/fetch"
	"github.com/viperML/miq/internal/realize/sandbox"
	"github.com/viperML/miq/internal/scheduler"
)

func newBuildCmd() *cobra.Command {
	var (
		quiet       bool
		rebuildRoot bool
		rebuildAll  bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "build <unitref>",
		Short: "Evaluate and realize the graph rooted at a unit reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rebuildRoot && rebuildAll {
				return fmt.Errorf("-r and -R are mutually exclusive")
			}

			ref, err := eval.ParseUnitRef(cfg.Root, args[0])
			if err != nil {
				return err
			}

			root, err := eval.NewEvaluator(cfg.Root).Evaluate(ref)
			if err != nil {
				return err
			}

			g, err := buildGraphFromEval(root)
			if err != nil {
				return err
			}

			mode := scheduler.RebuildNone
			switch {
			case rebuildAll:
				mode = scheduler.RebuildAll
			case rebuildRoot:
				mode = scheduler.RebuildRoot
			}

			realizer := &cliRealizer{
				root:   cfg.Root,
				idx:    idx,
				fetch:  &fetch.Client{},
				sbox:   sandbox.New(cfg.Root),
				logger: logger,
				quiet:  quiet,
			}

			sched := &scheduler.Scheduler{
				Root:         cfg.Root,
				Concurrency:  concurrency,
				Mode:         mode,
				Realizer:     realizer,
				Reporter:     &cliReporter{useColor: shouldUseColor(noColor), quiet: quiet},
				IsRegistered: idx.IsRegistered,
			}

			ctx, cancel := newCancellableContext()
			defer cancel()

			if err := sched.Run(ctx, g, root); err != nil {
				return err
			}

			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), root.StorePath(cfg.Root))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress build progress output")
	cmd.Flags().BoolVarP(&rebuildRoot, "rebuild-root", "r", false, "force realization of the root, even if already registered (a registered fetch root is not fetched again)")
	cmd.Flags().BoolVarP(&rebuildAll, "rebuild-all", "R", false, "force realization of every package in the graph")
	cmd.Flags().IntVarP(&concurrency, "jobs", "j", 1, "max packages building concurrently")

	return cmd
}
