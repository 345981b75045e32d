package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/viperML/miq/internal/eval"
	"github.com/viperML/miq/internal/graph"
	"github.com/viperML/miq/internal/unit"
)

func newEvalCmd() *cobra.Command {
	var (
		output    string
		noDAG     bool
		evalPaths bool
	)

	cmd := &cobra.Command{
		Use:   "eval <unitref>",
		Short: "Evaluate a unit source and print its dependency graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := eval.ParseUnitRef(cfg.Root, args[0])
			if err != nil {
				return err
			}

			root, err := eval.NewEvaluator(cfg.Root).Evaluate(ref)
			if err != nil {
				return err
			}

			if noDAG {
				fmt.Fprintln(cmd.OutOrStdout(), root.EvalPath(cfg.Root))
				return nil
			}

			g, err := buildGraphFromEval(root)
			if err != nil {
				return err
			}

			if evalPaths {
				for _, r := range g.Nodes() {
					fmt.Fprintln(cmd.OutOrStdout(), r.EvalPath(cfg.Root))
				}
				return nil
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating DOT output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			writeDOT(w, g, root)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the DOT graph to a file instead of stdout")
	cmd.Flags().BoolVar(&noDAG, "no-dag", false, "print only the root unit's eval path, skip graph construction")
	cmd.Flags().BoolVar(&evalPaths, "eval-paths", false, "print each node's eval file path instead of DOT")

	return cmd
}

// buildGraphFromEval builds a graph.Graph over every unit already written to
// the eval directory, rooted at root. Every transitively reachable unit was
// already materialized to disk by Evaluate, so the lookup is a plain file
// read rather than another scripting-host pass.
func buildGraphFromEval(root unit.Result) (*graph.Graph, error) {
	lookup := func(r unit.Result) (unit.Unit, bool) {
		data, err := os.ReadFile(r.EvalPath(cfg.Root))
		if err != nil {
			return unit.Unit{}, false
		}
		u, err := unit.Unmarshal(data)
		if err != nil {
			return unit.Unit{}, false
		}
		return u, true
	}
	return graph.Build([]unit.Result{root}, lookup)
}
