package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viperML/miq/internal/eval"
)

// newLuaCmd implements spec.md §6's `lua <path>[#<selector>]`: the name is
// spec.md's, inherited unchanged even though the scripting host behind it
// is yaegi rather than a Lua VM — the host is deliberately opaque to this
// interface (see SPEC_FULL.md §4.1, §9).
func newLuaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lua <path>[#<selector>]",
		Short: "Evaluate an embedded-script unit source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := eval.ParseUnitRef(cfg.Root, args[0])
			if err != nil {
				return err
			}
			result, err := eval.NewEvaluator(cfg.Root).Evaluate(ref)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.EvalPath(cfg.Root))
			return nil
		},
	}
}
