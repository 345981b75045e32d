package main

import (
	"fmt"
	"io"

	"github.com/viperML/miq/internal/graph"
	"github.com/viperML/miq/internal/unit"
)

// writeDOT renders g as Graphviz DOT, per spec.md §6's `eval` bullet: one
// node per Result, one edge per dependency, root highlighted.
func writeDOT(w io.Writer, g *graph.Graph, root unit.Result) {
	fmt.Fprintln(w, "digraph miq {")
	fmt.Fprintln(w, `  rankdir="LR";`)

	for _, r := range g.Nodes() {
		u, _ := g.Unit(r)
		shape := "box"
		if u.Fetch != nil {
			shape = "ellipse"
		}
		style := ""
		if r == root {
			style = `, style="bold"`
		}
		fmt.Fprintf(w, "  %q [label=%q, shape=%s%s];\n", r, nodeLabel(u), shape, style)
	}

	for _, r := range g.Nodes() {
		for _, dep := range g.DepsOf(r) {
			fmt.Fprintf(w, "  %q -> %q;\n", r, dep)
		}
	}

	fmt.Fprintln(w, "}")
}

func nodeLabel(u unit.Unit) string {
	switch {
	case u.Fetch != nil:
		return "fetch: " + u.Fetch.Name
	case u.Package != nil:
		return "package: " + u.Package.Name
	default:
		return "?"
	}
}
