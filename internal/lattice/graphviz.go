package lattice

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteGraphviz renders m as a Graphviz DOT digraph: one node per
// MSFGNode (sentinels drawn as boxes, factors as ellipses) and one edge
// per live arc. It is debugging/inspection tooling only, never read back
// by this package (spec.md §1's "optional Graphviz dump").
func WriteGraphviz(w io.Writer, m *MultiStringFactorGraph) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, "digraph msfg {"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(bw, "\trankdir=LR;"); err != nil {
		return err
	}

	for i, n := range m.Nodes {
		shape := "ellipse"
		if n.IsSentinel {
			shape = "box"
		}
		if _, err := fmt.Fprintf(bw, "\tn%d [label=%s shape=%s];\n", i, dotQuote(n.Factor), shape); err != nil {
			return err
		}
	}
	for _, a := range m.Arcs {
		if a.removed {
			continue
		}
		if _, err := fmt.Fprintf(bw, "\tn%d -> n%d;\n", a.Source, a.Target); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(bw, "}"); err != nil {
		return err
	}
	return bw.Flush()
}

// dotQuote renders s as a double-quoted DOT string literal, escaping the
// two characters DOT treats specially inside quotes.
func dotQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
