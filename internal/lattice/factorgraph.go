// Package lattice implements the segmentation lattice data structures from
// spec.md §3/§4.3/§4.4: the per-string FactorGraph (FG) and the
// corpus-wide MultiStringFactorGraph (MSFG) that shares structure across
// many FGs. Arcs are stored as a flat index-addressed vector rather than
// as owning pointers (spec.md §9 design note), so both graphs serialize
// trivially and carry no destructor cascades.
package lattice

import (
	"errors"

	"github.com/aaltospeech/morfex/internal/logdomain"
	"github.com/aaltospeech/morfex/internal/trie"
)

// ErrUnsegmentable is returned when a training string admits no legal
// segmentation under the current lexicon.
var ErrUnsegmentable = errors.New("lattice: string is unsegmentable")

// Arc is a directed edge of a FactorGraph, weighted in the log domain.
type Arc struct {
	Source, Target int
	Cost           float64
}

// Node is a lattice node: either a boundary sentinel (Len == 0) or a span
// of the underlying text.
type Node struct {
	StartPos, Len int
	Factor        string
	IsSentinel    bool
	Outgoing      []int // indices into FactorGraph.Arcs
	Incoming      []int
}

// FactorGraph is the segmentation DAG of a single text string (spec.md
// §3/§4.3). Node 0 is always the start sentinel; the last node is always
// the end sentinel. An empty Nodes slice means the text has no legal
// segmentation under the lexicon it was built from.
type FactorGraph struct {
	Text     string
	Boundary string
	Nodes    []Node
	Arcs     []Arc
}

// Build constructs the factor graph for text under lex, bounded to
// factors spanning at most maxChars characters (bytes when utf8 is
// false, codepoints when true; maxChars <= 0 means unbounded). Returns a
// FactorGraph with an empty Nodes slice, not an error, when text is empty
// or admits no legal segmentation — callers treat that as
// "unsegmentable" per spec.md §4.3.
func Build(text, boundary string, lex *trie.Trie, maxChars int, utf8 bool) *FactorGraph {
	fg := &FactorGraph{Text: text, Boundary: boundary}
	if text == "" {
		return fg
	}

	positions := logdomain.CharPositions(text, utf8)
	boundaries := append(append([]int{}, positions...), len(text))

	fg.Nodes = append(fg.Nodes, Node{Factor: boundary, IsSentinel: true})
	incoming := make([][]int, len(text)+1)
	incoming[0] = []int{-1} // -1 marks "reachable from start", not a real predecessor

	for bi := 0; bi < len(boundaries)-1; bi++ {
		i := boundaries[bi]
		if len(incoming[i]) == 0 {
			continue
		}
		for bj := bi + 1; bj < len(boundaries); bj++ {
			if maxChars > 0 && bj-bi > maxChars {
				break
			}
			j := boundaries[bj]
			factor := text[i:j]
			if !lex.Contains(factor) {
				continue
			}
			fg.Nodes = append(fg.Nodes, Node{StartPos: i, Len: j - i, Factor: factor})
			incoming[j] = append(incoming[j], i)
		}
	}

	if len(incoming[len(text)]) == 0 {
		fg.Nodes = nil
		return fg
	}

	fg.pruneAndConnect(incoming)
	return fg
}

// pruneAndConnect implements spec.md §4.3 steps 2–3: keep only nodes that
// lie on some start-to-end path, append the end sentinel, and wire arcs
// between every (node ending at p) -> (node starting at p) pair.
func (fg *FactorGraph) pruneAndConnect(incoming [][]int) {
	text := fg.Text
	reachesEnd := map[int]bool{len(text): true}
	for i := len(text); i >= 0; i-- {
		if !reachesEnd[i] {
			continue
		}
		for _, p := range incoming[i] {
			if p >= 0 {
				reachesEnd[p] = true
			}
		}
	}

	kept := fg.Nodes[:1] // keep the start sentinel unconditionally
	for _, n := range fg.Nodes[1:] {
		if reachesEnd[n.StartPos] && reachesEnd[n.StartPos+n.Len] {
			kept = append(kept, n)
		}
	}
	fg.Nodes = kept
	fg.Nodes = append(fg.Nodes, Node{StartPos: len(text), Factor: fg.Boundary, IsSentinel: true})

	byStart := make(map[int][]int, len(text)+1)
	for idx, n := range fg.Nodes {
		byStart[n.StartPos] = append(byStart[n.StartPos], idx)
	}

	for i := 0; i < len(fg.Nodes)-1; i++ {
		endPos := fg.Nodes[i].StartPos + fg.Nodes[i].Len
		for _, tgt := range byStart[endPos] {
			if tgt == i {
				continue
			}
			fg.addArc(i, tgt, 0)
		}
	}
}

func (fg *FactorGraph) addArc(src, tgt int, cost float64) int {
	ai := len(fg.Arcs)
	fg.Arcs = append(fg.Arcs, Arc{Source: src, Target: tgt, Cost: cost})
	fg.Nodes[src].Outgoing = append(fg.Nodes[src].Outgoing, ai)
	fg.Nodes[tgt].Incoming = append(fg.Nodes[tgt].Incoming, ai)
	return ai
}

// NumPaths counts distinct segmentations via a DP over the (already
// topologically ordered) node vector.
func (fg *FactorGraph) NumPaths() int {
	if len(fg.Nodes) == 0 {
		return 0
	}
	counts := make([]int, len(fg.Nodes))
	counts[0] = 1
	for i := range fg.Nodes {
		for _, ai := range fg.Nodes[i].Outgoing {
			counts[fg.Arcs[ai].Target] += counts[i]
		}
	}
	return counts[len(counts)-1]
}

// EnumeratePaths returns every segmentation as a sequence of factors,
// excluding the boundary sentinels. Callers must bound input length:
// the number of paths can be exponential in the text length.
func (fg *FactorGraph) EnumeratePaths() [][]string {
	if len(fg.Nodes) == 0 {
		return nil
	}
	var paths [][]string
	var walk func(node int, curr []string)
	walk = func(node int, curr []string) {
		if node != 0 && !fg.Nodes[node].IsSentinel {
			curr = append(curr, fg.Nodes[node].Factor)
		}
		if node == len(fg.Nodes)-1 {
			out := make([]string, len(curr))
			copy(out, curr)
			paths = append(paths, out)
			return
		}
		for _, ai := range fg.Nodes[node].Outgoing {
			walk(fg.Arcs[ai].Target, curr)
		}
	}
	walk(0, nil)
	return paths
}

// Equals reports structural equality: same node order and same arc
// multisets (spec.md §4.3 contract).
func (fg *FactorGraph) Equals(other *FactorGraph) bool {
	if len(fg.Nodes) != len(other.Nodes) {
		return false
	}
	for i := range fg.Nodes {
		a, b := fg.Nodes[i], other.Nodes[i]
		if a.StartPos != b.StartPos || a.Len != b.Len {
			return false
		}
		if len(a.Incoming) != len(b.Incoming) || len(a.Outgoing) != len(b.Outgoing) {
			return false
		}
		for k := range a.Incoming {
			if fg.Arcs[a.Incoming[k]] != other.Arcs[b.Incoming[k]] {
				return false
			}
		}
		for k := range a.Outgoing {
			if fg.Arcs[a.Outgoing[k]] != other.Arcs[b.Outgoing[k]] {
				return false
			}
		}
	}
	return true
}

// RemoveArcsForFactor removes every arc into or out of a node carrying
// factor, then closes the graph under spec.md §4.3's pruning invariant: any
// non-sentinel node left with no incoming or no outgoing arcs is removed,
// iterated to a fixed point.
func (fg *FactorGraph) RemoveArcsForFactor(factor string) {
	for i := 0; i < len(fg.Nodes); i++ {
		if fg.Nodes[i].Factor != factor || fg.Nodes[i].IsSentinel {
			continue
		}
		for len(fg.Nodes[i].Incoming) > 0 {
			fg.removeArcAt(fg.Nodes[i].Incoming[0])
		}
		for len(fg.Nodes[i].Outgoing) > 0 {
			fg.removeArcAt(fg.Nodes[i].Outgoing[0])
		}
	}
	fg.closePruning()
}

// RemoveArcsForPair removes every arc directly connecting a src-factor
// node to a tgt-factor node, then closes the graph as above.
func (fg *FactorGraph) RemoveArcsForPair(src, tgt string) {
	for i := range fg.Nodes {
		if fg.Nodes[i].Factor != src {
			continue
		}
		for k := 0; k < len(fg.Nodes[i].Outgoing); {
			ai := fg.Nodes[i].Outgoing[k]
			if fg.Nodes[fg.Arcs[ai].Target].Factor == tgt {
				fg.removeArcAt(ai)
				continue // removeArcAt compacted Outgoing in place
			}
			k++
		}
	}
	fg.closePruning()
}

func (fg *FactorGraph) closePruning() {
	for {
		idx := -1
		for i, n := range fg.Nodes {
			if n.IsSentinel {
				continue
			}
			if len(n.Incoming) == 0 || len(n.Outgoing) == 0 {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
		fg.removeNodeAndArcs(idx)
	}
}

func (fg *FactorGraph) removeNodeAndArcs(idx int) {
	for len(fg.Nodes[idx].Outgoing) > 0 {
		fg.removeArcAt(fg.Nodes[idx].Outgoing[0])
	}
	for len(fg.Nodes[idx].Incoming) > 0 {
		fg.removeArcAt(fg.Nodes[idx].Incoming[0])
	}
	fg.removeNodeAt(idx)
}

func (fg *FactorGraph) removeArcAt(ai int) {
	a := fg.Arcs[ai]
	removeInt(&fg.Nodes[a.Source].Outgoing, ai)
	removeInt(&fg.Nodes[a.Target].Incoming, ai)
	last := len(fg.Arcs) - 1
	if ai != last {
		fg.Arcs[ai] = fg.Arcs[last]
		moved := fg.Arcs[ai]
		replaceInt(fg.Nodes[moved.Source].Outgoing, last, ai)
		replaceInt(fg.Nodes[moved.Target].Incoming, last, ai)
	}
	fg.Arcs = fg.Arcs[:last]
}

// removeNodeAt deletes the node at ni, which is never the start or end
// sentinel (closePruning only ever passes non-sentinel indices). Every
// later node shifts down one slot, so the node vector stays
// topologically ordered and the end sentinel stays at len(fg.Nodes)-1.
func (fg *FactorGraph) removeNodeAt(ni int) {
	last := len(fg.Nodes) - 1
	for k := ni; k < last; k++ {
		fg.Nodes[k] = fg.Nodes[k+1]
		for _, ai := range fg.Nodes[k].Outgoing {
			fg.Arcs[ai].Source = k
		}
		for _, ai := range fg.Nodes[k].Incoming {
			fg.Arcs[ai].Target = k
		}
	}
	fg.Nodes = fg.Nodes[:last]
}

func removeInt(s *[]int, v int) {
	for i, x := range *s {
		if x == v {
			(*s)[i] = (*s)[len(*s)-1]
			*s = (*s)[:len(*s)-1]
			return
		}
	}
}

func replaceInt(s []int, old, new int) {
	for i, x := range s {
		if x == old {
			s[i] = new
			return
		}
	}
}
