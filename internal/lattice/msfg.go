package lattice

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// UnsegmentableString reports that a text admitted no legal segmentation
// when it was added to a MultiStringFactorGraph.
type UnsegmentableString struct{ Text string }

func (e *UnsegmentableString) Error() string {
	return fmt.Sprintf("lattice: unsegmentable string %q", e.Text)
}

// MSFGNode is a node of the merged corpus-wide lattice (spec.md §4.4).
// Unlike FactorGraph.Node it carries no start position: the same node can
// be the image of many per-string spans once factors are shared.
type MSFGNode struct {
	Factor     string
	IsSentinel bool
	Outgoing   []int
	Incoming   []int
}

// MSFGArc is an edge between two MSFGNodes. Cost is not stored on the arc:
// rescoring looks the pair of factors up in whatever score table the
// caller currently holds (spec.md §4.4 "cost handle"), so updating a
// model never touches graph topology.
type MSFGArc struct {
	Source, Target int
	removed        bool // tombstoned during AssignScores's rescore pass
}

// MultiStringFactorGraph is the shared lattice built by merging the
// per-string FactorGraphs of an entire corpus (spec.md §4.4).
type MultiStringFactorGraph struct {
	Boundary       string
	Nodes          []MSFGNode
	Arcs           []MSFGArc
	StringEndNodes map[string]int
	// EndNodeOrder is the order texts were first registered via Add (or,
	// for a graph loaded by ReadMSFG, the order of its end-node records),
	// giving the canonical iteration order spec.md §5 requires for
	// deterministic parallel reduction (first occurrence wins; a text
	// added twice keeps its original slot).
	EndNodeOrder []string
	factorNodes  map[string][]int
}

// NewMSFG returns an empty MSFG seeded with the shared start sentinel at
// node 0.
func NewMSFG(boundary string) *MultiStringFactorGraph {
	return &MultiStringFactorGraph{
		Boundary:       boundary,
		Nodes:          []MSFGNode{{Factor: boundary, IsSentinel: true}},
		StringEndNodes: make(map[string]int),
		factorNodes:    map[string][]int{boundary: {0}},
	}
}

// Add merges fg into the MSFG following spec.md §4.4's structural-sharing
// DFS, and records the MSFG node reached at fg's end sentinel under
// fg.Text. It fails with *UnsegmentableString if fg has no nodes.
func (m *MultiStringFactorGraph) Add(fg *FactorGraph) error {
	if len(fg.Nodes) == 0 {
		return &UnsegmentableString{Text: fg.Text}
	}
	created := map[int]int{0: 0}
	visited := make(map[int]bool)
	m.expand(fg, 0, 0, created, visited)
	endFG := len(fg.Nodes) - 1
	end, ok := created[endFG]
	if !ok {
		return &UnsegmentableString{Text: fg.Text}
	}
	if _, seen := m.StringEndNodes[fg.Text]; !seen {
		m.EndNodeOrder = append(m.EndNodeOrder, fg.Text)
	}
	m.StringEndNodes[fg.Text] = end
	return nil
}

func (m *MultiStringFactorGraph) expand(fg *FactorGraph, fgNode, msfgNode int, created map[int]int, visited map[int]bool) {
	if visited[fgNode] {
		return
	}
	visited[fgNode] = true
	for _, ai := range fg.Nodes[fgNode].Outgoing {
		arc := fg.Arcs[ai]
		tgtFG := arc.Target
		factor := fg.Nodes[tgtFG].Factor

		tgtMSFG, ok := created[tgtFG]
		if !ok {
			tgtMSFG, ok = m.findOutgoingByFactor(msfgNode, factor)
			if !ok {
				tgtMSFG = m.newNode(factor, fg.Nodes[tgtFG].IsSentinel)
			}
			created[tgtFG] = tgtMSFG
		}
		m.ensureArc(msfgNode, tgtMSFG)
		m.expand(fg, tgtFG, tgtMSFG, created, visited)
	}
}

func (m *MultiStringFactorGraph) newNode(factor string, sentinel bool) int {
	idx := len(m.Nodes)
	m.Nodes = append(m.Nodes, MSFGNode{Factor: factor, IsSentinel: sentinel})
	m.factorNodes[factor] = append(m.factorNodes[factor], idx)
	return idx
}

func (m *MultiStringFactorGraph) findOutgoingByFactor(node int, factor string) (int, bool) {
	for _, ai := range m.Nodes[node].Outgoing {
		if m.Arcs[ai].removed {
			continue
		}
		tgt := m.Arcs[ai].Target
		if m.Nodes[tgt].Factor == factor {
			return tgt, true
		}
	}
	return -1, false
}

func (m *MultiStringFactorGraph) ensureArc(src, tgt int) int {
	for _, ai := range m.Nodes[src].Outgoing {
		if !m.Arcs[ai].removed && m.Arcs[ai].Target == tgt {
			return ai
		}
	}
	ai := len(m.Arcs)
	m.Arcs = append(m.Arcs, MSFGArc{Source: src, Target: tgt})
	m.Nodes[src].Outgoing = append(m.Nodes[src].Outgoing, ai)
	m.Nodes[tgt].Incoming = append(m.Nodes[tgt].Incoming, ai)
	return ai
}

// EachArc calls fn once per live (non-tombstoned) arc with the factors
// of its endpoints, letting callers outside this package enumerate arcs
// without reaching into the unexported removed flag.
func (m *MultiStringFactorGraph) EachArc(fn func(srcFactor, tgtFactor string)) {
	for _, a := range m.Arcs {
		if a.removed {
			continue
		}
		fn(m.Nodes[a.Source].Factor, m.Nodes[a.Target].Factor)
	}
}

// FactorNodes returns the MSFG node indices carrying factor, usable as
// the entry point for blocked-factor or removal-scoped sweeps (spec.md
// §4.7 candidate ranking).
func (m *MultiStringFactorGraph) FactorNodes(factor string) []int {
	return m.factorNodes[factor]
}

// RemoveArcs deletes every arc touching a node carrying factor, then
// sweeps to close the graph: a non-sentinel node left with no incoming or
// no outgoing arcs is dropped, repeated until no further node qualifies
// (spec.md §4.4).
func (m *MultiStringFactorGraph) RemoveArcs(factor string) {
	for _, ni := range m.factorNodes[factor] {
		for _, ai := range append([]int(nil), m.Nodes[ni].Incoming...) {
			m.tombstone(ai)
		}
		for _, ai := range append([]int(nil), m.Nodes[ni].Outgoing...) {
			m.tombstone(ai)
		}
	}
	delete(m.factorNodes, factor)
	m.closePruning()
}

// PruneUnused removes arcs for every factor not present in vocab.
func (m *MultiStringFactorGraph) PruneUnused(vocab map[string]bool) {
	for factor := range m.factorNodes {
		if factor == m.Boundary || vocab[factor] {
			continue
		}
		m.RemoveArcs(factor)
	}
}

func (m *MultiStringFactorGraph) tombstone(ai int) {
	if m.Arcs[ai].removed {
		return
	}
	m.Arcs[ai].removed = true
	a := m.Arcs[ai]
	removeInt(&m.Nodes[a.Source].Outgoing, ai)
	removeInt(&m.Nodes[a.Target].Incoming, ai)
}

func (m *MultiStringFactorGraph) closePruning() {
	for {
		idx := -1
		for i, n := range m.Nodes {
			if n.IsSentinel {
				continue
			}
			if len(n.Incoming) == 0 && len(n.Outgoing) == 0 {
				continue // already fully detached, no work to cascade
			}
			if len(n.Incoming) == 0 || len(n.Outgoing) == 0 {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
		for _, ai := range append([]int(nil), m.Nodes[idx].Outgoing...) {
			m.tombstone(ai)
		}
		for _, ai := range append([]int(nil), m.Nodes[idx].Incoming...) {
			m.tombstone(ai)
		}
	}
}

// BigramScore looks up the log-probability of transitioning from src to
// tgt in table, reporting whether the cell exists.
type BigramScore func(src, tgt string) (float64, bool)

// AssignScores rescores every arc against table (spec.md §4.4): arcs
// whose (src.factor, tgt.factor) cell is missing are tombstoned as the
// scan reaches them, then the graph is closed under the usual pruning
// invariant. It returns the number of arcs dropped.
func (m *MultiStringFactorGraph) AssignScores(table BigramScore) int {
	var dropped int
	for ai := range m.Arcs {
		if m.Arcs[ai].removed {
			continue
		}
		a := m.Arcs[ai]
		if _, ok := table(m.Nodes[a.Source].Factor, m.Nodes[a.Target].Factor); !ok {
			m.tombstone(ai)
			dropped++
		}
	}
	if dropped > 0 {
		m.closePruning()
	}
	return dropped
}

// Compact physically removes tombstoned arcs, renumbering the surviving
// arc slice. Call between training phases, never mid-sweep.
func (m *MultiStringFactorGraph) Compact() {
	live := m.Arcs[:0]
	remap := make(map[int]int, len(m.Arcs))
	for ai, a := range m.Arcs {
		if a.removed {
			continue
		}
		remap[ai] = len(live)
		live = append(live, a)
	}
	m.Arcs = live
	for ni := range m.Nodes {
		m.Nodes[ni].Outgoing = remapIndices(m.Nodes[ni].Outgoing, remap)
		m.Nodes[ni].Incoming = remapIndices(m.Nodes[ni].Incoming, remap)
	}
}

func remapIndices(xs []int, remap map[int]int) []int {
	out := xs[:0]
	for _, x := range xs {
		if nx, ok := remap[x]; ok {
			out = append(out, nx)
		}
	}
	return out
}

// WriteMSFG serializes m in the text format from spec.md §4.4/§6: a
// header line, then dense node records, arc records, and end-node
// records, in that fixed order.
func WriteMSFG(w io.Writer, m *MultiStringFactorGraph) error {
	bw := bufio.NewWriter(w)

	liveArcs := make([]MSFGArc, 0, len(m.Arcs))
	for _, a := range m.Arcs {
		if !a.removed {
			liveArcs = append(liveArcs, a)
		}
	}

	texts := make([]string, 0, len(m.StringEndNodes))
	for t := range m.StringEndNodes {
		texts = append(texts, t)
	}
	sort.Strings(texts)

	if _, err := fmt.Fprintf(bw, "%d %d %d\n", len(m.Nodes), len(liveArcs), len(texts)); err != nil {
		return err
	}
	for i, n := range m.Nodes {
		if _, err := fmt.Fprintf(bw, "n %d %s\n", i, n.Factor); err != nil {
			return err
		}
	}
	for _, a := range liveArcs {
		if _, err := fmt.Fprintf(bw, "a %d %d\n", a.Source, a.Target); err != nil {
			return err
		}
	}
	for _, t := range texts {
		if _, err := fmt.Fprintf(bw, "e %s %d\n", t, m.StringEndNodes[t]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadMSFG parses the text format written by WriteMSFG, rejecting graphs
// that contain a cycle (spec.md §6: "file must be acyclic").
func ReadMSFG(r io.Reader, boundary string) (*MultiStringFactorGraph, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		return nil, fmt.Errorf("lattice: empty MSFG stream")
	}
	var numNodes, numArcs, numEnds int
	if _, err := fmt.Sscanf(sc.Text(), "%d %d %d", &numNodes, &numArcs, &numEnds); err != nil {
		return nil, fmt.Errorf("lattice: malformed MSFG header %q: %w", sc.Text(), err)
	}

	m := &MultiStringFactorGraph{
		Boundary:       boundary,
		Nodes:          make([]MSFGNode, numNodes),
		StringEndNodes: make(map[string]int, numEnds),
		factorNodes:    make(map[string][]int),
	}
	seenNode := make([]bool, numNodes)

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		switch fields[0] {
		case "n":
			idx, err := strconv.Atoi(fields[1])
			if err != nil || idx < 0 || idx >= numNodes {
				return nil, fmt.Errorf("lattice: bad node record %q", line)
			}
			factor := fields[2]
			m.Nodes[idx] = MSFGNode{Factor: factor, IsSentinel: factor == boundary}
			seenNode[idx] = true
			m.factorNodes[factor] = append(m.factorNodes[factor], idx)
		case "a":
			parts := strings.Fields(line)
			if len(parts) != 3 {
				return nil, fmt.Errorf("lattice: bad arc record %q", line)
			}
			src, err1 := strconv.Atoi(parts[1])
			tgt, err2 := strconv.Atoi(parts[2])
			if err1 != nil || err2 != nil || src < 0 || src >= numNodes || tgt < 0 || tgt >= numNodes {
				return nil, fmt.Errorf("lattice: bad arc record %q", line)
			}
			ai := len(m.Arcs)
			m.Arcs = append(m.Arcs, MSFGArc{Source: src, Target: tgt})
			m.Nodes[src].Outgoing = append(m.Nodes[src].Outgoing, ai)
			m.Nodes[tgt].Incoming = append(m.Nodes[tgt].Incoming, ai)
		case "e":
			parts := strings.Fields(line)
			if len(parts) != 3 {
				return nil, fmt.Errorf("lattice: bad end-node record %q", line)
			}
			end, err := strconv.Atoi(parts[2])
			if err != nil || end < 0 || end >= numNodes {
				return nil, fmt.Errorf("lattice: bad end-node record %q", line)
			}
			if _, seen := m.StringEndNodes[parts[1]]; !seen {
				m.EndNodeOrder = append(m.EndNodeOrder, parts[1])
			}
			m.StringEndNodes[parts[1]] = end
		default:
			return nil, fmt.Errorf("lattice: unknown record type %q", line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for i, ok := range seenNode {
		if !ok {
			return nil, fmt.Errorf("lattice: node %d never declared", i)
		}
	}
	if err := checkAcyclic(m); err != nil {
		return nil, err
	}
	return m, nil
}

func checkAcyclic(m *MultiStringFactorGraph) error {
	_, err := TopoOrder(m)
	return err
}

// TopoOrder returns the MSFG's nodes in a valid topological order.
// Structural sharing in Add means node-creation (insertion) order is
// *not* guaranteed topological — a later-created node can gain an arc
// from an earlier-created one reached only through a different branch's
// reuse — so every MSFG-level DP routine sorts first rather than relying
// on node index.
func TopoOrder(m *MultiStringFactorGraph) ([]int, error) {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(m.Nodes))
	order := make([]int, 0, len(m.Nodes))
	var visit func(n int) error
	visit = func(n int) error {
		color[n] = gray
		for _, ai := range m.Nodes[n].Outgoing {
			if m.Arcs[ai].removed {
				continue
			}
			tgt := m.Arcs[ai].Target
			switch color[tgt] {
			case gray:
				return fmt.Errorf("lattice: cycle detected through node %d", tgt)
			case white:
				if err := visit(tgt); err != nil {
					return err
				}
			}
		}
		color[n] = black
		order = append(order, n)
		return nil
	}
	for i := range m.Nodes {
		if color[i] == white {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}
