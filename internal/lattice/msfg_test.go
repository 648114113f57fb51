package lattice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMSFGAddSharesStructure(t *testing.T) {
	lex := lexicon("a", "b", "ab", "c")
	m := NewMSFG("<w>")

	fg1 := Build("ab", "<w>", lex, 0, false)
	require.NoError(t, m.Add(fg1))
	nodesAfterFirst := len(m.Nodes)

	fg2 := Build("abc", "<w>", lex, 0, false)
	require.NotEmpty(t, fg2.Nodes)
	require.NoError(t, m.Add(fg2))

	// "ab" segmentation of "ab" and "abc" must reuse the same prefix
	// nodes: adding "abc" should not double the node count, since the "a"
	// and "ab" subpaths already exist from "ab".
	assert.Less(t, len(m.Nodes)-nodesAfterFirst, 4)

	endAB := m.StringEndNodes["ab"]
	endABC := m.StringEndNodes["abc"]
	assert.NotEqual(t, endAB, endABC)
}

func TestMSFGAddUnsegmentableFails(t *testing.T) {
	lex := lexicon("a")
	fg := Build("ab", "<w>", lex, 0, false)
	m := NewMSFG("<w>")
	err := m.Add(fg)
	var use *UnsegmentableString
	assert.ErrorAs(t, err, &use)
}

func TestMSFGRemoveArcsClosesGraph(t *testing.T) {
	lex := lexicon("a", "b", "ab")
	m := NewMSFG("<w>")
	require.NoError(t, m.Add(Build("ab", "<w>", lex, 0, false)))

	m.RemoveArcs("ab")
	for _, n := range m.Nodes {
		assert.NotEqual(t, "ab", n.Factor)
	}
}

func TestMSFGEachArcSkipsTombstoned(t *testing.T) {
	lex := lexicon("a", "b", "ab")
	m := NewMSFG("<w>")
	require.NoError(t, m.Add(Build("ab", "<w>", lex, 0, false)))

	m.RemoveArcs("ab")

	var pairs [][2]string
	m.EachArc(func(src, tgt string) { pairs = append(pairs, [2]string{src, tgt}) })
	for _, p := range pairs {
		assert.NotEqual(t, "ab", p[0])
		assert.NotEqual(t, "ab", p[1])
	}
}

func TestMSFGAssignScoresDropsMissingCells(t *testing.T) {
	lex := lexicon("a", "b")
	m := NewMSFG("<w>")
	require.NoError(t, m.Add(Build("a", "<w>", lex, 0, false)))
	require.NoError(t, m.Add(Build("b", "<w>", lex, 0, false)))

	table := map[string]map[string]float64{
		"<w>": {"a": -1},
		"a":   {"<w>": -1},
	}
	dropped := m.AssignScores(func(src, tgt string) (float64, bool) {
		row, ok := table[src]
		if !ok {
			return 0, false
		}
		v, ok := row[tgt]
		return v, ok
	})
	assert.Greater(t, dropped, 0)

	// "b" must have been pruned out entirely since it has no scored arcs.
	for _, n := range m.Nodes {
		assert.NotEqual(t, "b", n.Factor)
	}
}

func TestMSFGWriteReadRoundTrip(t *testing.T) {
	lex := lexicon("a", "b", "ab")
	m := NewMSFG("<w>")
	require.NoError(t, m.Add(Build("ab", "<w>", lex, 0, false)))
	require.NoError(t, m.Add(Build("a", "<w>", lex, 0, false)))

	var buf strings.Builder
	require.NoError(t, WriteMSFG(&buf, m))

	back, err := ReadMSFG(strings.NewReader(buf.String()), "<w>")
	require.NoError(t, err)
	assert.Equal(t, len(m.Nodes), len(back.Nodes))
	assert.Equal(t, m.StringEndNodes, back.StringEndNodes)
}

func TestReadMSFGRejectsCycle(t *testing.T) {
	src := "2 2 0\nn 0 <w>\nn 1 a\na 0 1\na 1 0\n"
	_, err := ReadMSFG(strings.NewReader(src), "<w>")
	assert.Error(t, err)
}
