package trie

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddContainsScoreOf(t *testing.T) {
	tr := New()
	tr.Add("a", -1)
	tr.Add("bc", -2)

	assert.True(t, tr.Contains("a"))
	assert.True(t, tr.Contains("bc"))
	assert.False(t, tr.Contains("b"))

	s, err := tr.ScoreOf("bc")
	require.NoError(t, err)
	assert.Equal(t, -2.0, s)

	_, err = tr.ScoreOf("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveLeavesShapeIntact(t *testing.T) {
	tr := New()
	tr.Add("a", -1)
	tr.Add("ab", -2)

	prior, err := tr.Remove("a")
	require.NoError(t, err)
	assert.Equal(t, -1.0, prior)
	assert.False(t, tr.Contains("a"))
	// "ab" still reachable: the path through 'a' was not deleted.
	assert.True(t, tr.Contains("ab"))

	// Reinstating "a" must work without re-walking from scratch failing.
	tr.Add("a", -5)
	assert.True(t, tr.Contains("a"))
}

func TestAssignScoresReportsMissing(t *testing.T) {
	tr := New()
	tr.Add("a", -1)
	err := tr.AssignScores(map[string]float64{"a": -3, "missing": -1})
	assert.Error(t, err)

	s, _ := tr.ScoreOf("a")
	assert.Equal(t, -3.0, s)
}

func TestMatchesAtFindsAllPrefixes(t *testing.T) {
	tr := New()
	tr.Add("a", -1)
	tr.Add("ab", -2)
	tr.Add("abc", -3)

	matches := tr.MatchesAt("abcd", 0, 0)
	require.Len(t, matches, 3)
	assert.Equal(t, "a", matches[0].Factor)
	assert.Equal(t, "ab", matches[1].Factor)
	assert.Equal(t, "abc", matches[2].Factor)
}

func TestMatchesAtRespectsMaxLen(t *testing.T) {
	tr := New()
	tr.Add("a", -1)
	tr.Add("ab", -2)
	tr.Add("abc", -3)

	matches := tr.MatchesAt("abcd", 0, 2)
	require.Len(t, matches, 2)
}

func TestLongestFactorLen(t *testing.T) {
	tr := New()
	tr.Add("a", -1)
	tr.Add("abc", -2)
	assert.Equal(t, 3, tr.LongestFactorLen())
}

func TestBoundedMatchesAtMatchesUnboundedResults(t *testing.T) {
	tr := New()
	tr.Add("a", math.Log(0.1))
	tr.Add("ab", math.Log(0.2))
	tr.Add("abc", math.Log(0.5))
	tr.ReorderForBounds()

	bounded := tr.BoundedMatchesAt("abcd", 0, 0, 0, math.Inf(-1))
	unbounded := tr.MatchesAt("abcd", 0, 0)
	assert.ElementsMatch(t, factorsOf(unbounded), factorsOf(bounded))
}

func TestEachVisitsOnlyActiveFactors(t *testing.T) {
	tr := New()
	tr.Add("a", -1)
	tr.Add("ab", -2)
	tr.Remove("a")

	seen := map[string]float64{}
	tr.Each(func(factor string, score float64) { seen[factor] = score })

	assert.Equal(t, map[string]float64{"ab": -2}, seen)
}

func factorsOf(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Factor
	}
	return out
}
