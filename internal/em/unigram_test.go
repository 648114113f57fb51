package em

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaltospeech/morfex/internal/trie"
)

func buildLex(scores map[string]float64) *trie.Trie {
	tr := trie.New()
	for f, s := range scores {
		tr.Add(f, s)
	}
	return tr
}

func TestUnigramViterbiPicksHigherScoringSegmentation(t *testing.T) {
	lex := buildLex(map[string]float64{
		"a":  math.Log(0.5),
		"b":  math.Log(0.5),
		"ab": math.Log(0.9),
	})
	factors, cost, err := UnigramViterbi("ab", lex, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab"}, factors)
	assert.InDelta(t, math.Log(0.9), cost, 1e-9)
}

func TestUnigramViterbiUnsegmentable(t *testing.T) {
	lex := buildLex(map[string]float64{"a": -1})
	_, _, err := UnigramViterbi("ab", lex, false)
	assert.ErrorIs(t, err, ErrUnsegmentable)
}

func TestUnigramForwardBackwardLikelihoodMatchesEnumeration(t *testing.T) {
	lex := buildLex(map[string]float64{
		"a":  math.Log(0.5),
		"b":  math.Log(0.5),
		"ab": math.Log(0.1),
	})
	stats := make(map[string]float64)
	ll, err := UnigramForwardBackward("ab", lex, false, 1.0, stats)
	require.NoError(t, err)

	// Two segmentations: "a"+"b" at 0.25, "ab" at 0.1 -> total 0.35.
	assert.InDelta(t, math.Log(0.35), ll, 1e-9)
	assert.Greater(t, stats["a"], 0.0)
	assert.Greater(t, stats["b"], 0.0)
	assert.Greater(t, stats["ab"], 0.0)
}

func TestUnigramForwardBackwardEmptyText(t *testing.T) {
	lex := buildLex(map[string]float64{"a": -1})
	stats := make(map[string]float64)
	ll, err := UnigramForwardBackward("", lex, false, 1.0, stats)
	require.NoError(t, err)
	assert.Equal(t, 0.0, ll)
	assert.Empty(t, stats)
}
