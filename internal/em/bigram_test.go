package em

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaltospeech/morfex/internal/lattice"
	"github.com/aaltospeech/morfex/internal/logdomain"
	"github.com/aaltospeech/morfex/internal/trie"
)

func buildTrieLex(factors ...string) *trie.Trie {
	tr := trie.New()
	for _, f := range factors {
		tr.Add(f, -1)
	}
	return tr
}

func tableScore(table map[[2]string]float64) ScoreFn {
	return func(src, tgt string) float64 {
		if v, ok := table[[2]string{src, tgt}]; ok {
			return v
		}
		return logdomain.SmallLP
	}
}

func TestBigramViterbiPrefersHigherTransitionScore(t *testing.T) {
	lex := buildTrieLex("a", "b", "ab")
	fg := lattice.Build("ab", "<w>", lex, 0, false)

	score := tableScore(map[[2]string]float64{
		{"<w>", "ab"}: math.Log(0.05),
		{"ab", "<w>"}: math.Log(1.0),
		{"<w>", "a"}:  math.Log(0.9),
		{"a", "b"}:    math.Log(0.9),
		{"b", "<w>"}:  math.Log(1.0),
	})

	path, cost, counts, err := BigramViterbi(fg, score)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, path)
	assert.Greater(t, cost, math.Log(0.05))
	assert.Equal(t, float64(1), counts[[2]string{"<w>", "a"}])
}

func TestBigramForwardBackwardTotalsLL(t *testing.T) {
	lex := buildTrieLex("a", "b", "ab")
	fg := lattice.Build("ab", "<w>", lex, 0, false)
	score := tableScore(map[[2]string]float64{
		{"<w>", "ab"}: math.Log(0.2),
		{"ab", "<w>"}: 0,
		{"<w>", "a"}:  math.Log(0.4),
		{"a", "b"}:    math.Log(0.4),
		{"b", "<w>"}:  0,
	})
	stats := make(BigramCounts)
	ll, charPost, err := BigramForwardBackward(fg, score, "", 1.0, stats)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.2+0.4*0.4), ll, 1e-9)
	assert.NotEmpty(t, charPost)
	assert.Greater(t, stats[[2]string{"<w>", "a"}], 0.0)
}

func TestBigramForwardBackwardBlockedFactor(t *testing.T) {
	lex := buildTrieLex("a", "b", "ab")
	fg := lattice.Build("ab", "<w>", lex, 0, false)
	score := tableScore(map[[2]string]float64{
		{"<w>", "ab"}: math.Log(0.2),
		{"ab", "<w>"}: 0,
		{"<w>", "a"}:  math.Log(0.4),
		{"a", "b"}:    math.Log(0.4),
		{"b", "<w>"}:  0,
	})
	_, _, err := BigramForwardBackward(fg, score, "ab", 1.0, make(BigramCounts))
	require.NoError(t, err)
}

func TestBigramForwardBackwardUnsegmentable(t *testing.T) {
	fg := &lattice.FactorGraph{}
	_, _, err := BigramForwardBackward(fg, tableScore(nil), "", 1.0, nil)
	assert.ErrorIs(t, err, ErrUnsegmentable)
}
