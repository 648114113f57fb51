package unigram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidatesByFrequencyRanksAscending(t *testing.T) {
	lex := buildLex(map[string]float64{
		"a": math.Log(0.3), "b": math.Log(0.3), "ab": math.Log(0.4),
	})
	corpus := map[string]float64{"ab": 100, "a": 1}
	tr := NewTrainer(lex, corpus, nil, nil, Config{})

	cands, err := tr.CandidatesByFrequency()
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	for i := 1; i < len(cands); i++ {
		assert.LessOrEqual(t, cands[i-1].Score, cands[i].Score)
	}
}

func TestSelectCandidatesCombinesStrategiesWithoutDuplicates(t *testing.T) {
	lex := buildLex(map[string]float64{
		"a": math.Log(0.3), "b": math.Log(0.3), "ab": math.Log(0.4),
	})
	corpus := map[string]float64{"ab": 5, "a": 2, "b": 1}
	tr := NewTrainer(lex, corpus, nil, nil, Config{
		NCandidates: 10,
		Strategies:  []string{"by_frequency", "by_usage"},
	})

	cands, err := tr.SelectCandidates()
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, c := range cands {
		assert.False(t, seen[c.Factor], "duplicate candidate %q", c.Factor)
		seen[c.Factor] = true
	}
	assert.LessOrEqual(t, len(cands), 3)
}
