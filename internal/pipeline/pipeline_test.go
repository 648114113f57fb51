package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaltospeech/morfex/internal/bigram"
	"github.com/aaltospeech/morfex/internal/unigram"
)

func TestLoadInitialVocabBuildsLookupableTrie(t *testing.T) {
	lex := LoadInitialVocab(map[string]float64{"a": -1, "b": -1, "ab": -0.5})
	assert.Equal(t, 3, lex.Len())
	score, err := lex.ScoreOf("ab")
	require.NoError(t, err)
	assert.Equal(t, -0.5, score)
}

func TestBuildMSFGSharesStructureAcrossCorpus(t *testing.T) {
	lex := LoadInitialVocab(map[string]float64{"a": -1, "b": -1, "ab": -1})
	m, err := BuildMSFG(map[string]float64{"ab": 5, "a": 2}, lex, "<w>", 0, false)
	require.NoError(t, err)
	assert.Len(t, m.EndNodeOrder, 2)
}

func TestBuildMSFGReportsUnsegmentableText(t *testing.T) {
	lex := LoadInitialVocab(map[string]float64{"a": -1})
	_, err := BuildMSFG(map[string]float64{"ab": 1}, lex, "<w>", 0, false)
	assert.Error(t, err)
}

func TestSeedBigramFromUnigramStatsCoversLiveArcs(t *testing.T) {
	lex := LoadInitialVocab(map[string]float64{"a": math.Log(0.5), "b": math.Log(0.5), "ab": math.Log(0.25)})
	m, err := BuildMSFG(map[string]float64{"ab": 5}, lex, "<w>", 0, false)
	require.NoError(t, err)

	table := SeedBigramFromUnigramStats(m, lex)
	assert.NotEmpty(t, table)
	for k, lp := range table {
		if k[1] == "<w>" {
			assert.Equal(t, 0.0, lp)
			continue
		}
		want, err := lex.ScoreOf(k[1])
		require.NoError(t, err)
		assert.Equal(t, want, lp)
	}
}

func TestDriverRunProducesFinalModel(t *testing.T) {
	corpus := map[string]float64{"ab": 20, "bc": 15, "a": 2, "b": 2, "c": 2}
	initial := map[string]float64{
		"a": math.Log(0.1), "b": math.Log(0.1), "c": math.Log(0.1),
		"ab": math.Log(0.4), "bc": math.Log(0.3),
	}

	var checkpoints []int
	d := NewDriver(Config{
		Boundary:           "<w>",
		UnigramWarmupIters: 1,
		Unigram: unigram.Config{
			OneCharMinLP: -25, FloorLP: -30,
		},
		Bigram: bigram.Config{
			TargetVocabSize: 4, RemovalsPerIter: 1, NCandidates: 5,
			MinLength: 1, FloorLP: -30,
		},
	}, nil)
	d.OnCheckpoint = func(_ bigram.Table, size int) { checkpoints = append(checkpoints, size) }

	state, err := d.Run(initial, corpus)
	require.NoError(t, err)
	assert.NotNil(t, state.MSFG)
	assert.NotEmpty(t, state.Trans)
	assert.NotEmpty(t, state.Vocab)
}

func TestDriverRunHonorsStopRequestBeforeBigramLoop(t *testing.T) {
	corpus := map[string]float64{"ab": 5, "a": 1}
	initial := map[string]float64{"a": math.Log(0.5), "b": math.Log(0.5), "ab": math.Log(0.25)}

	d := NewDriver(Config{
		Boundary:           "<w>",
		UnigramWarmupIters: 1,
		Bigram:             bigram.Config{TargetVocabSize: 0},
	}, nil)
	d.StopRequested = func() bool { return true }

	state, err := d.Run(initial, corpus)
	require.NoError(t, err)
	// TrainUntilTarget never ran, so the table is exactly the unigram seed
	// taken from the post-warmup vocabulary.
	seed := SeedBigramFromUnigramStats(state.MSFG, LoadInitialVocab(state.Vocab))
	assert.Equal(t, bigram.Table(seed), state.Trans)
}
