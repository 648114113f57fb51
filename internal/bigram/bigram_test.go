package bigram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaltospeech/morfex/internal/em"
	"github.com/aaltospeech/morfex/internal/lattice"
	"github.com/aaltospeech/morfex/internal/trie"
)

func buildTrieLex(factors ...string) *trie.Trie {
	tr := trie.New()
	for _, f := range factors {
		tr.Add(f, -1)
	}
	return tr
}

func buildFixtureMSFG(t *testing.T) *lattice.MultiStringFactorGraph {
	t.Helper()
	lex := buildTrieLex("a", "b", "ab")
	m := lattice.NewMSFG("<w>")
	require.NoError(t, m.Add(lattice.Build("ab", "<w>", lex, 0, false)))
	require.NoError(t, m.Add(lattice.Build("a", "<w>", lex, 0, false)))
	return m
}

func fixtureTable() Table {
	return Table{
		{"<w>", "ab"}: math.Log(0.2),
		{"ab", "<w>"}: 0,
		{"<w>", "a"}:  math.Log(0.5),
		{"a", "b"}:    math.Log(0.4),
		{"b", "<w>"}:  0,
		{"a", "<w>"}:  math.Log(0.6),
	}
}

func TestNormalizeRowsSumToOne(t *testing.T) {
	tr := NewTrainer(fixtureTable(), buildFixtureMSFG(t), map[string]float64{"ab": 2, "a": 1}, nil, Config{FloorLP: -30})
	_, stats, err := tr.runEMPass()
	require.NoError(t, err)

	table := tr.Normalize(stats)
	rows, _ := groupRows(statsFromTable(table))
	for src, row := range rows {
		var mass float64
		for _, lp := range row {
			mass += math.Exp(lp)
		}
		assert.InDelta(t, 1.0, mass, 1e-9, "row %q", src)
	}
}

func statsFromTable(t Table) em.BigramCounts {
	out := make(em.BigramCounts, len(t))
	for k, lp := range t {
		out[k] = math.Exp(lp)
	}
	return out
}

func TestNormalizeKNRowsSumToOne(t *testing.T) {
	tr := NewTrainer(fixtureTable(), buildFixtureMSFG(t), map[string]float64{"ab": 2, "a": 1}, nil, Config{FloorLP: -30, KNDiscount: 0.1})
	_, stats, err := tr.runEMPass()
	require.NoError(t, err)

	table := tr.NormalizeKN(stats)
	rows, _ := groupRows(statsFromTable(table))
	for src, row := range rows {
		var mass float64
		for _, lp := range row {
			mass += math.Exp(lp)
		}
		assert.InDelta(t, 1.0, mass, 1e-9, "row %q", src)
	}
}

func TestSelectCandidatesExcludesBoundaryAndStoplist(t *testing.T) {
	tr := NewTrainer(fixtureTable(), buildFixtureMSFG(t), map[string]float64{"ab": 2, "a": 1}, map[string]bool{"a": true}, Config{NCandidates: 10})
	counts := map[string]float64{"<w>": 5, "a": 3, "b": 1, "ab": 2}

	cands := tr.SelectCandidates(counts)
	var factors []string
	for _, c := range cands {
		factors = append(factors, c.Factor)
	}
	assert.NotContains(t, factors, "<w>")
	assert.NotContains(t, factors, "a")
	assert.Contains(t, factors, "b")
}

func TestRankCandidatesOrdersDescending(t *testing.T) {
	tr := NewTrainer(fixtureTable(), buildFixtureMSFG(t), map[string]float64{"ab": 2, "a": 1}, nil, Config{})
	baseline, _, err := tr.runEMPass()
	require.NoError(t, err)

	ranked, err := tr.RankCandidates([]Candidate{{Factor: "ab"}, {Factor: "b"}}, baseline)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	for i := 1; i < len(ranked); i++ {
		assert.LessOrEqual(t, ranked[i].Score, ranked[i-1].Score)
	}
}

func TestCommitDropsMSFGArcsAndTableRows(t *testing.T) {
	m := buildFixtureMSFG(t)
	table := fixtureTable()
	tr := NewTrainer(table, m, map[string]float64{"ab": 2, "a": 1}, nil, Config{
		RemovalsPerIter: 1, TargetVocabSize: 0, MinLength: 1,
	})

	removed := tr.Commit([]Candidate{{Factor: "ab", Score: -0.1}}, 2)
	assert.Equal(t, []string{"ab"}, removed)
	for k := range tr.Table {
		assert.NotEqual(t, "ab", k[0])
		assert.NotEqual(t, "ab", k[1])
	}
}

func TestTrainUntilTargetReachesTarget(t *testing.T) {
	m := buildFixtureMSFG(t)
	table := fixtureTable()
	tr := NewTrainer(table, m, map[string]float64{"ab": 10, "a": 1}, nil, Config{
		TargetVocabSize: 2, RemovalsPerIter: 1, NCandidates: 5,
		MinLength: 1, FloorLP: -30,
	})

	history, err := tr.TrainUntilTarget()
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.LessOrEqual(t, vocabSize(tr.Table, "<w>"), 2)
}

func TestTrainUntilTargetInvokesCheckpoint(t *testing.T) {
	m := buildFixtureMSFG(t)
	table := fixtureTable()
	var checkpoints []int
	tr := NewTrainer(table, m, map[string]float64{"ab": 10, "a": 1}, nil, Config{
		TargetVocabSize: 0, RemovalsPerIter: 1, NCandidates: 5,
		MinLength: 1, FloorLP: -30, TempVocabInterval: 1,
	})
	tr.Checkpoint = func(_ Table, size int) { checkpoints = append(checkpoints, size) }

	_, err := tr.TrainUntilTarget()
	require.NoError(t, err)
	assert.NotEmpty(t, checkpoints)
}
