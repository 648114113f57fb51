// Package bigram implements the bigram transition-table trainer
// (spec.md §4.7): maximum-likelihood or Kneser-Ney normalization over
// MSFG-derived counts, candidate ranking via a blocked-factor
// forward/backward probe, and the pruning commit loop.
package bigram

import (
	"log/slog"
	"math"

	"github.com/aaltospeech/morfex/internal/em"
	"github.com/aaltospeech/morfex/internal/lattice"
)

// Table is a sparse (src, tgt) -> log-probability transition table.
type Table map[[2]string]float64

// Config holds the bigram trainer's tunable constants (spec.md §4.7/§6).
type Config struct {
	TargetVocabSize   int
	RemovalsPerIter   int
	NCandidates       int
	MinLength         int // codepoints when UTF8, else bytes
	UTF8              bool
	UseKN             bool
	KNDiscount        float64
	FloorLP           float64
	TempVocabInterval int
	ResettleIters     int // pure EM passes after each pruning commit
	Threads           int
	DivideByDegree    bool // penalize high-connectivity candidates
}

// Trainer trains a Table against a pre-built MultiStringFactorGraph.
type Trainer struct {
	Table    Table
	MSFG     *lattice.MultiStringFactorGraph
	Corpus   map[string]float64 // text -> weight
	Stoplist map[string]bool
	Config   Config

	// Checkpoint, if set, is invoked after a pruning commit once the
	// vocabulary has shrunk by at least TempVocabInterval entries since
	// the last invocation (spec.md §4.7 step 7).
	Checkpoint func(table Table, vocabSize int)

	Logger *slog.Logger

	lastCheckpointSize int
}

// NewTrainer returns a Trainer over table/msfg/corpus. stoplist may be nil.
func NewTrainer(table Table, msfg *lattice.MultiStringFactorGraph, corpus map[string]float64, stoplist map[string]bool, cfg Config) *Trainer {
	if stoplist == nil {
		stoplist = map[string]bool{}
	}
	return &Trainer{Table: table, MSFG: msfg, Corpus: corpus, Stoplist: stoplist, Config: cfg, Logger: slog.Default(), lastCheckpointSize: -1}
}

func tableLookup(t Table) lattice.BigramScore {
	return func(src, tgt string) (float64, bool) {
		v, ok := t[[2]string{src, tgt}]
		return v, ok
	}
}

func (tr *Trainer) scoreFn() em.ScoreFn {
	return em.FallbackScore(tableLookup(tr.Table))
}

// blockedScoreFn behaves like scoreFn but scores every arc touching
// blocked as impossible, so forward/backward mass cannot flow through
// it without altering the MSFG's topology (spec.md §4.7 step 5 "blocked
// factor forward/backward variant").
func blockedScoreFn(inner em.ScoreFn, blocked string) em.ScoreFn {
	return func(src, tgt string) float64 {
		if src == blocked || tgt == blocked {
			return math.Inf(-1)
		}
		return inner(src, tgt)
	}
}

// runEMPass runs one forward-backward pass over the MSFG under the
// current table, sequentially or in parallel depending on Config.Threads.
func (tr *Trainer) runEMPass() (ll float64, stats em.BigramCounts, err error) {
	if tr.Config.Threads > 1 {
		return em.MSFGForwardBackwardParallel(tr.MSFG, tr.scoreFn(), tr.Corpus, tr.Config.Threads)
	}
	stats = make(em.BigramCounts)
	ll, err = em.MSFGForwardBackwardFull(tr.MSFG, tr.scoreFn(), tr.Corpus, stats)
	return ll, stats, err
}

// UnigramCountsFromStats computes U[f] = Sum_src stats[src][f] (spec.md
// §4.7 step 2), the total posterior mass of f occurring as a target.
func UnigramCountsFromStats(stats em.BigramCounts) map[string]float64 {
	out := make(map[string]float64)
	for k, c := range stats {
		out[k[1]] += c
	}
	return out
}

// vocabSize counts the distinct non-boundary factors referenced by table,
// the |T| spec.md §4.7 measures pruning progress against.
func vocabSize(table Table, boundary string) int {
	seen := map[string]bool{}
	for k := range table {
		if k[0] != boundary {
			seen[k[0]] = true
		}
		if k[1] != boundary {
			seen[k[1]] = true
		}
	}
	return len(seen)
}

// IterationResult summarizes one pass of TrainUntilTarget.
type IterationResult struct {
	LL        float64
	VocabSize int
	Dropped   int // arcs pruned by AssignScores this iteration
	Removed   []string
}

// TrainUntilTarget runs the full commit loop from spec.md §4.7: assign
// scores and prune unreachable arcs, EM, normalize (ML or KN), candidate
// selection/ranking/commit, pure re-settling passes, and repeat until
// the table's vocabulary is at or below TargetVocabSize.
func (tr *Trainer) TrainUntilTarget() ([]IterationResult, error) {
	var history []IterationResult
	for {
		dropped := tr.MSFG.AssignScores(tableLookup(tr.Table))

		ll, stats, err := tr.runEMPass()
		if err != nil {
			return history, err
		}

		if tr.Config.UseKN {
			tr.Table = tr.NormalizeKN(stats)
		} else {
			tr.Table = tr.Normalize(stats)
		}

		size := vocabSize(tr.Table, tr.MSFG.Boundary)
		result := IterationResult{LL: ll, VocabSize: size, Dropped: dropped}

		if size <= tr.Config.TargetVocabSize {
			history = append(history, result)
			return history, nil
		}

		unigramCounts := UnigramCountsFromStats(stats)
		candidates := tr.SelectCandidates(unigramCounts)
		ranked, err := tr.RankCandidates(candidates, ll)
		if err != nil {
			return history, err
		}
		removed := tr.Commit(ranked, size)
		result.Removed = removed
		history = append(history, result)

		if tr.lastCheckpointSize < 0 {
			tr.lastCheckpointSize = size + len(removed)
		}
		if tr.Checkpoint != nil && tr.Config.TempVocabInterval > 0 && tr.lastCheckpointSize-size >= tr.Config.TempVocabInterval {
			tr.Checkpoint(tr.Table, size)
			tr.lastCheckpointSize = size
		}

		if tr.Logger != nil {
			tr.Logger.Info("bigram prune commit", "vocab_size", size, "ll", ll, "dropped", dropped, "removed", len(removed))
		}

		if len(removed) == 0 {
			return history, nil
		}

		if err := tr.resettle(); err != nil {
			return history, err
		}
	}
}

// resettle runs ResettleIters pure EM passes (no pruning) to let
// probabilities re-converge after a commit (spec.md §4.7 step 7).
func (tr *Trainer) resettle() error {
	for i := 0; i < tr.Config.ResettleIters; i++ {
		_, stats, err := tr.runEMPass()
		if err != nil {
			return err
		}
		if tr.Config.UseKN {
			tr.Table = tr.NormalizeKN(stats)
		} else {
			tr.Table = tr.Normalize(stats)
		}
	}
	return nil
}
