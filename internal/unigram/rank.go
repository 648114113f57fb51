package unigram

import (
	"errors"
	"math"
	"sort"

	"github.com/aaltospeech/morfex/internal/em"
)

// RankCandidates computes DeltaLL(f) = LL(corpus | lex \ {f}) - LL(corpus
// | lex) for each candidate by temporarily removing it from the lexicon,
// then sorts descending (least harmful removal first). A candidate whose
// removal makes some training text unsegmentable is ranked last instead
// of aborting the whole pass (spec.md §7 "errors from candidate
// evaluation abort only that candidate").
func (tr *Trainer) RankCandidates(candidates []Candidate) ([]Candidate, error) {
	_, baseline, err := tr.Resegment(tr.Corpus)
	if err != nil {
		return nil, err
	}

	ranked := make([]Candidate, len(candidates))
	for i, c := range candidates {
		score, err := tr.Lex.ScoreOf(c.Factor)
		if err != nil {
			ranked[i] = Candidate{Factor: c.Factor, Score: math.Inf(-1)}
			continue
		}
		tr.Lex.Remove(c.Factor)
		_, withoutLL, rerr := tr.Resegment(tr.Corpus)
		tr.Lex.Add(c.Factor, score)

		if rerr != nil {
			if errors.Is(rerr, em.ErrUnsegmentable) {
				ranked[i] = Candidate{Factor: c.Factor, Score: math.Inf(-1)}
				continue
			}
			return nil, rerr
		}
		ranked[i] = Candidate{Factor: c.Factor, Score: withoutLL - baseline}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked, nil
}

// Commit removes up to RemovalsPerIter top-ranked candidates whose
// length meets MinRemovalLength and which are not in the stoplist
// (spec.md §4.6 "Commit"). ranked must already be sorted descending by
// DeltaLL (least harmful first), as returned by RankCandidates.
func (tr *Trainer) Commit(ranked []Candidate) []string {
	var removed []string
	for _, c := range ranked {
		if len(removed) >= tr.Config.RemovalsPerIter {
			break
		}
		if tr.Stoplist[c.Factor] {
			continue
		}
		if tr.runeOrByteLen(c.Factor) < tr.Config.MinRemovalLength {
			continue
		}
		if _, err := tr.Lex.Remove(c.Factor); err == nil {
			removed = append(removed, c.Factor)
		}
	}
	tr.Lex.ReorderForBounds()
	return removed
}

// ThresholdPrune runs the alternative pruning strategy named by
// spec.md §6's unigram-threshold command: after each EM iteration,
// every factor scoring below the current threshold (and eligible by
// MinRemovalLength/Stoplist) is removed outright — no per-candidate
// delta-LL ranking — and the process repeats. The threshold is raised
// toward zero by increment only after a pass that removes nothing; the
// loop ends when the lexicon reaches TargetVocabSize or the raised
// threshold exceeds 0, whichever comes first. The threshold starts at
// Config.FloorLP, the same bound normalization already clamps scores
// to, so the first pass only removes factors normalization itself
// would have floored.
func (tr *Trainer) ThresholdPrune(increment float64) ([]IterationResult, error) {
	var history []IterationResult
	threshold := tr.Config.FloorLP
	for {
		ll, err := tr.RunIteration()
		if err != nil {
			return history, err
		}
		var removed []string
		for _, f := range sortedFactors(tr.Lex) {
			if tr.Lex.Len()-len(removed) <= tr.Config.TargetVocabSize {
				break
			}
			if tr.Stoplist[f] || tr.runeOrByteLen(f) < tr.Config.MinRemovalLength {
				continue
			}
			score, err := tr.Lex.ScoreOf(f)
			if err != nil || score >= threshold {
				continue
			}
			if _, err := tr.Lex.Remove(f); err == nil {
				removed = append(removed, f)
			}
		}
		tr.Lex.ReorderForBounds()
		history = append(history, IterationResult{LL: ll, VocabSize: tr.Lex.Len() + len(removed), Removed: removed})
		if tr.Logger != nil {
			tr.Logger.Info("unigram threshold commit", "threshold", threshold, "vocab_size", tr.Lex.Len(), "removed", len(removed))
		}
		if tr.Lex.Len() <= tr.Config.TargetVocabSize {
			return history, nil
		}
		if len(removed) == 0 {
			threshold += increment
			if threshold > 0 {
				// A factor's log-prob is never positive, so a threshold
				// above 0 can never remove anything new.
				return history, nil
			}
		}
	}
}

// IterationResult summarizes one pass of TrainUntilTarget.
type IterationResult struct {
	LL        float64
	VocabSize int
	Removed   []string
}

// TrainUntilTarget runs the commit loop from spec.md §4.6: one EM
// iteration, then (if the lexicon is still above TargetVocabSize) select
// and rank candidates, commit removals, and repeat.
func (tr *Trainer) TrainUntilTarget() ([]IterationResult, error) {
	var history []IterationResult
	for {
		ll, err := tr.RunIteration()
		if err != nil {
			return history, err
		}
		size := tr.Lex.Len()
		if size <= tr.Config.TargetVocabSize {
			history = append(history, IterationResult{LL: ll, VocabSize: size})
			return history, nil
		}

		candidates, err := tr.SelectCandidates()
		if err != nil {
			return history, err
		}
		ranked, err := tr.RankCandidates(candidates)
		if err != nil {
			return history, err
		}
		removed := tr.Commit(ranked)
		history = append(history, IterationResult{LL: ll, VocabSize: size, Removed: removed})
		if tr.Logger != nil {
			tr.Logger.Info("unigram prune commit", "vocab_size", size, "ll", ll, "removed", len(removed))
		}
		if len(removed) == 0 {
			// No candidate was eligible for removal; further looping
			// would not make progress toward the target.
			return history, nil
		}
	}
}
