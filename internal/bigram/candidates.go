package bigram

import (
	"sort"
	"unicode/utf8"

	"github.com/aaltospeech/morfex/internal/em"
)

// Candidate is a subword under consideration for removal from the table.
type Candidate struct {
	Factor string
	Score  float64
}

// SelectCandidates ranks factors ascending by their unigram count
// U[f] and returns the bottom NCandidates, excluding the boundary symbol
// and the stoplist (spec.md §4.7 step 4).
func (tr *Trainer) SelectCandidates(unigramCounts map[string]float64) []Candidate {
	all := make([]Candidate, 0, len(unigramCounts))
	for f, c := range unigramCounts {
		if f == tr.MSFG.Boundary || tr.Stoplist[f] {
			continue
		}
		all = append(all, Candidate{Factor: f, Score: c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score < all[j].Score
		}
		return all[i].Factor < all[j].Factor
	})
	if len(all) > tr.Config.NCandidates {
		all = all[:tr.Config.NCandidates]
	}
	return all
}

// factorDegree returns the total in+out arc degree across every MSFG
// node carrying factor, used to penalize high-connectivity candidates.
func (tr *Trainer) factorDegree(factor string) int {
	degree := 0
	for _, ni := range tr.MSFG.FactorNodes(factor) {
		degree += len(tr.MSFG.Nodes[ni].Incoming) + len(tr.MSFG.Nodes[ni].Outgoing)
	}
	return degree
}

// RankCandidates scores each candidate by the corpus log-likelihood
// change when its factor is blocked from scoring entirely (spec.md §4.7
// step 5). Blocking at the score level rather than rebuilding the MSFG
// means texts that never reach the candidate's nodes see an unchanged
// likelihood, so running the blocked pass over the *whole* corpus and
// subtracting baselineLL yields exactly the aggregate delta over the
// subset of texts that do reach it — spec.md's "subset of texts whose
// lattice contains f" without needing to materialize that subset.
// Candidates are sorted descending (least harmful removal first).
func (tr *Trainer) RankCandidates(candidates []Candidate, baselineLL float64) ([]Candidate, error) {
	ranked := make([]Candidate, len(candidates))
	base := tr.scoreFn()
	for i, c := range candidates {
		blocked := blockedScoreFn(base, c.Factor)
		blockedLL, err := em.MSFGForwardBackwardFull(tr.MSFG, blocked, tr.Corpus, nil)
		if err != nil {
			return nil, err
		}
		delta := blockedLL - baselineLL
		if tr.Config.DivideByDegree {
			if d := tr.factorDegree(c.Factor); d > 0 {
				delta /= float64(d)
			}
		}
		ranked[i] = Candidate{Factor: c.Factor, Score: delta}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked, nil
}

func (tr *Trainer) runeOrByteLen(f string) int {
	if tr.Config.UTF8 {
		return utf8.RuneCountInString(f)
	}
	return len(f)
}

// Commit removes up to RemovalsPerIter top-ranked candidates meeting
// MinLength and not in the stoplist, dropping their MSFG arcs and table
// rows/columns (spec.md §4.7 step 6). It never removes past
// TargetVocabSize in a single call, keeping pruning from overshooting
// the target in one batch.
func (tr *Trainer) Commit(ranked []Candidate, currentSize int) []string {
	budget := tr.Config.RemovalsPerIter
	if overshoot := currentSize - tr.Config.TargetVocabSize; overshoot < budget {
		budget = overshoot
	}
	if budget <= 0 {
		return nil
	}

	var removed []string
	for _, c := range ranked {
		if len(removed) >= budget {
			break
		}
		if tr.Stoplist[c.Factor] {
			continue
		}
		if tr.runeOrByteLen(c.Factor) < tr.Config.MinLength {
			continue
		}
		tr.MSFG.RemoveArcs(c.Factor)
		for k := range tr.Table {
			if k[0] == c.Factor || k[1] == c.Factor {
				delete(tr.Table, k)
			}
		}
		removed = append(removed, c.Factor)
	}
	return removed
}
