package unigram

import (
	"math/rand"
	"sort"
)

// Candidate is a lexicon entry under consideration for removal.
type Candidate struct {
	Factor string
	Score  float64 // selection-strategy-specific score; meaning varies until Rank overwrites it with DeltaLL
}

// CandidatesByUsage resegments the corpus under unit weights (type
// counts, not token counts) and ranks ascending by how many texts use
// each factor — shortest-used first (spec.md §4.6 by_usage).
func (tr *Trainer) CandidatesByUsage() ([]Candidate, error) {
	unitWeights := make(map[string]float64, len(tr.Corpus))
	for text := range tr.Corpus {
		unitWeights[text] = 1
	}
	counts, _, err := tr.Resegment(unitWeights)
	if err != nil {
		return nil, err
	}
	return rankedFromCounts(counts), nil
}

// CandidatesByFrequency ranks lexicon entries ascending by their weighted
// unigram count under the full corpus (spec.md §4.6 by_frequency).
func (tr *Trainer) CandidatesByFrequency() ([]Candidate, error) {
	counts, _, err := tr.Resegment(tr.Corpus)
	if err != nil {
		return nil, err
	}
	return rankedFromCounts(counts), nil
}

func rankedFromCounts(counts map[string]float64) []Candidate {
	out := make([]Candidate, 0, len(counts))
	for f, c := range counts {
		out = append(out, Candidate{Factor: f, Score: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Factor < out[j].Factor
	})
	return out
}

// CandidatesByRandom draws n distinct factors uniformly at random from
// the current lexicon, using Config.Seed for reproducibility (spec.md
// §4.6 by_random).
func (tr *Trainer) CandidatesByRandom(n int) []Candidate {
	factors := sortedFactors(tr.Lex)
	rng := rand.New(rand.NewSource(tr.Config.Seed))
	rng.Shuffle(len(factors), func(i, j int) { factors[i], factors[j] = factors[j], factors[i] })
	if n > len(factors) {
		n = len(factors)
	}
	out := make([]Candidate, n)
	for i := 0; i < n; i++ {
		out[i] = Candidate{Factor: factors[i]}
	}
	return out
}

// SelectCandidates combines the strategies named in Config.Strategies,
// deduplicating by factor, until NCandidates distinct factors have been
// collected (or the strategies are exhausted).
func (tr *Trainer) SelectCandidates() ([]Candidate, error) {
	seen := map[string]bool{}
	var out []Candidate

	add := func(cands []Candidate) {
		for _, c := range cands {
			if len(out) >= tr.Config.NCandidates {
				return
			}
			if seen[c.Factor] {
				continue
			}
			seen[c.Factor] = true
			out = append(out, c)
		}
	}

	for _, strategy := range tr.Config.Strategies {
		if len(out) >= tr.Config.NCandidates {
			break
		}
		switch strategy {
		case "by_usage":
			cands, err := tr.CandidatesByUsage()
			if err != nil {
				return nil, err
			}
			add(cands)
		case "by_frequency":
			cands, err := tr.CandidatesByFrequency()
			if err != nil {
				return nil, err
			}
			add(cands)
		case "by_random":
			add(tr.CandidatesByRandom(tr.Config.NCandidates - len(out)))
		}
	}
	return out, nil
}
