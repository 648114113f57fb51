// Package unigram implements the unigram lexicon trainer (spec.md §4.6):
// one EM iteration over a trie-indexed lexicon and corpus, candidate
// selection/ranking for pruning, and a commit loop that shrinks the
// lexicon toward a target size.
package unigram

import (
	"log/slog"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/aaltospeech/morfex/internal/em"
	"github.com/aaltospeech/morfex/internal/trie"
)

// Config holds the unigram trainer's tunable constants (spec.md §4.6/§6).
type Config struct {
	OneCharMinLP     float64 // floor for single-codepoint factors, default -25
	FloorLP          float64 // minimum log-prob after normalization
	TargetVocabSize  int
	RemovalsPerIter  int
	NCandidates      int
	MinRemovalLength int // in codepoints when UTF8, else bytes
	UTF8             bool
	ForwardBackward  bool // resegment with forward/backward instead of Viterbi
	Seed             int64
	Strategies       []string // subset of "by_usage", "by_random", "by_frequency"
}

// DefaultOneCharMinLP is spec.md §4.6's default floor for single-codepoint
// factors.
const DefaultOneCharMinLP = -25.0

// Trainer runs unigram EM and pruning over a mutable lexicon trie.
type Trainer struct {
	Lex      *trie.Trie
	Corpus   map[string]float64 // text -> weight
	Special  map[string]bool    // texts that bypass segmentation (e.g. "<s>", "</s>")
	Stoplist map[string]bool
	Config   Config
	Logger   *slog.Logger
}

// NewTrainer returns a Trainer over lex and corpus. special and stoplist
// may be nil.
func NewTrainer(lex *trie.Trie, corpus map[string]float64, special, stoplist map[string]bool, cfg Config) *Trainer {
	if special == nil {
		special = map[string]bool{}
	}
	if stoplist == nil {
		stoplist = map[string]bool{}
	}
	return &Trainer{Lex: lex, Corpus: corpus, Special: special, Stoplist: stoplist, Config: cfg, Logger: slog.Default()}
}

// Resegment re-segments every corpus text under lex, accumulating
// weighted posterior factor counts and the total corpus log-likelihood.
// Special texts bypass segmentation and count toward their own factor
// directly (spec.md §4.6 step 1).
func (tr *Trainer) Resegment(weights map[string]float64) (counts map[string]float64, ll float64, err error) {
	counts = make(map[string]float64)
	for text, weight := range weights {
		if weight == 0 {
			continue
		}
		if tr.Special[text] {
			counts[text] += weight
			continue
		}
		if tr.Config.ForwardBackward {
			textLL, ferr := em.UnigramForwardBackward(text, tr.Lex, tr.Config.UTF8, weight, counts)
			if ferr != nil {
				return nil, 0, ferr
			}
			ll += weight * textLL
			continue
		}
		factors, cost, verr := em.UnigramViterbi(text, tr.Lex, tr.Config.UTF8)
		if verr != nil {
			return nil, 0, verr
		}
		for _, f := range factors {
			counts[f] += weight
		}
		ll += weight * cost
	}
	return counts, ll, nil
}

// Normalize converts raw counts into floored, renormalized log-probs
// (spec.md §4.6 step 2): L[f] = log C[f] - log Sum C[g], floored to
// FloorLP, renormalized once more if any entry was floored.
func (tr *Trainer) Normalize(counts map[string]float64) map[string]float64 {
	var total float64
	for _, c := range counts {
		total += c
	}
	logTotal := math.Log(total)

	logprobs := make(map[string]float64, len(counts))
	floored := false
	for f, c := range counts {
		lp := math.Log(c) - logTotal
		if lp < tr.Config.FloorLP {
			lp = tr.Config.FloorLP
			floored = true
		}
		logprobs[f] = lp
	}
	if floored {
		var mass float64
		for _, lp := range logprobs {
			mass += math.Exp(lp)
		}
		logMass := math.Log(mass)
		for f, lp := range logprobs {
			logprobs[f] = lp - logMass
		}
	}
	return logprobs
}

// GuaranteeShortFactors ensures every codepoint appearing in the corpus
// exists in the lexicon with at least OneCharMinLP (spec.md §4.6 step 3).
func (tr *Trainer) GuaranteeShortFactors(logprobs map[string]float64) {
	seen := map[string]bool{}
	for text := range tr.Corpus {
		if tr.Special[text] {
			continue
		}
		for _, r := range text {
			ch := string(r)
			if seen[ch] {
				continue
			}
			seen[ch] = true
			if cur, ok := logprobs[ch]; !ok || cur < tr.Config.OneCharMinLP {
				logprobs[ch] = tr.Config.OneCharMinLP
			}
		}
	}
}

// ApplyScores installs logprobs into the trie: existing factors are
// re-scored, new factors (e.g. guaranteed single codepoints) are added.
func (tr *Trainer) ApplyScores(logprobs map[string]float64) {
	for f, lp := range logprobs {
		tr.Lex.Add(f, lp)
	}
	for f := range snapshot(tr.Lex) {
		if _, ok := logprobs[f]; !ok {
			tr.Lex.Remove(f)
		}
	}
	tr.Lex.ReorderForBounds()
}

func snapshot(t *trie.Trie) map[string]float64 {
	out := make(map[string]float64)
	t.Each(func(f string, s float64) { out[f] = s })
	return out
}

// RunIteration performs one full unigram EM iteration: re-segment,
// normalize, guarantee short factors, and install the result back into
// the lexicon trie. It returns the corpus log-likelihood under the
// lexicon as it stood before this iteration's update.
func (tr *Trainer) RunIteration() (ll float64, err error) {
	counts, ll, err := tr.Resegment(tr.Corpus)
	if err != nil {
		return 0, err
	}
	logprobs := tr.Normalize(counts)
	tr.GuaranteeShortFactors(logprobs)
	tr.ApplyScores(logprobs)
	return ll, nil
}

// runeOrByteLen measures a factor's length the way MinRemovalLength is
// specified: codepoints under UTF8 mode, bytes otherwise.
func (tr *Trainer) runeOrByteLen(f string) int {
	if tr.Config.UTF8 {
		return utf8.RuneCountInString(f)
	}
	return len(f)
}

// sortedFactors returns the trie's current factors in a stable order,
// for deterministic iteration in candidate selection.
func sortedFactors(t *trie.Trie) []string {
	var out []string
	t.Each(func(f string, _ float64) { out = append(out, f) })
	sort.Strings(out)
	return out
}
