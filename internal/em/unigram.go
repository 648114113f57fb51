package em

import (
	"math"

	"github.com/aaltospeech/morfex/internal/logdomain"
	"github.com/aaltospeech/morfex/internal/trie"
)

// unigramArc is one candidate factor spanning two character-boundary
// indices into a text (not byte offsets — boundary-aligned so a trie
// match that lands mid-codepoint is simply absent from the arc list).
type unigramArc struct {
	src, tgt int
	cost     float64
	factor   string
}

func unigramArcs(text string, lex *trie.Trie, utf8 bool) (arcs []unigramArc, boundaries []int) {
	positions := logdomain.CharPositions(text, utf8)
	boundaries = append(append([]int{}, positions...), len(text))
	posIdx := make(map[int]int, len(boundaries))
	for idx, p := range boundaries {
		posIdx[p] = idx
	}
	for k := 0; k < len(boundaries)-1; k++ {
		i := boundaries[k]
		for _, m := range lex.MatchesAt(text, i, 0) {
			kj, ok := posIdx[i+m.Len]
			if !ok {
				continue
			}
			arcs = append(arcs, unigramArc{src: k, tgt: kj, cost: m.Score, factor: m.Factor})
		}
	}
	return arcs, boundaries
}

func groupByTarget(arcs []unigramArc, n int) [][]int {
	g := make([][]int, n)
	for ai, a := range arcs {
		g[a.tgt] = append(g[a.tgt], ai)
	}
	return g
}

func groupBySource(arcs []unigramArc, n int) [][]int {
	g := make([][]int, n)
	for ai, a := range arcs {
		g[a.src] = append(g[a.src], ai)
	}
	return g
}

// UnigramViterbi finds the highest-scoring segmentation of text under
// lex (spec.md §4.5 "Unigram Viterbi over trie-indexed text").
func UnigramViterbi(text string, lex *trie.Trie, utf8 bool) (factors []string, cost float64, err error) {
	arcs, boundaries := unigramArcs(text, lex, utf8)
	n := len(boundaries)
	if n == 1 {
		return nil, 0, nil // empty text segments to nothing
	}
	dp := make([]float64, n)
	back := make([]int, n)
	for i := range dp {
		dp[i] = logdomain.NegInf
		back[i] = -1
	}
	dp[0] = 0
	byTgt := groupByTarget(arcs, n)
	for k := 1; k < n; k++ {
		for _, ai := range byTgt[k] {
			a := arcs[ai]
			if dp[a.src] == logdomain.NegInf {
				continue
			}
			c := dp[a.src] + a.cost
			if c > dp[k] {
				dp[k] = c
				back[k] = ai
			}
		}
	}
	if dp[n-1] == logdomain.NegInf {
		return nil, logdomain.NegInf, ErrUnsegmentable
	}
	k := n - 1
	for k != 0 {
		ai := back[k]
		factors = append(factors, arcs[ai].factor)
		k = arcs[ai].src
	}
	for i, j := 0, len(factors)-1; i < j; i, j = i+1, j-1 {
		factors[i], factors[j] = factors[j], factors[i]
	}
	return factors, dp[n-1], nil
}

// UnigramForwardBackward computes posterior factor counts and the total
// log-likelihood of text under lex (spec.md §4.5 "Unigram forward/
// backward over trie-indexed text"). Counts are scaled by weight before
// being added to stats, so callers can accumulate across a weighted
// corpus by calling this once per text with that text's weight.
func UnigramForwardBackward(text string, lex *trie.Trie, utf8 bool, weight float64, stats map[string]float64) (ll float64, err error) {
	arcs, boundaries := unigramArcs(text, lex, utf8)
	n := len(boundaries)
	if n == 1 {
		return 0, nil
	}
	byTgt := groupByTarget(arcs, n)
	bySrc := groupBySource(arcs, n)

	fw := make([]float64, n)
	bw := make([]float64, n)
	for i := range fw {
		fw[i] = logdomain.NegInf
		bw[i] = logdomain.NegInf
	}
	fw[0] = 0
	for k := 1; k < n; k++ {
		for _, ai := range byTgt[k] {
			a := arcs[ai]
			if fw[a.src] == logdomain.NegInf {
				continue
			}
			fw[k] = logdomain.Add(fw[k], fw[a.src]+a.cost)
		}
	}
	if fw[n-1] == logdomain.NegInf {
		return logdomain.NegInf, ErrUnsegmentable
	}
	bw[n-1] = 0
	for k := n - 2; k >= 0; k-- {
		for _, ai := range bySrc[k] {
			a := arcs[ai]
			if bw[a.tgt] == logdomain.NegInf {
				continue
			}
			bw[k] = logdomain.Add(bw[k], a.cost+bw[a.tgt])
		}
	}

	total := fw[n-1]
	for _, a := range arcs {
		if fw[a.src] == logdomain.NegInf || bw[a.tgt] == logdomain.NegInf {
			continue
		}
		lp := fw[a.src] + a.cost + bw[a.tgt] - total
		stats[a.factor] += weight * math.Exp(lp)
	}
	return total, nil
}
