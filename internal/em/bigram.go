package em

import (
	"math"

	"github.com/aaltospeech/morfex/internal/lattice"
	"github.com/aaltospeech/morfex/internal/logdomain"
)

// FallbackScore wraps a bigram table lookup, substituting
// logdomain.SmallLP for any missing cell — the "rare, not illegal"
// fallback spec.md §4.5 requires for Bigram Viterbi/forward-backward
// over a FactorGraph (distinct from MSFG.AssignScores, which drops
// missing-cell arcs outright rather than flooring them).
func FallbackScore(table lattice.BigramScore) ScoreFn {
	return func(src, tgt string) float64 {
		if v, ok := table(src, tgt); ok {
			return v
		}
		return logdomain.SmallLP
	}
}

// BigramCounts accumulates transition counts keyed by (source factor,
// target factor).
type BigramCounts map[[2]string]float64

// BigramViterbi finds the best-scoring path through fg under score,
// returning the path's factors (sentinels excluded), its cost, and the
// bigram transition counts along it (spec.md §4.5 "Bigram Viterbi over
// FG"). Nodes are visited in their existing (topological, insertion)
// order, so ties resolve to the earliest-created path as required.
func BigramViterbi(fg *lattice.FactorGraph, score ScoreFn) (path []string, cost float64, counts BigramCounts, err error) {
	n := len(fg.Nodes)
	if n == 0 {
		return nil, logdomain.NegInf, nil, ErrUnsegmentable
	}
	dp := make([]float64, n)
	back := make([]int, n)
	for i := range dp {
		dp[i] = logdomain.NegInf
		back[i] = -1
	}
	dp[0] = 0
	for u := 0; u < n; u++ {
		if dp[u] == logdomain.NegInf {
			continue
		}
		for _, ai := range fg.Nodes[u].Outgoing {
			arc := fg.Arcs[ai]
			v := arc.Target
			c := dp[u] + score(fg.Nodes[u].Factor, fg.Nodes[v].Factor)
			if c > dp[v] {
				dp[v] = c
				back[v] = u
			}
		}
	}
	last := n - 1
	if dp[last] == logdomain.NegInf {
		return nil, logdomain.NegInf, nil, ErrUnsegmentable
	}
	counts = make(BigramCounts)
	cur := last
	for cur != 0 {
		p := back[cur]
		counts[[2]string{fg.Nodes[p].Factor, fg.Nodes[cur].Factor}]++
		if !fg.Nodes[cur].IsSentinel {
			path = append(path, fg.Nodes[cur].Factor)
		}
		cur = p
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dp[last], counts, nil
}

// BigramForwardBackward runs the forward-backward recursion over fg
// under score (spec.md §4.5 "Bigram forward/backward over FG"). When
// blocked is non-empty, any node carrying that factor is excluded from
// both passes — the "what if this factor did not exist" probe used by
// the bigram trainer's candidate ranking (spec.md §4.7) without
// rebuilding the lattice. weight scales every posterior added to stats,
// so repeated calls across a corpus can share one stats accumulator.
// charPosteriors is allocated fresh on each call (nil for an empty
// text): indexed by byte offset into fg.Text, it holds the unweighted
// log-sum of bw over every node ending at that offset — a
// boundary-confidence signal for external tools.
func BigramForwardBackward(fg *lattice.FactorGraph, score ScoreFn, blocked string, weight float64, stats BigramCounts) (ll float64, charPosteriors []float64, err error) {
	n := len(fg.Nodes)
	if n == 0 {
		return logdomain.NegInf, nil, ErrUnsegmentable
	}
	fw := make([]float64, n)
	bw := make([]float64, n)
	for i := range fw {
		fw[i] = logdomain.NegInf
		bw[i] = logdomain.NegInf
	}

	blockedAt := make([]bool, n)
	if blocked != "" {
		for i, node := range fg.Nodes {
			blockedAt[i] = node.Factor == blocked
		}
	}

	fw[0] = 0
	for u := 0; u < n; u++ {
		if blockedAt[u] || fw[u] == logdomain.NegInf {
			continue
		}
		for _, ai := range fg.Nodes[u].Outgoing {
			arc := fg.Arcs[ai]
			v := arc.Target
			if blockedAt[v] {
				continue
			}
			fw[v] = logdomain.Add(fw[v], fw[u]+score(fg.Nodes[u].Factor, fg.Nodes[v].Factor))
		}
	}
	last := n - 1
	if fw[last] == logdomain.NegInf {
		return logdomain.NegInf, nil, ErrUnsegmentable
	}

	bw[last] = 0
	for u := n - 2; u >= 0; u-- {
		if blockedAt[u] {
			continue
		}
		for _, ai := range fg.Nodes[u].Outgoing {
			arc := fg.Arcs[ai]
			v := arc.Target
			if blockedAt[v] || bw[v] == logdomain.NegInf {
				continue
			}
			bw[u] = logdomain.Add(bw[u], score(fg.Nodes[u].Factor, fg.Nodes[v].Factor)+bw[v])
		}
	}

	total := fw[last]
	if len(fg.Text) > 0 {
		charPosteriors = make([]float64, len(fg.Text)+1)
		for i := range charPosteriors {
			charPosteriors[i] = logdomain.NegInf
		}
	}
	for u := 0; u < n; u++ {
		if blockedAt[u] || fw[u] == logdomain.NegInf {
			continue
		}
		for _, ai := range fg.Nodes[u].Outgoing {
			arc := fg.Arcs[ai]
			v := arc.Target
			if blockedAt[v] || bw[v] == logdomain.NegInf {
				continue
			}
			lp := fw[u] + score(fg.Nodes[u].Factor, fg.Nodes[v].Factor) + bw[v] - total
			if stats != nil {
				stats[[2]string{fg.Nodes[u].Factor, fg.Nodes[v].Factor}] += weight * math.Exp(lp)
			}
		}
		if charPosteriors != nil {
			endPos := fg.Nodes[u].StartPos + fg.Nodes[u].Len
			charPosteriors[endPos] = logdomain.Add(charPosteriors[endPos], bw[u])
		}
	}
	return total, charPosteriors, nil
}
