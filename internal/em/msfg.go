package em

import (
	"math"

	"github.com/aaltospeech/morfex/internal/lattice"
	"github.com/aaltospeech/morfex/internal/logdomain"
)

// MSFGForward runs a single shared forward pass over the whole MSFG in
// topological order (spec.md §4.5 "MSFG full forward/backward": "single
// forward over all nodes"). The returned order is reused by every
// subsequent per-text backward pass so it is computed only once.
func MSFGForward(m *lattice.MultiStringFactorGraph, score ScoreFn) (fw []float64, order []int, err error) {
	order, err = lattice.TopoOrder(m)
	if err != nil {
		return nil, nil, err
	}
	fw = make([]float64, len(m.Nodes))
	for i := range fw {
		fw[i] = logdomain.NegInf
	}
	fw[0] = 0
	for _, u := range order {
		if fw[u] == logdomain.NegInf {
			continue
		}
		for _, ai := range m.Nodes[u].Outgoing {
			arc := m.Arcs[ai]
			v := arc.Target
			fw[v] = logdomain.Add(fw[v], fw[u]+score(m.Nodes[u].Factor, m.Nodes[v].Factor))
		}
	}
	return fw, order, nil
}

// MSFGBackwardForText runs one backward sweep seeded at text's end node,
// treating that node as absorbing (its own outgoing arcs, which may
// belong to other texts sharing the node via structural sharing, do not
// leak into this text's mass). order must come from the MSFGForward call
// for the same graph.
// The text's own log-likelihood is fw[end(text)] from the shared forward
// pass, not anything read off bw — bw[0] is the probability of
// completing the *whole* graph from the start, not this one text.
func MSFGBackwardForText(m *lattice.MultiStringFactorGraph, order []int, score ScoreFn, text string) (bw []float64, err error) {
	end, ok := m.StringEndNodes[text]
	if !ok {
		return nil, ErrUnsegmentable
	}
	bw = make([]float64, len(m.Nodes))
	for i := range bw {
		bw[i] = logdomain.NegInf
	}
	bw[end] = 0
	for i := len(order) - 1; i >= 0; i-- {
		u := order[i]
		if u == end {
			continue
		}
		for _, ai := range m.Nodes[u].Outgoing {
			arc := m.Arcs[ai]
			v := arc.Target
			if bw[v] == logdomain.NegInf {
				continue
			}
			bw[u] = logdomain.Add(bw[u], score(m.Nodes[u].Factor, m.Nodes[v].Factor)+bw[v])
		}
	}
	return bw, nil
}

// MSFGAccumulateText adds the posterior bigram counts for one text's
// backward sweep into stats, scaled by weight, using the text's own
// log-likelihood ll (read from the shared forward pass as fw[end(text)]).
func MSFGAccumulateText(m *lattice.MultiStringFactorGraph, fw, bw []float64, score ScoreFn, ll, weight float64, stats BigramCounts) {
	if ll == logdomain.NegInf || stats == nil {
		return
	}
	for u := range m.Nodes {
		if fw[u] == logdomain.NegInf {
			continue
		}
		for _, ai := range m.Nodes[u].Outgoing {
			arc := m.Arcs[ai]
			v := arc.Target
			if bw[v] == logdomain.NegInf {
				continue
			}
			lp := fw[u] + score(m.Nodes[u].Factor, m.Nodes[v].Factor) + bw[v] - ll
			stats[[2]string{m.Nodes[u].Factor, m.Nodes[v].Factor}] += weight * math.Exp(lp)
		}
	}
}

// MSFGForwardBackwardFull runs the complete corpus pass (spec.md §4.5):
// one shared forward sweep, then one backward sweep per registered text
// in EndNodeOrder, accumulating weighted bigram posteriors into stats and
// returning the total corpus log-likelihood Σ weight(T)·fw[end(T)].
func MSFGForwardBackwardFull(m *lattice.MultiStringFactorGraph, score ScoreFn, weights map[string]float64, stats BigramCounts) (totalLL float64, err error) {
	fw, order, err := MSFGForward(m, score)
	if err != nil {
		return logdomain.NegInf, err
	}
	for _, text := range m.EndNodeOrder {
		end := m.StringEndNodes[text]
		ll := fw[end]
		w := weights[text]
		if ll == logdomain.NegInf {
			continue
		}
		totalLL += w * ll
		if stats != nil {
			bw, err := MSFGBackwardForText(m, order, score, text)
			if err != nil {
				continue
			}
			MSFGAccumulateText(m, fw, bw, score, ll, w, stats)
		}
	}
	return totalLL, nil
}

// MSFGViterbi mirrors MSFGForward with max-plus arithmetic and a
// backpointer vector, yielding the best path through the whole shared
// lattice (spec.md §4.5 "MSFG Viterbi"); per-text best paths read off the
// same backpointer vector starting at string_end_nodes[T].
func MSFGViterbi(m *lattice.MultiStringFactorGraph, score ScoreFn) (dp []float64, back []int, order []int, err error) {
	order, err = lattice.TopoOrder(m)
	if err != nil {
		return nil, nil, nil, err
	}
	dp = make([]float64, len(m.Nodes))
	back = make([]int, len(m.Nodes))
	for i := range dp {
		dp[i] = logdomain.NegInf
		back[i] = -1
	}
	dp[0] = 0
	for _, u := range order {
		if dp[u] == logdomain.NegInf {
			continue
		}
		for _, ai := range m.Nodes[u].Outgoing {
			arc := m.Arcs[ai]
			v := arc.Target
			c := dp[u] + score(m.Nodes[u].Factor, m.Nodes[v].Factor)
			if c > dp[v] {
				dp[v] = c
				back[v] = u
			}
		}
	}
	return dp, back, order, nil
}

// MSFGBestPath reads the best segmentation and bigram counts for text off
// a backpointer vector produced by MSFGViterbi, weighting the counts by
// the text's corpus frequency.
func MSFGBestPath(m *lattice.MultiStringFactorGraph, dp []float64, back []int, text string, corpusWeight float64, stats BigramCounts) (path []string, cost float64, err error) {
	end, ok := m.StringEndNodes[text]
	if !ok || dp[end] == logdomain.NegInf {
		return nil, logdomain.NegInf, ErrUnsegmentable
	}
	cur := end
	for cur != 0 {
		p := back[cur]
		if p < 0 {
			return nil, logdomain.NegInf, ErrUnsegmentable
		}
		if stats != nil {
			stats[[2]string{m.Nodes[p].Factor, m.Nodes[cur].Factor}] += corpusWeight
		}
		if !m.Nodes[cur].IsSentinel {
			path = append(path, m.Nodes[cur].Factor)
		}
		cur = p
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dp[end], nil
}
