package em

import (
	"math"
	"sync"

	"github.com/aaltospeech/morfex/internal/lattice"
	"github.com/aaltospeech/morfex/internal/logdomain"
)

// LogBigramStats accumulates (source factor, target factor) posterior
// mass in the log domain rather than BigramCounts' already-exponentiated
// counts, so that concurrent partial sums can be combined with
// logdomain.Add before a single final exponentiation — the "summing
// log-domain posteriors via pairwise log-sum-exp" requirement of spec.md
// §5, which keeps the merged result independent of how the corpus was
// chunked across workers.
type LogBigramStats map[[2]string]float64

func (s LogBigramStats) add(src, tgt string, lp float64) {
	if lp == logdomain.NegInf {
		return
	}
	key := [2]string{src, tgt}
	s[key] = logdomain.Add(s[key], lp)
}

func (s LogBigramStats) merge(other LogBigramStats) {
	for k, lp := range other {
		s[k] = logdomain.Add(s[k], lp)
	}
}

// ToCounts exponentiates every accumulated log-mass into the linear
// counts the bigram trainer (C7) consumes.
func (s LogBigramStats) ToCounts() BigramCounts {
	out := make(BigramCounts, len(s))
	for k, lp := range s {
		out[k] = math.Exp(lp)
	}
	return out
}

func accumulateTextLog(m *lattice.MultiStringFactorGraph, fw, bw []float64, score ScoreFn, ll, logWeight float64, out LogBigramStats) {
	if ll == logdomain.NegInf {
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
			lp := fw[u] + score(m.Nodes[u].Factor, m.Nodes[v].Factor) + bw[v] - ll + logWeight
			out.add(m.Nodes[u].Factor, m.Nodes[v].Factor, lp)
		}
	}
}

// chunk splits items into at most n contiguous, order-preserving pieces.
func chunk(items []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}
	if n == 0 {
		return nil
	}
	chunks := make([][]string, n)
	base := len(items) / n
	rem := len(items) % n
	pos := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		chunks[i] = items[pos : pos+size]
		pos += size
	}
	return chunks
}

// mergeTree combines parts pairwise in a fixed index-based order,
// independent of goroutine completion order, per spec.md §5's canonical
// reduction requirement.
func mergeTree(parts []LogBigramStats) LogBigramStats {
	if len(parts) == 0 {
		return make(LogBigramStats)
	}
	for len(parts) > 1 {
		next := make([]LogBigramStats, 0, (len(parts)+1)/2)
		for i := 0; i < len(parts); i += 2 {
			if i+1 < len(parts) {
				parts[i].merge(parts[i+1])
			}
			next = append(next, parts[i])
		}
		parts = next
	}
	return parts[0]
}

// MSFGForwardBackwardParallel runs the full-corpus forward-backward pass
// (spec.md §4.5/§5): one shared forward sweep, then the per-text backward
// sweeps fanned out across up to numWorkers goroutines. Each worker owns
// a private LogBigramStats accumulator for its contiguous chunk of
// m.EndNodeOrder (teacher's ParseList/InflectList chunked-worker-pool
// idiom, adapted from per-item byte-slice work to per-text lattice
// sweeps); results are merged back in chunk-index order regardless of
// which worker finishes first, so the returned stats and totalLL do not
// depend on numWorkers.
func MSFGForwardBackwardParallel(m *lattice.MultiStringFactorGraph, score ScoreFn, weights map[string]float64, numWorkers int) (totalLL float64, stats BigramCounts, err error) {
	fw, order, err := MSFGForward(m, score)
	if err != nil {
		return logdomain.NegInf, nil, err
	}

	chunks := chunk(m.EndNodeOrder, numWorkers)
	partials := make([]LogBigramStats, len(chunks))
	lls := make([]float64, len(chunks))

	var wg sync.WaitGroup
	for ci, texts := range chunks {
		wg.Add(1)
		go func(ci int, texts []string) {
			defer wg.Done()
			local := make(LogBigramStats)
			var localLL float64
			for _, text := range texts {
				end, ok := m.StringEndNodes[text]
				if !ok {
					continue
				}
				ll := fw[end]
				if ll == logdomain.NegInf {
					continue
				}
				w := weights[text]
				localLL += w * ll
				bw, err := MSFGBackwardForText(m, order, score, text)
				if err != nil {
					continue
				}
				accumulateTextLog(m, fw, bw, score, ll, math.Log(w), local)
			}
			partials[ci] = local
			lls[ci] = localLL
		}(ci, texts)
	}
	wg.Wait()

	for _, ll := range lls {
		totalLL += ll
	}
	return totalLL, mergeTree(partials).ToCounts(), nil
}
