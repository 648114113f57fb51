// Package em implements the dynamic-programming algorithms from spec.md
// §4.5: Viterbi and forward-backward, over both trie-indexed raw text
// (unigram model) and a prebuilt factor graph or multi-string factor
// graph (bigram model). Every routine is deterministic given its input
// ordering; none depends on map/hash iteration order for anything that
// affects a returned score or path.
package em

import "errors"

// ErrUnsegmentable is returned when no legal segmentation reaches the end
// of the input under the current lexicon or lattice.
var ErrUnsegmentable = errors.New("em: no legal segmentation")

// ScoreFn looks up the bigram log-probability of transitioning from a
// source factor to a target factor, already resolved to a concrete value
// (callers fold in the SMALL_LP fallback or table-miss handling before
// handing this to the DP routines, so the hot loop never branches on it).
type ScoreFn func(srcFactor, tgtFactor string) float64
