// Package logdomain implements stable arithmetic for natural-log
// probabilities and the codepoint-boundary helper shared by the trie and
// lattice packages.
package logdomain

import (
	"errors"
	"math"
)

// NegInf is the log-probability of an event that never happens.
var NegInf = math.Inf(-1)

// SmallLP is assigned to an absent bigram during dynamic programming; it
// marks "rare", not "illegal" (spec glossary, spec.md §7).
const SmallLP = -100.0

// FloorLP is the minimum log-probability tolerated after normalization.
// Anything below it is clamped and its row renormalized.
const FloorLP = -87.0

// ErrNumericUnderflow is returned by Sub when b >= a, i.e. when the
// subtraction would require a negative probability mass.
var ErrNumericUnderflow = errors.New("logdomain: numeric underflow")

// Add computes log(exp(a) + exp(b)) without leaving the log domain.
// Add(-Inf, b) == b and Add(a, -Inf) == a.
func Add(a, b float64) float64 {
	if a == NegInf {
		return b
	}
	if b == NegInf {
		return a
	}
	if b > a {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// Sub computes log(exp(a) - exp(b)) for a > b. It fails with
// ErrNumericUnderflow when b >= a, since the result would be undefined in
// the log domain.
func Sub(a, b float64) (float64, error) {
	if b >= a {
		return NegInf, ErrNumericUnderflow
	}
	return a + math.Log1p(-math.Exp(b-a)), nil
}

// Floor clamps lp to FloorLP when it falls below it, reporting whether
// clamping occurred.
func Floor(lp float64) (float64, bool) {
	if lp < FloorLP {
		return FloorLP, true
	}
	return lp, false
}

// CharPositions returns the byte offsets of the start of each character in
// text. When utf8 is true, a character is a UTF-8 codepoint; otherwise it
// is a single byte. The result is always finite and safe to range over
// repeatedly.
func CharPositions(text string, utf8 bool) []int {
	if !utf8 {
		positions := make([]int, len(text))
		for i := range positions {
			positions[i] = i
		}
		return positions
	}
	positions := make([]int, 0, len(text))
	for i := range text {
		positions = append(positions, i)
	}
	return positions
}

// NormalizeLogProbs rescales the given log-probabilities in place so that
// they sum to 1 in probability space, returning the original log-sum
// (total mass before normalization). Entries equal to NegInf are left
// untouched.
func NormalizeLogProbs(lps []float64) float64 {
	total := NegInf
	for _, lp := range lps {
		total = Add(total, lp)
	}
	if total == NegInf {
		return total
	}
	for i, lp := range lps {
		if lp == NegInf {
			continue
		}
		lps[i] = lp - total
	}
	return total
}
