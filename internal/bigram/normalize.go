package bigram

import (
	"math"

	"github.com/aaltospeech/morfex/internal/em"
)

// groupRows buckets stats by source factor, summing per-row totals.
func groupRows(stats em.BigramCounts) (rows map[string]map[string]float64, rowTotal map[string]float64) {
	rows = map[string]map[string]float64{}
	rowTotal = map[string]float64{}
	for k, c := range stats {
		src, tgt := k[0], k[1]
		if rows[src] == nil {
			rows[src] = map[string]float64{}
		}
		rows[src][tgt] = c
		rowTotal[src] += c
	}
	return rows, rowTotal
}

// normalizeAndFloorRow converts a row of linear probabilities (assumed to
// sum to ~1) into floored log-probabilities, renormalizing once more if
// flooring changed any cell (spec.md §4.7 "Normalization details").
func normalizeAndFloorRow(probs map[string]float64, floorLP float64) map[string]float64 {
	logp := make(map[string]float64, len(probs))
	floored := false
	for tgt, p := range probs {
		if p <= 0 {
			continue
		}
		lp := math.Log(p)
		if lp < floorLP {
			lp = floorLP
			floored = true
		}
		logp[tgt] = lp
	}
	if floored {
		var mass float64
		for _, lp := range logp {
			mass += math.Exp(lp)
		}
		logMass := math.Log(mass)
		for tgt, lp := range logp {
			logp[tgt] = lp - logMass
		}
	}
	return logp
}

// Normalize computes the maximum-likelihood transition table:
// T[src][tgt] = log(stats[src][tgt] / Sum_tgt' stats[src][tgt']), floored
// and renormalized per row. A row whose total mass is zero is omitted —
// equivalent to deleting it (spec.md §4.7 "when a row becomes empty
// after pruning, the row is deleted").
func (tr *Trainer) Normalize(stats em.BigramCounts) Table {
	rows, rowTotal := groupRows(stats)
	out := make(Table)
	for src, row := range rows {
		total := rowTotal[src]
		if total <= 0 {
			continue
		}
		probs := make(map[string]float64, len(row))
		for tgt, c := range row {
			probs[tgt] = c / total
		}
		for tgt, lp := range normalizeAndFloorRow(probs, tr.Config.FloorLP) {
			out[[2]string{src, tgt}] = lp
		}
	}
	return out
}

// continuationProbs computes the Kneser-Ney continuation distribution
// P_continuation(tgt) = (#distinct src with stats[src][tgt] > 0) /
// (#distinct (src,tgt) pairs with positive count) — the standard
// "how many different contexts precede tgt" lower-order estimate used
// when the bigram count itself has been discounted away.
func continuationProbs(stats em.BigramCounts) map[string]float64 {
	distinctContexts := map[string]int{}
	total := 0
	for k, c := range stats {
		if c <= 0 {
			continue
		}
		distinctContexts[k[1]]++
		total++
	}
	out := make(map[string]float64, len(distinctContexts))
	if total == 0 {
		return out
	}
	for tgt, n := range distinctContexts {
		out[tgt] = float64(n) / float64(total)
	}
	return out
}

// NormalizeKN applies absolute-discount Kneser-Ney smoothing with
// discount KNDiscount (spec.md §4.7 step 3 "Smooth"): for each src row,
// mass max(c-D,0)/total is kept per cell, and the discounted mass
// D*|{tgt: c(src,tgt)>0}|/total is redistributed proportionally to the
// continuation distribution before the usual floor/renormalize pass.
func (tr *Trainer) NormalizeKN(stats em.BigramCounts) Table {
	rows, rowTotal := groupRows(stats)
	pcont := continuationProbs(stats)
	d := tr.Config.KNDiscount

	out := make(Table)
	for src, row := range rows {
		total := rowTotal[src]
		if total <= 0 {
			continue
		}
		nonzero := float64(len(row))
		lambda := d * nonzero / total

		probs := make(map[string]float64, len(row)+len(pcont))
		for tgt, c := range row {
			p := math.Max(c-d, 0) / total
			if p > 0 {
				probs[tgt] = p
			}
		}
		for tgt, pc := range pcont {
			probs[tgt] += lambda * pc
		}
		for tgt, lp := range normalizeAndFloorRow(probs, tr.Config.FloorLP) {
			out[[2]string{src, tgt}] = lp
		}
	}
	return out
}
