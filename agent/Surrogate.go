package agent

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SurrogateLoss evaluates the clipped surrogate loss directly from
// log-probabilities. It mirrors what approximators compute inside their
// own numeric backend and is used for diagnostics.
func SurrogateLoss(newLogProbs, oldLogProbs, advantages []float64,
	clipRatio float64) float64 {
	clipped := ClippedAdvantages(advantages, clipRatio)
	surr := make([]float64, len(advantages))
	for i := range advantages {
		ratio := math.Exp(newLogProbs[i] - oldLogProbs[i])
		surr[i] = math.Min(ratio*advantages[i], clipped[i])
	}
	return -stat.Mean(surr, nil)
}

// ApproxKL returns the sample estimate mean(old - new) of the KL
// divergence between the policies that produced the two sets of
// log-probabilities
func ApproxKL(oldLogProbs, newLogProbs []float64) float64 {
	diff := make([]float64, len(oldLogProbs))
	for i := range oldLogProbs {
		diff[i] = oldLogProbs[i] - newLogProbs[i]
	}
	return stat.Mean(diff, nil)
}
