// Package op provides extended Gorgonia graph operations.
//
// Adapted from aunum/G.ld on GitHub
package op

import (
	"math"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Min returns the element-wise min value between the nodes. If values
// are equal the first value is returned.
//
// The comparison masks are not differentiable, so the gradient flows
// only to the selected element.
func Min(a *G.Node, b *G.Node) (retVal *G.Node, err error) {
	aMask, err := G.Lte(a, b, true)
	if err != nil {
		return nil, err
	}
	aVal, err := G.HadamardProd(a, aMask)
	if err != nil {
		return nil, err
	}

	bMask, err := G.Lt(b, a, true)
	if err != nil {
		return nil, err
	}
	bVal, err := G.HadamardProd(b, bMask)
	if err != nil {
		return nil, err
	}
	return G.Add(aVal, bVal)
}

// LogSumExp calculates the log of the summation of exponentials of
// all logits along the given axis.
//
// Use this in place of Gorgonia's LogSumExp, which has the final sum
// and log interchanged, which is incorrect.
func LogSumExp(logits *G.Node, along int) *G.Node {
	max := G.Must(G.Max(logits, along))

	exponent := G.Must(G.BroadcastSub(logits, max, nil, []byte{1}))
	exponent = G.Must(G.Exp(exponent))

	sum := G.Must(G.Sum(exponent, along))
	log := G.Must(G.Log(sum))

	return G.Must(G.Add(max, log))
}

// CategoricalLogProb returns the log-probability of each row of the
// one-hot matrix actions under the categorical distribution with
// unnormalized log-probabilities logits. Both arguments are batch x n
// and the result is a vector of length batch.
func CategoricalLogProb(logits, actions *G.Node) *G.Node {
	selected := G.Must(G.HadamardProd(logits, actions))
	selected = G.Must(G.Sum(selected, 1))

	return G.Must(G.Sub(selected, LogSumExp(logits, 1)))
}

// Expand repeats the 1 x n row vector row batch times, returning a
// batch x n matrix. The expansion is a matrix product with a column of
// ones, so gradients with respect to row are summed over the batch.
func Expand(row *G.Node, batch int) *G.Node {
	if !row.IsMatrix() || row.Shape()[0] != 1 {
		panic("expand: row must be a 1 x n matrix")
	}
	ones := G.NewMatrix(
		row.Graph(),
		tensor.Float64,
		G.WithShape(batch, 1),
		G.WithName(row.Name()+"_ones"),
		G.WithInit(G.Ones()),
	)
	return G.Must(G.Mul(ones, row))
}

// GaussianLogProb calculates the log of the probability density
// function of actions drawn from a diagonal Gaussian distribution with
// mean mean and log standard deviation logStd.
//
// The mean and actions should be batch x n matrices, where each row is
// a sample and each column an action dimension. The logStd should be a
// 1 x n matrix which is shared by all samples in the batch. The
// returned node is a vector of length batch:
//
//	Σⱼ -½((aⱼ - μⱼ) / σⱼ)² - log σⱼ - ½ log 2π
func GaussianLogProb(mean, logStd, actions *G.Node) *G.Node {
	graph := mean.Graph()
	if graph != logStd.Graph() || graph != actions.Graph() {
		panic("gaussianlogprob: all nodes must share the same graph")
	}

	batch := mean.Shape()[0]
	dims := float64(mean.Shape()[1])
	logStdBatch := Expand(logStd, batch)

	negativeHalf := G.NewConstant(-0.5)

	std := G.Must(G.Exp(logStdBatch))
	z := G.Must(G.Sub(actions, mean))
	z = G.Must(G.HadamardDiv(z, std))
	exponent := G.Must(G.Square(z))
	exponent = G.Must(G.HadamardProd(negativeHalf, exponent))

	terms := G.Must(G.Sub(exponent, logStdBatch))
	logProb := G.Must(G.Sum(terms, 1))

	norm := G.NewConstant(0.5 * dims * math.Log(2*math.Pi))
	return G.Must(G.Sub(logProb, norm))
}
