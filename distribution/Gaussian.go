package distribution

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// logSqrt2Pi is 0.5 log(2π)
var logSqrt2Pi = 0.5 * math.Log(2*math.Pi)

// Gaussian is a diagonal Gaussian distribution parameterized by its
// mean. The log standard deviation is state independent and shared
// with the owner of the slice passed to NewGaussian.
type Gaussian struct {
	logStd []float64
	noise  distuv.Normal
}

// NewGaussian returns a diagonal Gaussian whose log standard deviations
// are read from logStd on every call
func NewGaussian(logStd []float64, seed uint64) *Gaussian {
	return &Gaussian{
		logStd: logStd,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}
}

// Kind implements the Distribution interface
func (g *Gaussian) Kind() Kind { return GaussianKind }

// ParamSize returns the number of action dimensions
func (g *Gaussian) ParamSize() int { return len(g.logStd) }

// ActionSize returns the number of action dimensions
func (g *Gaussian) ActionSize() int { return len(g.logStd) }

// LogStd returns the log standard deviation vector
func (g *Gaussian) LogStd() []float64 { return g.logStd }

// Sample draws μ + exp(logσ) ⊙ ε with ε ~ N(0, I)
func (g *Gaussian) Sample(mean []float64) []float64 {
	g.check(mean)
	action := make([]float64, len(mean))
	for i := range mean {
		action[i] = mean[i] + math.Exp(g.logStd[i])*g.noise.Rand()
	}
	return action
}

// Mode returns the mean
func (g *Gaussian) Mode(mean []float64) []float64 {
	g.check(mean)
	action := make([]float64, len(mean))
	copy(action, mean)
	return action
}

// LogProb returns the log density of action, summed over dimensions:
//
//	Σᵢ -0.5((xᵢ-μᵢ)/σᵢ)² - log σᵢ - 0.5 log 2π
func (g *Gaussian) LogProb(mean, action []float64) float64 {
	g.check(mean)
	g.check(action)

	var logProb float64
	for i := range mean {
		z := (action[i] - mean[i]) / math.Exp(g.logStd[i])
		logProb += -0.5*z*z - g.logStd[i] - logSqrt2Pi
	}
	return logProb
}

// LogProbs returns the log densities of a batch of actions
func (g *Gaussian) LogProbs(means, actions []float64, batch int) []float64 {
	checkBatch(g, means, actions, batch)
	d := len(g.logStd)
	out := make([]float64, batch)
	for i := 0; i < batch; i++ {
		out[i] = g.LogProb(means[i*d:(i+1)*d], actions[i*d:(i+1)*d])
	}
	return out
}

func (g *Gaussian) check(x []float64) {
	if len(x) != len(g.logStd) {
		panic(fmt.Sprintf("gaussian: illegal vector length \n\twant(%v)"+
			"\n\thave(%v)", len(g.logStd), len(x)))
	}
}
