package distribution

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/goppo/utils/floatutils"
)

// Categorical is a distribution over n discrete actions parameterized
// by n unnormalized logits. Actions are encoded as a single float
// holding the action index.
type Categorical struct {
	n   int
	src rand.Source
}

// NewCategorical returns a new categorical distribution over n actions
func NewCategorical(n int, seed uint64) *Categorical {
	return &Categorical{n: n, src: rand.NewSource(seed)}
}

// Kind implements the Distribution interface
func (c *Categorical) Kind() Kind { return CategoricalKind }

// ParamSize returns the number of logits
func (c *Categorical) ParamSize() int { return c.n }

// ActionSize returns the length of an action vector, which is 1
func (c *Categorical) ActionSize() int { return 1 }

// Sample draws an action index from softmax(logits)
func (c *Categorical) Sample(logits []float64) []float64 {
	c.check(logits)
	probs := Softmax(logits)
	dist := distuv.NewCategorical(probs, c.src)
	return []float64{dist.Rand()}
}

// Mode returns the index of the largest logit
func (c *Categorical) Mode(logits []float64) []float64 {
	c.check(logits)
	_, indices := floatutils.MaxSlice(logits)
	return []float64{float64(indices[0])}
}

// LogProb returns logSoftmax(logits)[action]
func (c *Categorical) LogProb(logits, action []float64) float64 {
	c.check(logits)
	if len(action) != 1 {
		panic(fmt.Sprintf("logprob: categorical action must have length 1, "+
			"have(%d)", len(action)))
	}
	idx := int(action[0])
	if idx < 0 || idx >= c.n {
		panic(fmt.Sprintf("logprob: action %d ∉ [0, %d)", idx, c.n))
	}
	return logits[idx] - floats.LogSumExp(logits)
}

// LogProbs returns the log-probabilities of a batch of actions
func (c *Categorical) LogProbs(logits, actions []float64, batch int) []float64 {
	checkBatch(c, logits, actions, batch)
	out := make([]float64, batch)
	for i := 0; i < batch; i++ {
		out[i] = c.LogProb(logits[i*c.n:(i+1)*c.n], actions[i:i+1])
	}
	return out
}

func (c *Categorical) check(logits []float64) {
	if len(logits) != c.n {
		panic(fmt.Sprintf("categorical: illegal number of logits \n\t"+
			"want(%v)\n\thave(%v)", c.n, len(logits)))
	}
}

// Softmax returns the softmax of logits, computed stably by shifting
// by the log-sum-exp
func Softmax(logits []float64) []float64 {
	lse := floats.LogSumExp(logits)
	probs := make([]float64, len(logits))
	for i, l := range logits {
		probs[i] = math.Exp(l - lse)
	}
	return probs
}

// OneHot returns the one-hot encoding of a batch of action indices
func OneHot(actions []float64, n int) []float64 {
	out := make([]float64, len(actions)*n)
	for i, a := range actions {
		out[i*n+int(a)] = 1
	}
	return out
}
