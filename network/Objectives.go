package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/distribution"
	"github.com/samuelfneumann/goppo/utils/op"
)

type objectiveType int

const (
	surrogate objectiveType = iota
	mse
)

type lossKey struct {
	objective    objectiveType
	distribution distribution.Kind
	batch        int
	extra        *agent.Parameter
}

// lossGraph is the graph of a scalar loss of an MLP for some objective
// and batch size. Gradients are taken with respect to learnables.
type lossGraph struct {
	vm         G.VM
	input      *G.Node
	learnables G.Nodes
	extra      *agent.Parameter
	lossVal    G.Value

	// Surrogate inputs
	actions    *G.Node
	oldLogProb *G.Node
	advantages *G.Node
	clipped    *G.Node

	// Mean squared error inputs
	targets *G.Node
}

// lossFor returns the loss graph for obj along with the data to bind to
// each of its input nodes
func (m *MLP) lossFor(obj agent.Objective) (*lossGraph, map[*G.Node][]float64,
	error) {
	switch o := obj.(type) {
	case *agent.ClippedSurrogate:
		actionDims := 1
		if o.Distribution == distribution.GaussianKind {
			actionDims = m.outputs
		}
		if err := o.Validate(m.features, actionDims); err != nil {
			return nil, nil, err
		}

		actions := o.Actions
		switch o.Distribution {
		case distribution.CategoricalKind:
			for i, a := range o.Actions {
				if a < 0 || int(a) >= m.outputs || a != float64(int(a)) {
					return nil, nil, fmt.Errorf("action %d = %v is not one "+
						"of %d categories", i, a, m.outputs)
				}
			}
			actions = distribution.OneHot(o.Actions, m.outputs)

		case distribution.GaussianKind:
			if o.LogStd.Len() != m.outputs {
				return nil, nil, fmt.Errorf("log std has %d values, network "+
					"has %d outputs", o.LogStd.Len(), m.outputs)
			}

		default:
			return nil, nil, fmt.Errorf("%w: %v",
				distribution.ErrUnknownActionSpace, o.Distribution)
		}

		key := lossKey{surrogate, o.Distribution, o.Batch, o.LogStd}
		l, ok := m.losses[key]
		if !ok {
			var err error
			if l, err = m.surrogateGraph(o.Distribution, o.Batch,
				o.LogStd); err != nil {
				return nil, nil, err
			}
			m.losses[key] = l
		}

		return l, map[*G.Node][]float64{
			l.input:      o.Observations,
			l.actions:    actions,
			l.oldLogProb: o.OldLogProbs,
			l.advantages: o.Advantages,
			l.clipped:    agent.ClippedAdvantages(o.Advantages, o.ClipRatio),
		}, nil

	case *agent.MeanSquaredError:
		if err := o.Validate(m.features, m.outputs); err != nil {
			return nil, nil, err
		}

		key := lossKey{objective: mse, batch: o.Batch}
		l, ok := m.losses[key]
		if !ok {
			var err error
			if l, err = m.mseGraph(o.Batch); err != nil {
				return nil, nil, err
			}
			m.losses[key] = l
		}

		return l, map[*G.Node][]float64{
			l.input:   o.Observations,
			l.targets: o.Targets,
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported objective %T", obj)
	}
}

// surrogateGraph builds the clipped surrogate loss
//
//	-mean(min(exp(logπ(a|s) - logπ_old(a|s)) A, clip(A)))
//
// where clip(A) is computed outside the graph since it does not depend
// on any learnable.
func (m *MLP) surrogateGraph(kind distribution.Kind, batch int,
	logStd *agent.Parameter) (*lossGraph, error) {
	g := G.NewGraph()
	l := &lossGraph{extra: logStd}

	l.input = newInput(g, "input", batch, m.features)
	pred, learnables, err := m.fwd(l.input)
	if err != nil {
		return nil, err
	}

	l.actions = newInput(g, "actions", batch, m.outputs)

	var logProb *G.Node
	switch kind {
	case distribution.CategoricalKind:
		logProb = op.CategoricalLogProb(pred, l.actions)

	case distribution.GaussianKind:
		logStdNode := m.extraParam(logStd).node(g)
		learnables = append(learnables, logStdNode)
		logProb = op.GaussianLogProb(pred, logStdNode, l.actions)
	}

	l.oldLogProb = newInputVec(g, "oldLogProb", batch)
	l.advantages = newInputVec(g, "advantages", batch)
	l.clipped = newInputVec(g, "clippedAdvantages", batch)

	ratio := G.Must(G.Sub(logProb, l.oldLogProb))
	ratio = G.Must(G.Exp(ratio))
	surr := G.Must(G.HadamardProd(ratio, l.advantages))
	surr = G.Must(op.Min(surr, l.clipped))

	loss := G.Must(G.Mean(surr))
	loss = G.Must(G.Neg(loss))

	return l.compile(g, loss, learnables)
}

// mseGraph builds the loss mean((prediction - target)²)
func (m *MLP) mseGraph(batch int) (*lossGraph, error) {
	g := G.NewGraph()
	l := &lossGraph{}

	l.input = newInput(g, "input", batch, m.features)
	pred, learnables, err := m.fwd(l.input)
	if err != nil {
		return nil, err
	}

	l.targets = newInput(g, "targets", batch, m.outputs)

	loss := G.Must(G.Sub(pred, l.targets))
	loss = G.Must(G.Square(loss))
	loss = G.Must(G.Mean(loss))

	return l.compile(g, loss, learnables)
}

// compile adds the backward pass of loss to g and creates the VM
func (l *lossGraph) compile(g *G.ExprGraph, loss *G.Node,
	learnables G.Nodes) (*lossGraph, error) {
	G.Read(loss, &l.lossVal)

	if _, err := G.Grad(loss, learnables...); err != nil {
		return nil, fmt.Errorf("compile: could not compute gradient: %v",
			err)
	}

	l.learnables = learnables
	l.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))
	return l, nil
}
