// Package network implements the gorgonia backend of the
// agent.Approximator interface: multi-layered perceptrons that predict
// in batches and minimize the objectives defined in package agent.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goppo/agent"
)

// Class is the model class written to exported topologies
const Class = "MLP"

// MLP implements a multi-layered perceptron with a linear output layer.
//
// Gorgonia graphs have a fixed batch size, so an MLP lazily builds one
// prediction graph per batch size and one loss graph per objective and
// batch size. All graphs share the MLP's weight tensors.
//
// An MLP is not safe for concurrent use.
type MLP struct {
	features int
	outputs  int
	hidden   []int
	act      *Activation

	// Weights then bias of every layer, in layer order
	params []*param
	solver G.Solver

	forwards map[int]*forward
	losses   map[lossKey]*lossGraph

	// Wrappers of parameters owned outside the MLP which are optimized
	// with it. Keyed by pointer so the solver sees a stable model.
	extras map[*agent.Parameter]*param
}

// NewMLP creates and returns a new MLP mapping features inputs to
// outputs outputs. The MLP has len(hidden) hidden layers with
// activation act, each followed by a bias, and a final linear layer.
// Weights are initialized with init and biases with zeroes. The solver
// is used to apply gradients.
func NewMLP(features, outputs int, hidden []int, act *Activation,
	init G.InitWFn, solver G.Solver) (*MLP, error) {
	if features <= 0 {
		return nil, fmt.Errorf("newmlp: features must be positive, "+
			"have(%d)", features)
	}
	if outputs <= 0 {
		return nil, fmt.Errorf("newmlp: outputs must be positive, "+
			"have(%d)", outputs)
	}
	for i, h := range hidden {
		if h <= 0 {
			return nil, fmt.Errorf("newmlp: hidden layer %d must have a "+
				"positive number of units, have(%d)", i, h)
		}
	}
	if act == nil {
		return nil, fmt.Errorf("newmlp: nil activation")
	}
	if init == nil {
		return nil, fmt.Errorf("newmlp: nil weight initializer")
	}
	if solver == nil {
		return nil, fmt.Errorf("newmlp: nil solver")
	}

	sizes := make([]int, 0, len(hidden)+2)
	sizes = append(sizes, features)
	sizes = append(sizes, hidden...)
	sizes = append(sizes, outputs)

	params := make([]*param, 0, 2*(len(sizes)-1))
	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]

		weights, ok := init(tensor.Float64, in, out).([]float64)
		if !ok {
			return nil, fmt.Errorf("newmlp: weight initializer did not " +
				"return float64 values")
		}
		params = append(params,
			newParam(fmt.Sprintf("dense_%d/kernel", i), []int{in, out},
				weights),
			newParam(fmt.Sprintf("dense_%d/bias", i), []int{1, out},
				make([]float64, out)),
		)
	}

	h := make([]int, len(hidden))
	copy(h, hidden)

	return &MLP{
		features: features,
		outputs:  outputs,
		hidden:   h,
		act:      act,
		params:   params,
		solver:   solver,
		forwards: make(map[int]*forward),
		losses:   make(map[lossKey]*lossGraph),
		extras:   make(map[*agent.Parameter]*param),
	}, nil
}

// Inputs returns the number of features in a single observation
func (m *MLP) Inputs() int {
	return m.features
}

// Outputs returns the number of outputs from the network
func (m *MLP) Outputs() int {
	return m.outputs
}

// Topology returns the architecture of the MLP
func (m *MLP) Topology() agent.Topology {
	hidden := make([]int, len(m.hidden))
	copy(hidden, m.hidden)
	return agent.Topology{
		Class:      Class,
		Inputs:     m.features,
		Outputs:    m.outputs,
		Hidden:     hidden,
		Activation: m.act.String(),
	}
}

// forward is the prediction graph of an MLP for some batch size
type forward struct {
	vm      G.VM
	input   *G.Node
	predVal G.Value
}

// fwd adds the forward pass of the MLP on input to the graph of input
// and returns the prediction node and the learnables of the graph
func (m *MLP) fwd(input *G.Node) (*G.Node, G.Nodes, error) {
	if input.Shape()[1] != m.features {
		return nil, nil, fmt.Errorf("fwd: invalid shape for input to "+
			"neural net: \n\twant(%v) \n\thave(%v)", m.features,
			input.Shape()[1])
	}

	layers, learnables := addfcLayers(input.Graph(), m)

	pred := input
	var err error
	for i, l := range layers {
		if pred, err = l.fwd(pred); err != nil {
			return nil, nil, fmt.Errorf("fwd: could not compute forward "+
				"pass of layer %v: %v", i, err)
		}
	}
	return pred, learnables, nil
}

// newInput adds a zero-initialized batch x cols matrix named name to g
func newInput(g *G.ExprGraph, name string, batch, cols int) *G.Node {
	return G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, cols),
		G.WithName(name),
		G.WithInit(G.Zeroes()),
	)
}

// newInputVec adds a zero-initialized vector of length batch named name
// to g
func newInputVec(g *G.ExprGraph, name string, batch int) *G.Node {
	return G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(batch),
		G.WithName(name),
		G.WithInit(G.Zeroes()),
	)
}

// let binds a copy of data to the input node n
func let(n *G.Node, data []float64) error {
	backing := make([]float64, len(data))
	copy(backing, data)
	t := tensor.New(tensor.WithShape(n.Shape()...), tensor.WithBacking(backing))
	return G.Let(n, t)
}

func (m *MLP) forwardFor(batch int) (*forward, error) {
	if f, ok := m.forwards[batch]; ok {
		return f, nil
	}

	g := G.NewGraph()
	input := newInput(g, "input", batch, m.features)
	pred, _, err := m.fwd(input)
	if err != nil {
		return nil, err
	}

	f := &forward{input: input}
	G.Read(pred, &f.predVal)
	f.vm = G.NewTapeMachine(g)

	m.forwards[batch] = f
	return f, nil
}

// Predict returns the outputs of the MLP for a row-major batch of
// observations with batch rows
func (m *MLP) Predict(obs []float64, batch int) ([]float64, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("predict: batch size must be positive, "+
			"have(%d)", batch)
	}
	if len(obs) != batch*m.features {
		return nil, fmt.Errorf("predict: invalid number of inputs"+
			"\n\twant(%v)\n\thave(%v)", batch*m.features, len(obs))
	}

	f, err := m.forwardFor(batch)
	if err != nil {
		return nil, fmt.Errorf("predict: could not build graph: %v", err)
	}

	if err := let(f.input, obs); err != nil {
		return nil, fmt.Errorf("predict: could not set input: %v", err)
	}
	defer f.vm.Reset()
	if err := f.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: could not run forward pass: %v", err)
	}

	out := make([]float64, batch*m.outputs)
	copy(out, f.predVal.Data().([]float64))
	return out, nil
}

// gradients are the gradients of an objective with respect to the
// weights of an MLP and, optionally, one extra parameter
type gradients struct {
	owner *MLP
	loss  float64
	extra *agent.Parameter
	grads []*tensor.Dense
}

// Loss implements the agent.Gradients interface
func (g *gradients) Loss() float64 {
	return g.loss
}

// ComputeGradients computes the gradients of obj with respect to the
// MLP's weights without changing them. The supported objectives are
// *agent.ClippedSurrogate and *agent.MeanSquaredError.
func (m *MLP) ComputeGradients(obj agent.Objective) (agent.Gradients, error) {
	l, feeds, err := m.lossFor(obj)
	if err != nil {
		return nil, fmt.Errorf("computegradients: %v", err)
	}

	for node, data := range feeds {
		if err := let(node, data); err != nil {
			return nil, fmt.Errorf("computegradients: could not set %v: %v",
				node.Name(), err)
		}
	}

	defer l.vm.Reset()
	if err := l.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("computegradients: could not run loss "+
			"graph: %v", err)
	}

	grads := make([]*tensor.Dense, len(l.learnables))
	for i, n := range l.learnables {
		grad, err := n.Grad()
		if err != nil {
			return nil, fmt.Errorf("computegradients: could not get "+
				"gradient of %v: %v", n.Name(), err)
		}
		dense, ok := grad.(*tensor.Dense)
		if !ok {
			return nil, fmt.Errorf("computegradients: gradient of %v is "+
				"not a dense tensor", n.Name())
		}
		grads[i] = dense.Clone().(*tensor.Dense)
	}

	return &gradients{
		owner: m,
		loss:  l.lossVal.Data().(float64),
		extra: l.extra,
		grads: grads,
	}, nil
}

// ApplyGradients steps the solver with grads, which must have been
// computed by this MLP
func (m *MLP) ApplyGradients(grads agent.Gradients) error {
	g, ok := grads.(*gradients)
	if !ok || g.owner != m {
		return fmt.Errorf("applygradients: gradients were not computed " +
			"by this network")
	}

	model := m.model(g.extra)
	if len(model) != len(g.grads) {
		return fmt.Errorf("applygradients: illegal number of gradients"+
			"\n\twant(%d)\n\thave(%d)", len(model), len(g.grads))
	}

	valueGrads := make([]G.ValueGrad, len(model))
	for i, p := range model {
		p.grad = g.grads[i]
		valueGrads[i] = p
	}

	if err := m.solver.Step(valueGrads); err != nil {
		return fmt.Errorf("applygradients: could not step solver: %v", err)
	}

	if g.extra != nil {
		if p := m.extras[g.extra]; &p.data()[0] != &g.extra.Data[0] {
			copy(g.extra.Data, p.data())
		}
	}
	return nil
}

// model returns the params optimized together with extra, which may be
// nil
func (m *MLP) model(extra *agent.Parameter) []*param {
	model := make([]*param, len(m.params), len(m.params)+1)
	copy(model, m.params)
	if extra != nil {
		model = append(model, m.extraParam(extra))
	}
	return model
}

func (m *MLP) extraParam(p *agent.Parameter) *param {
	if wrapped, ok := m.extras[p]; ok {
		return wrapped
	}
	wrapped := newParam(p.Name, []int{1, p.Len()}, p.Data)
	m.extras[p] = wrapped
	return wrapped
}

// Export returns a snapshot of the MLP's architecture and weights
func (m *MLP) Export() (*agent.ModelArtifact, error) {
	params := make([]*agent.Parameter, len(m.params))
	for i, p := range m.params {
		data := make([]float64, len(p.data()))
		copy(data, p.data())
		shape := make([]int, len(p.value.Shape()))
		copy(shape, p.value.Shape())
		params[i] = &agent.Parameter{Name: p.name, Shape: shape, Data: data}
	}

	specs, data := agent.EncodeWeights(params)
	return &agent.ModelArtifact{
		ModelTopology: m.Topology(),
		WeightSpecs:   specs,
		WeightData:    data,
	}, nil
}

// Import overwrites the MLP's weights with those of artifact. The
// artifact is fully validated before any weight is written.
func (m *MLP) Import(artifact *agent.ModelArtifact) error {
	if artifact == nil {
		return fmt.Errorf("import: nil artifact")
	}
	if !m.Topology().Equal(artifact.ModelTopology) {
		return fmt.Errorf("import: topology mismatch\n\twant(%+v)"+
			"\n\thave(%+v)", m.Topology(), artifact.ModelTopology)
	}
	if len(artifact.WeightSpecs) != len(m.params) {
		return fmt.Errorf("import: illegal number of weights"+
			"\n\twant(%d)\n\thave(%d)", len(m.params),
			len(artifact.WeightSpecs))
	}

	params, err := agent.DecodeWeights(artifact.WeightSpecs,
		artifact.WeightData)
	if err != nil {
		return fmt.Errorf("import: %v", err)
	}

	for i, p := range m.params {
		if params[i].Name != p.name || params[i].Len() != len(p.data()) {
			return fmt.Errorf("import: weight %d is %q with %d values, "+
				"want %q with %d values", i, params[i].Name, params[i].Len(),
				p.name, len(p.data()))
		}
	}

	for i, p := range m.params {
		copy(p.data(), params[i].Data)
	}
	return nil
}
