package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// param is a learnable weight tensor of an MLP. The value tensor is
// shared by every computational graph the MLP builds, so an update
// through one graph is seen by all of them.
//
// param implements G.ValueGrad so that it can be passed directly to a
// G.Solver.
type param struct {
	name  string
	value *tensor.Dense
	grad  *tensor.Dense
}

func newParam(name string, shape []int, backing []float64) *param {
	return &param{
		name: name,
		value: tensor.New(
			tensor.WithShape(shape...),
			tensor.WithBacking(backing),
		),
	}
}

// Value implements the G.Valuer interface
func (p *param) Value() G.Value {
	return p.value
}

// Grad implements the G.ValueGrad interface
func (p *param) Grad() (G.Value, error) {
	if p.grad == nil {
		return nil, fmt.Errorf("grad: no gradient set for %v", p.name)
	}
	return p.grad, nil
}

// node returns a new matrix node on g holding the param's value tensor
func (p *param) node(g *G.ExprGraph) *G.Node {
	return G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(p.value.Shape()...),
		G.WithName(p.name),
		G.WithValue(p.value),
	)
}

// data returns the backing slice of the param's value
func (p *param) data() []float64 {
	return p.value.Data().([]float64)
}
