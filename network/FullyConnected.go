package network

import (
	G "gorgonia.org/gorgonia"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network on some computational graph
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, err
	}

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0})
	if err != nil {
		return nil, err
	}

	if f.act == nil || f.act.IsIdentity() {
		return x, nil
	}
	return f.act.fwd(x)
}

// addfcLayers adds the learnable nodes of all layers of net to graph g
// and returns the layers along with the learnables in layer order
// (weights, then bias).
func addfcLayers(g *G.ExprGraph, net *MLP) ([]*fcLayer, G.Nodes) {
	layers := make([]*fcLayer, 0, len(net.params)/2)
	learnables := make(G.Nodes, 0, len(net.params))

	numLayers := len(net.params) / 2
	for i := 0; i < numLayers; i++ {
		w := net.params[2*i].node(g)
		b := net.params[2*i+1].node(g)

		act := net.act
		if i == numLayers-1 {
			// Output layer is linear
			act = Identity()
		}

		layers = append(layers, &fcLayer{weights: w, bias: b, act: act})
		learnables = append(learnables, w, b)
	}
	return layers, learnables
}
