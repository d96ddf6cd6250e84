package network

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/rltrain/initwfn"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, errors.Wrap(err, "fwd: could not multiply weights")
	}

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "fwd: could not add bias")
	}

	return f.act.fwd(x)
}

// newFCLayers adds a stack of fully connected layers to g. Layer i has
// sizes[i] units and activation acts[i]. Weights are initialized with
// init and biases with zeroes.
func newFCLayers(g *G.ExprGraph, features int, sizes []int,
	acts []*Activation, init *initwfn.InitWFn) []*fcLayer {
	layers := make([]*fcLayer, len(sizes))

	in := features
	for i, out := range sizes {
		value := tensor.New(
			tensor.WithShape(in, out),
			tensor.WithBacking(init.Values(in, out)),
		)
		weights := G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(in, out),
			G.WithName(fmt.Sprintf("L%dW", i)),
			G.WithValue(value),
		)
		bias := G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(1, out),
			G.WithName(fmt.Sprintf("L%dB", i)),
			G.WithInit(G.Zeroes()),
		)
		layers[i] = &fcLayer{weights: weights, bias: bias, act: acts[i]}
		in = out
	}
	return layers
}

// cloneFCLayers adds layers to g with the same shapes, names, and
// current values as layers. The clone shares no memory with layers.
func cloneFCLayers(g *G.ExprGraph, layers []*fcLayer) []*fcLayer {
	clone := func(n *G.Node) *G.Node {
		value := n.Value().(*tensor.Dense).Clone().(*tensor.Dense)
		return G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(n.Shape()...),
			G.WithName(n.Name()),
			G.WithValue(value),
		)
	}

	cloned := make([]*fcLayer, len(layers))
	for i, l := range layers {
		cloned[i] = &fcLayer{
			weights: clone(l.weights),
			bias:    clone(l.bias),
			act:     l.act,
		}
	}
	return cloned
}

// forward adds the forward pass of a stack of layers on input x to the
// computational graph.
func forward(layers []*fcLayer, x *G.Node) (*G.Node, error) {
	var err error
	for i, l := range layers {
		if x, err = l.fwd(x); err != nil {
			return nil, errors.Wrapf(err, "forward: could not compute "+
				"forward pass of layer %v", i)
		}
	}
	return x, nil
}

// learnablesOf returns the learnable nodes of a stack of layers in
// order: weights then bias of each layer.
func learnablesOf(layers []*fcLayer) G.Nodes {
	learnables := make(G.Nodes, 0, 2*len(layers))
	for _, l := range layers {
		learnables = append(learnables, l.weights, l.bias)
	}
	return learnables
}
