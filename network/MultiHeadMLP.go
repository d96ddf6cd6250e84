package network

import (
	"github.com/pkg/errors"
	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/initwfn"
	"github.com/samuelfneumann/rltrain/solver"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MultiHeadMLP implements a multi-layered perceptron with multiple
// output nodes, one for each value that should be predicted, e.g. one
// action value per action. A single output MultiHeadMLP is a state
// value function.
//
// Training regresses a single selected output of each input towards a
// target using the mean squared error over the batch. MultiHeadMLP
// satisfies agent.Approximator.
type MultiHeadMLP struct {
	*mlp
	init *initwfn.InitWFn

	// Inputs to the loss of the training graph
	mask    *G.Node // One-hot selection of the output trained per row
	targets *G.Node
	weights *G.Node // 1/n for each of the n rows in the batch, 0 for padding
}

// NewMultiHeadMLP creates and returns a new multi-layered perceptron
// with outputs output nodes.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. For
// index i, hiddenSizes[i] is the number of nodes in hidden layer i and
// activations[i] its activation. A final linear layer is always added
// such that the network predicts outputs values. Every layer has a
// bias unit.
//
// The batch parameter is the largest batch the network is trained on.
// The solver s may be nil for networks which are never trained, such
// as target networks.
func NewMultiHeadMLP(features, outputs, batch int, hiddenSizes []int,
	activations []*Activation, init *initwfn.InitWFn,
	s *solver.Solver) (*MultiHeadMLP, error) {
	net, err := newMLP(features, outputs, batch, hiddenSizes, activations,
		init)
	if err != nil {
		return nil, errors.Wrap(err, "newMultiHeadMLP")
	}

	mask := G.NewMatrix(
		net.g,
		tensor.Float64,
		G.WithShape(net.batch, outputs),
		G.WithName("mask"),
		G.WithInit(G.Zeroes()),
	)
	targets := G.NewVector(
		net.g,
		tensor.Float64,
		G.WithShape(net.batch),
		G.WithName("targets"),
		G.WithInit(G.Zeroes()),
	)
	weights := G.NewVector(
		net.g,
		tensor.Float64,
		G.WithShape(net.batch),
		G.WithName("rowWeights"),
		G.WithInit(G.Zeroes()),
	)

	// Mean squared error on the selected outputs
	selected := G.Must(G.HadamardProd(net.prediction, mask))
	selected = G.Must(G.Sum(selected, 1))
	diff := G.Must(G.Sub(targets, selected))
	sq := G.Must(G.Square(diff))
	loss := G.Must(G.Sum(G.Must(G.HadamardProd(weights, sq))))

	if err := net.compile(loss, s); err != nil {
		return nil, errors.Wrap(err, "newMultiHeadMLP")
	}

	return &MultiHeadMLP{
		mlp:     net,
		init:    init,
		mask:    mask,
		targets: targets,
		weights: weights,
	}, nil
}

// Update takes a single solver step on the mean squared error between
// output outputs[i] of row i of states and targets[i]. The loss before
// the update is returned.
func (m *MultiHeadMLP) Update(states *mat.Dense, outputs []int,
	targets []float64) (float64, error) {
	n := len(outputs)
	if len(targets) != n {
		return 0, agent.NewConfigurationError("update", "batch fields "+
			"differ in length \n\toutputs(%v) \n\ttargets(%v)", n,
			len(targets))
	}
	if n == 0 {
		return 0, agent.NewConfigurationError("update", "empty batch")
	}
	if err := m.checkBatch("update", states, n); err != nil {
		return 0, err
	}

	mask := make([]float64, m.batch*m.outputs)
	target := make([]float64, m.batch)
	weight := make([]float64, m.batch)
	for i, out := range outputs {
		if out < 0 || out >= m.outputs {
			return 0, agent.NewConfigurationError("update", "output index "+
				"out of range \n\twant([0, %v)) \n\thave(%v)", m.outputs, out)
		}
		mask[i*m.outputs+out] = 1.0
		target[i] = targets[i]
		weight[i] = 1.0 / float64(n)
	}

	if err := m.setInputs(states); err != nil {
		return 0, errors.Wrap(err, "update")
	}
	if err := bind(m.mask, mask, m.batch, m.outputs); err != nil {
		return 0, errors.Wrap(err, "update")
	}
	if err := bindVec(m.targets, target); err != nil {
		return 0, errors.Wrap(err, "update")
	}
	if err := bindVec(m.weights, weight); err != nil {
		return 0, errors.Wrap(err, "update")
	}

	loss, err := m.step()
	return loss, errors.Wrap(err, "update")
}

// Clone returns a copy of the network with the same parameters and a
// fresh solver of the same configuration.
func (m *MultiHeadMLP) Clone() (*MultiHeadMLP, error) {
	var s *solver.Solver
	if m.solver != nil {
		var err error
		if s, err = m.solver.Clone(); err != nil {
			return nil, errors.Wrap(err, "clone")
		}
	}

	clone, err := NewMultiHeadMLP(m.features, m.outputs, m.batch,
		m.hiddenSizes, m.activations, m.init, s)
	if err != nil {
		return nil, errors.Wrap(err, "clone")
	}
	if err := clone.SetParameters(m.Parameters()); err != nil {
		return nil, errors.Wrap(err, "clone")
	}
	return clone, nil
}

// GobEncode implements the gob.GobEncoder interface
func (m *MultiHeadMLP) GobEncode() ([]byte, error) {
	return encodeArchitecture(m.mlp)
}

// GobDecode implements the gob.GobDecoder interface
func (m *MultiHeadMLP) GobDecode(in []byte) error {
	arch, err := decodeArchitecture(in)
	if err != nil {
		return err
	}
	s, err := arch.solver()
	if err != nil {
		return errors.Wrap(err, "gobdecode")
	}

	net, err := NewMultiHeadMLP(arch.Features, arch.Outputs, arch.Batch,
		arch.HiddenSizes, arch.Activations, initwfn.NewZeroes(), s)
	if err != nil {
		return errors.Wrap(err, "gobdecode")
	}
	if err := net.SetParameters(arch.parameters()); err != nil {
		return errors.Wrap(err, "gobdecode")
	}

	*m = *net
	return nil
}
