package network

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/initwfn"
	"github.com/samuelfneumann/rltrain/solver"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// CategoricalMLP implements a softmax policy over discrete actions
// whose logits are predicted by a multi-layered perceptron.
//
// Training takes a single policy gradient step on the loss
// -1/n Σ log π(aᵢ|sᵢ) Aᵢ for a batch of n states, actions, and
// advantages.
type CategoricalMLP struct {
	*mlp
	source rand.Source

	// Inputs to the loss of the training graph
	actions    *G.Node // One-hot encoding of the action taken per row
	advantages *G.Node // Advantages scaled by 1/n, 0 for padding
}

// NewCategoricalMLP returns a new CategoricalMLP policy over the given
// number of actions. The batch is the largest batch of states the
// policy is trained on. The seed determines action sampling.
func NewCategoricalMLP(features, actions, batch int, hiddenSizes []int,
	activations []*Activation, init *initwfn.InitWFn, s *solver.Solver,
	seed uint64) (*CategoricalMLP, error) {
	net, err := newMLP(features, actions, batch, hiddenSizes, activations,
		init)
	if err != nil {
		return nil, errors.Wrap(err, "newCategoricalMLP")
	}

	actionIndices := G.NewMatrix(
		net.g,
		tensor.Float64,
		G.WithShape(net.batch, actions),
		G.WithName("actionIndices"),
		G.WithInit(G.Zeroes()),
	)
	advantages := G.NewVector(
		net.g,
		tensor.Float64,
		G.WithShape(net.batch),
		G.WithName("advantages"),
		G.WithInit(G.Zeroes()),
	)

	// log π(a|s) = logit(a) - log Σ exp(logits). The row maximum is
	// subtracted from the logits first so that exp cannot overflow.
	logits := net.prediction
	rowMax := G.Must(G.Max(logits, 1))
	shifted := G.Must(G.BroadcastSub(logits, rowMax, nil, []byte{1}))
	selected := G.Must(G.Sum(G.Must(G.HadamardProd(shifted, actionIndices)), 1))
	logSumExp := G.Must(G.Log(G.Must(G.Sum(G.Must(G.Exp(shifted)), 1))))
	logProb := G.Must(G.Sub(selected, logSumExp))

	loss := G.Must(G.Sum(G.Must(G.HadamardProd(logProb, advantages))))
	loss = G.Must(G.Neg(loss))

	if err := net.compile(loss, s); err != nil {
		return nil, errors.Wrap(err, "newCategoricalMLP")
	}

	return &CategoricalMLP{
		mlp:        net,
		source:     rand.NewSource(seed),
		actions:    actionIndices,
		advantages: advantages,
	}, nil
}

// Probabilities returns the probability of each action in each row of
// states.
func (c *CategoricalMLP) Probabilities(states *mat.Dense) (*mat.Dense,
	error) {
	logits, err := c.Predict(states)
	if err != nil {
		return nil, errors.Wrap(err, "probabilities")
	}

	rows, _ := logits.Dims()
	for i := 0; i < rows; i++ {
		softmax(logits.RawRowView(i))
	}
	return logits, nil
}

// Sample samples an action in state obs
func (c *CategoricalMLP) Sample(obs mat.Vector) (int, error) {
	state := mat.NewDense(1, obs.Len(), nil)
	state.SetRow(0, mat.Col(nil, 0, obs))

	probs, err := c.Probabilities(state)
	if err != nil {
		return 0, errors.Wrap(err, "sample")
	}

	dist := distuv.NewCategorical(probs.RawRowView(0), c.source)
	return int(dist.Rand()), nil
}

// Update takes a single policy gradient step. Row i of states is the
// state in which actions[i] was taken with advantage advantages[i].
// The loss before the update is returned.
func (c *CategoricalMLP) Update(states *mat.Dense, actions []int,
	advantages []float64) (float64, error) {
	n := len(actions)
	if len(advantages) != n {
		return 0, agent.NewConfigurationError("update", "batch fields "+
			"differ in length \n\tactions(%v) \n\tadvantages(%v)", n,
			len(advantages))
	}
	if n == 0 {
		return 0, agent.NewConfigurationError("update", "empty batch")
	}
	if err := c.checkBatch("update", states, n); err != nil {
		return 0, err
	}

	indices := make([]float64, c.batch*c.outputs)
	adv := make([]float64, c.batch)
	for i, a := range actions {
		if a < 0 || a >= c.outputs {
			return 0, agent.NewConfigurationError("update", "action out "+
				"of range \n\twant([0, %v)) \n\thave(%v)", c.outputs, a)
		}
		indices[i*c.outputs+a] = 1.0
		adv[i] = advantages[i] / float64(n)
	}

	if err := c.setInputs(states); err != nil {
		return 0, errors.Wrap(err, "update")
	}
	if err := bind(c.actions, indices, c.batch, c.outputs); err != nil {
		return 0, errors.Wrap(err, "update")
	}
	if err := bindVec(c.advantages, adv); err != nil {
		return 0, errors.Wrap(err, "update")
	}

	loss, err := c.step()
	return loss, errors.Wrap(err, "update")
}

// GobEncode implements the gob.GobEncoder interface
func (c *CategoricalMLP) GobEncode() ([]byte, error) {
	return encodeArchitecture(c.mlp)
}

// GobDecode implements the gob.GobDecoder interface. The decoded policy
// samples actions with a seed of 0.
func (c *CategoricalMLP) GobDecode(in []byte) error {
	arch, err := decodeArchitecture(in)
	if err != nil {
		return err
	}
	s, err := arch.solver()
	if err != nil {
		return errors.Wrap(err, "gobdecode")
	}

	net, err := NewCategoricalMLP(arch.Features, arch.Outputs, arch.Batch,
		arch.HiddenSizes, arch.Activations, initwfn.NewZeroes(), s, 0)
	if err != nil {
		return errors.Wrap(err, "gobdecode")
	}
	if err := net.SetParameters(arch.parameters()); err != nil {
		return errors.Wrap(err, "gobdecode")
	}

	*c = *net
	return nil
}

// softmax replaces logits with their softmax in place
func softmax(logits []float64) {
	lse := floats.LogSumExp(logits)
	for i := range logits {
		logits[i] = math.Exp(logits[i] - lse)
	}
}
