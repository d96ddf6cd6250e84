package agent

import "gonum.org/v1/gonum/mat"

// Parameterized is anything whose learnable parameters can be read and
// overwritten. Parameters are returned as copies so that callers never
// alias the parameters of the underlying model.
type Parameterized interface {
	Parameters() []*mat.Dense
	SetParameters([]*mat.Dense) error
}

// Approximator is a function approximator with one output per action
// (or a single output for state-value functions).
type Approximator interface {
	Parameterized

	// Predict returns the outputs for a batch of states, one row per
	// state.
	Predict(states *mat.Dense) (*mat.Dense, error)

	// Update regresses output outputs[i] of row i of states towards
	// targets[i] by taking a single step on the mean squared error.
	// The mean squared error before the step is returned.
	Update(states *mat.Dense, outputs []int, targets []float64) (float64,
		error)

	// Features returns the number of features in a single state
	Features() int

	// Outputs returns the number of outputs predicted for each state
	Outputs() int
}
