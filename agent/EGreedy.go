package agent

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/floats"
)

// EGreedy implements ε-greedy action selection over a vector of action
// values. With probability ε an action is selected uniformly at random,
// otherwise the action of highest value is selected with ties broken
// in favour of the lowest index.
type EGreedy struct {
	epsilon float64
	rng     *rand.Rand
}

// NewEGreedy returns a new EGreedy action selector
func NewEGreedy(epsilon float64, seed uint64) (*EGreedy, error) {
	if epsilon < 0 || epsilon > 1 {
		return nil, NewConfigurationError("newEGreedy", "epsilon must be "+
			"in [0, 1] \n\thave(%v)", epsilon)
	}
	return &EGreedy{
		epsilon: epsilon,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// SetEpsilon sets the probability of selecting a random action
func (e *EGreedy) SetEpsilon(epsilon float64) {
	e.epsilon = epsilon
}

// Epsilon returns the probability of selecting a random action
func (e *EGreedy) Epsilon() float64 {
	return e.epsilon
}

// Select selects an action given the values of each action
func (e *EGreedy) Select(actionValues []float64) int {
	if e.rng.Float64() < e.epsilon {
		return e.rng.Intn(len(actionValues))
	}
	return Greedy(actionValues)
}

// Greedy returns the index of the largest action value, breaking ties
// by the first index.
func Greedy(actionValues []float64) int {
	return floats.MaxIdx(actionValues)
}
