package reinforce

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/rltrain/agent"
)

// Buffer stores the states, actions, and rewards of a single episode
type Buffer struct {
	obsSize int

	obsBuffer []float64
	actBuffer []int
	rewBuffer []float64
}

// NewBuffer creates and returns a new episode Buffer for observations
// of obsSize features
func NewBuffer(obsSize int) *Buffer {
	return &Buffer{obsSize: obsSize}
}

// Store stores a single timestep state, action, and reward
func (b *Buffer) Store(obs []float64, act int, rew float64) error {
	if len(obs) != b.obsSize {
		return agent.NewConfigurationError("store", "illegal obs length "+
			"\n\twant(%v) \n\thave(%v)", b.obsSize, len(obs))
	}

	b.obsBuffer = append(b.obsBuffer, obs...)
	b.actBuffer = append(b.actBuffer, act)
	b.rewBuffer = append(b.rewBuffer, rew)
	return nil
}

// Len returns the number of timesteps stored
func (b *Buffer) Len() int {
	return len(b.actBuffer)
}

// Return returns the undiscounted sum of rewards stored
func (b *Buffer) Return() float64 {
	return floats.Sum(b.rewBuffer)
}

// Get returns the states, actions, and discounted returns of the
// stored episode and empties the buffer
func (b *Buffer) Get(gamma float64) (*mat.Dense, []int, []float64) {
	states := mat.NewDense(b.Len(), b.obsSize, b.obsBuffer)
	actions := b.actBuffer
	returns := DiscountedReturns(b.rewBuffer, gamma)

	b.obsBuffer = nil
	b.actBuffer = nil
	b.rewBuffer = nil
	return states, actions, returns
}

// DiscountedReturns computes the discounted return from each timestep
// of an episode. Given rewards [r0 r1 ... rN] and discount ℽ, this
// function computes and returns:
//
//	[
//		r0 + ℽ r1 + ℽ^2 r2 + ... + ℽ^N rN
//		r1 + ℽ r2 + ... + ℽ^(N-1) rN
//		...
//		rN
//	]
func DiscountedReturns(rewards []float64, gamma float64) []float64 {
	returns := make([]float64, len(rewards))

	var sum float64
	for i := len(rewards) - 1; i >= 0; i-- {
		sum = rewards[i] + gamma*sum
		returns[i] = sum
	}
	return returns
}

// NormalizeAdvantages centres advantages about their mean and scales
// them by the inverse of their (uncentred) Euclidean norm:
//
//	(A - mean(A)) / sqrt(Σ A²)
//
// Advantages with a zero norm are only centred.
func NormalizeAdvantages(advantages []float64) []float64 {
	normalized := make([]float64, len(advantages))
	if len(advantages) == 0 {
		return normalized
	}

	mean := stat.Mean(advantages, nil)
	norm := floats.Norm(advantages, 2)
	copy(normalized, advantages)
	floats.AddConst(-mean, normalized)

	if norm != 0 && !math.IsNaN(norm) {
		floats.Scale(1/norm, normalized)
	}
	return normalized
}
