// Package environment outlines the interfaces and structs needed to
// implement concrete environments with discrete actions
package environment

import (
	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/rltrain/timestep"
)

// Starter implements a distribution of starting states and samples starting
// states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when episodes end. If a TimeStep ends an episode,
// End sets its StepType to timestep.Last, records how the episode
// ended, and returns true.
type Ender interface {
	End(*ts.TimeStep) bool
}

// Task implements the reward scheme and the episode structure of some
// environment.
type Task interface {
	Starter
	Ender

	// GetReward returns the reward for taking action in state and
	// transitioning to nextState
	GetReward(state *mat.VecDense, action int, nextState *mat.VecDense) float64
}

// Environment implements a simulated environment with a finite set of
// actions {0, 1, ..., ActionSpec().Actions()-1}.
type Environment interface {
	// Reset starts a new episode and returns its first TimeStep
	Reset() (ts.TimeStep, error)

	// Step takes action in the environment, returning the next TimeStep
	// and whether the episode has ended. An illegal action is an error.
	Step(action int) (ts.TimeStep, bool, error)

	ObservationSpec() Spec
	ActionSpec() Spec
	DiscountSpec() Spec
}
