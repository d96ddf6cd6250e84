// Package wrappers provides wrappers for environments
package wrappers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

// StateAggregation wraps an environment with a discrete state index as
// observation and returns as observations a one-hot vector of the
// group the state belongs to. States are split into numGroups groups
// of numStates/numGroups consecutive states, for example with 1000
// states and 100 groups:
//
//	state 0..9	->	[1 0 0 ... 0]
//	state 10..19	->	[0 1 0 ... 0]
//
// StateAggregation itself implements the environment.Environment
// interface and is therefore itself an environment.
type StateAggregation struct {
	environment.Environment
	numStates int
	numGroups int
}

// NewStateAggregation creates and returns a new StateAggregation
// environment wrapping env, along with the first TimeStep of env after
// a reset.
func NewStateAggregation(env environment.Environment,
	numGroups int) (*StateAggregation, ts.TimeStep, error) {
	spec := env.ObservationSpec()
	if spec.Len() != 1 {
		return nil, ts.TimeStep{}, agent.NewConfigurationError(
			"newStateAggregation", "observations must be a single state "+
				"index \n\thave(%v features)", spec.Len())
	}

	numStates := int(spec.UpperBound.AtVec(0)-spec.LowerBound.AtVec(0)) + 1
	if numGroups <= 0 || numGroups > numStates {
		return nil, ts.TimeStep{}, agent.NewConfigurationError(
			"newStateAggregation", "number of groups must be in [1, %v] "+
				"\n\thave(%v)", numStates, numGroups)
	}

	s := &StateAggregation{env, numStates, numGroups}
	step, err := s.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, err
	}
	return s, step, nil
}

// Group returns the group of a state index
func (s *StateAggregation) Group(state int) int {
	group := int(float64(state) / (float64(s.numStates) /
		float64(s.numGroups)))
	if group >= s.numGroups {
		group = s.numGroups - 1
	}
	return group
}

// Encode returns the one-hot encoding of the group of a state index
func (s *StateAggregation) Encode(state int) *mat.VecDense {
	obs := mat.NewVecDense(s.numGroups, nil)
	obs.SetVec(s.Group(state), 1.0)
	return obs
}

// GroupFeatures returns the one-hot encoding of group
func (s *StateAggregation) GroupFeatures(group int) *mat.VecDense {
	obs := mat.NewVecDense(s.numGroups, nil)
	obs.SetVec(group, 1.0)
	return obs
}

// Reset resets the environment to some starting state
func (s *StateAggregation) Reset() (ts.TimeStep, error) {
	step, err := s.Environment.Reset()
	if err != nil {
		return step, err
	}
	step.Observation = s.Encode(int(step.Observation.AtVec(0)))
	return step, nil
}

// Step takes one environmental step given action a and returns the next
// state as a timestep.TimeStep and a bool indicating whether or not the
// episode has ended
func (s *StateAggregation) Step(a int) (ts.TimeStep, bool, error) {
	step, last, err := s.Environment.Step(a)
	if err != nil {
		return step, last, err
	}
	step.Observation = s.Encode(int(step.Observation.AtVec(0)))
	return step, last, nil
}

// ObservationSpec returns the observation specification of the
// environment
func (s *StateAggregation) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(s.numGroups, nil)
	lowerBound := mat.NewVecDense(s.numGroups, nil)
	upper := make([]float64, s.numGroups)
	for i := range upper {
		upper[i] = 1.0
	}
	upperBound := mat.NewVecDense(s.numGroups, upper)

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, environment.Discrete)
}

// NumGroups returns the number of groups states are aggregated into
func (s *StateAggregation) NumGroups() int {
	return s.numGroups
}

// String returns a string representation of the StateAggregation
// environment
func (s *StateAggregation) String() string {
	return fmt.Sprintf("StateAggregation(%v groups): %v", s.numGroups,
		s.Environment)
}
