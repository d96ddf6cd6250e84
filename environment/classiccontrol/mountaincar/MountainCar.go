// Package mountaincar implements the discrete action classic control
// environment Mountain Car
package mountaincar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
	"github.com/samuelfneumann/rltrain/utils/floatutils"
)

const (
	MinPosition float64 = -1.2
	MaxPosition float64 = 0.6
	MaxSpeed    float64 = 0.07
	Power       float64 = 0.001 // Engine power
	Gravity     float64 = 0.0025

	ObservationDims int = 2
	NumActions      int = 3
)

var (
	positionBounds = r1.Interval{Min: MinPosition, Max: MaxPosition}
	speedBounds    = r1.Interval{Min: -MaxSpeed, Max: MaxSpeed}
)

// MountainCar implements the classic control Mountain Car environment.
// In this environment, the agent controls a car in a valley between two
// hills. The car is underpowered and cannot drive up the hill unless
// it rocks back and forth from hill to hill, using its momentum to
// gradually climb higher.
//
// State features consist of the x position of the car and its velocity,
// bounded by the MinPosition, MaxPosition, and MaxSpeed constants. A
// negative velocity means the car travels left. Upon reaching the
// left wall, the velocity of the car is set to 0.
//
// Actions determine in which direction to apply full accelerating force
// to the car:
//
//	Action	Meaning
//	  0		Accelerate left
//	  1		Do nothing
//	  2		Accelerate right
type MountainCar struct {
	env.Task
	lastStep ts.TimeStep
	discount float64
}

// New creates a new Mountain Car environment with the argument task
func New(t env.Task, discount float64) (*MountainCar, ts.TimeStep,
	error) {
	m := &MountainCar{Task: t, discount: discount}

	firstStep, err := m.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, err
	}
	return m, firstStep, nil
}

// Reset resets the environment and returns a starting state drawn from
// the environment Starter
func (m *MountainCar) Reset() (ts.TimeStep, error) {
	state := m.Start()
	if err := validateState(state); err != nil {
		return ts.TimeStep{}, err
	}

	m.lastStep = ts.New(ts.First, 0, m.discount, state, 0)
	return m.lastStep, nil
}

// ActionSpec returns the action specification of the environment
func (m *MountainCar) ActionSpec() env.Spec {
	return env.NewDiscreteActionSpec(NumActions)
}

// ObservationSpec returns the observation specification of the
// environment
func (m *MountainCar) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)
	lowerBound := mat.NewVecDense(ObservationDims, []float64{
		positionBounds.Min, speedBounds.Min})
	upperBound := mat.NewVecDense(ObservationDims, []float64{
		positionBounds.Max, speedBounds.Max})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// DiscountSpec returns the discounting specification of the environment
func (m *MountainCar) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{m.discount})
	upperBound := mat.NewVecDense(1, []float64{m.discount})

	return env.NewSpec(shape, env.Discount, lowerBound, upperBound,
		env.Continuous)
}

// Step takes one environmental step given action a and returns the next
// timestep and whether or not the episode has ended
func (m *MountainCar) Step(a int) (ts.TimeStep, bool, error) {
	if a < 0 || a >= NumActions {
		return ts.TimeStep{}, true, agent.NewConfigurationError("step",
			"illegal action \n\twant([0, %v)) \n\thave(%v)", NumActions, a)
	}
	if m.lastStep.Last() {
		return ts.TimeStep{}, true, agent.NewConfigurationError("step",
			"episode has ended, call Reset")
	}

	nextState := nextState(m.lastStep.Observation, float64(a-1))
	reward := m.GetReward(m.lastStep.Observation, a, nextState)
	nextStep := ts.New(ts.Mid, reward, m.discount, nextState,
		m.lastStep.Number+1)

	m.End(&nextStep)

	m.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// nextState computes the state following state when force in
// {-1, 0, 1} is applied to the car
func nextState(state mat.Vector, force float64) *mat.VecDense {
	position, velocity := state.AtVec(0), state.AtVec(1)

	velocity += force*Power - Gravity*math.Cos(3*position)
	velocity = floatutils.ClipInterval(velocity, speedBounds)

	position += velocity
	position = floatutils.ClipInterval(position, positionBounds)

	// Inelastic collision with the left wall
	if position <= positionBounds.Min && velocity < 0 {
		velocity = 0
	}

	return mat.NewVecDense(ObservationDims, []float64{position, velocity})
}

// String returns a string representation of the environment
func (m *MountainCar) String() string {
	str := "Mountain Car  |  Position: %v  |  Speed: %v"
	state := m.lastStep.Observation
	return fmt.Sprintf(str, state.AtVec(0), state.AtVec(1))
}

// validateState ensures the position and speed of s are within the
// environmental limits
func validateState(s mat.Vector) error {
	if s.Len() != ObservationDims {
		return agent.NewConfigurationError("validateState", "state has "+
			"wrong dimension \n\twant(%v) \n\thave(%v)", ObservationDims,
			s.Len())
	}

	position := s.AtVec(0)
	if position < positionBounds.Min || position > positionBounds.Max {
		return agent.NewConfigurationError("validateState", "illegal "+
			"position %v ∉ [%v, %v]", position, positionBounds.Min,
			positionBounds.Max)
	}

	speed := s.AtVec(1)
	if speed < speedBounds.Min || speed > speedBounds.Max {
		return agent.NewConfigurationError("validateState", "illegal "+
			"speed %v ∉ [%v, %v]", speed, speedBounds.Min,
			speedBounds.Max)
	}
	return nil
}
