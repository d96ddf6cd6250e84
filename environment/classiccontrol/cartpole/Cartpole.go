// Package cartpole implements the Cartpole classic control environment
package cartpole

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

const (
	// Physical constants
	Gravity        float64 = 9.8
	CartMass       float64 = 1.0
	PoleMass       float64 = 0.1
	TotalMass      float64 = CartMass + PoleMass
	HalfPoleLength float64 = 0.5  // half of pole length
	ForceMag       float64 = 10.0 // Magnification of force applied
	Dt             float64 = 0.02 // seconds between state updates

	ObservationDims int = 4
	NumActions      int = 2
)

// Cartpole implements the classic control environment Cartpole with
// discrete actions. In this environment, a pole is attached to a cart,
// which can move horizontally. Gravity pulls the pole downwards so
// that balancing it in an upright position is very difficult.
//
// The state features are continuous and consist of the cart's x
// position and speed, as well as the pole's angle from the positive
// y-axis and the pole's angular velocity. Dynamics are integrated
// with the Euler method.
//
// Actions are discrete, consisting of the direction to apply
// horizontal force to the cart:
//
//	Action	Meaning
//	  0		Apply force left
//	  1		Apply force right
//
// Illegal actions result in a configuration error. Which states end
// an episode and which rewards are given is determined by the Task.
type Cartpole struct {
	env.Task
	lastStep ts.TimeStep
	discount float64
}

// New constructs a new Cartpole environment
func New(t env.Task, discount float64) (*Cartpole, ts.TimeStep, error) {
	c := &Cartpole{Task: t, discount: discount}

	firstStep, err := c.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, err
	}
	return c, firstStep, nil
}

// Reset resets the environment and returns a starting state drawn from
// the environment Starter
func (c *Cartpole) Reset() (ts.TimeStep, error) {
	state := c.Start()
	if state.Len() != ObservationDims {
		return ts.TimeStep{}, agent.NewConfigurationError("reset",
			"starting state has wrong dimension \n\twant(%v) \n\thave(%v)",
			ObservationDims, state.Len())
	}

	c.lastStep = ts.New(ts.First, 0, c.discount, state, 0)
	return c.lastStep, nil
}

// ActionSpec returns the action specification of the environment
func (c *Cartpole) ActionSpec() env.Spec {
	return env.NewDiscreteActionSpec(NumActions)
}

// ObservationSpec returns the observation specification of the
// environment
func (c *Cartpole) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)

	inf := math.Inf(1)
	lowerBound := mat.NewVecDense(ObservationDims, []float64{-inf, -inf,
		-inf, -inf})
	upperBound := mat.NewVecDense(ObservationDims, []float64{inf, inf,
		inf, inf})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// DiscountSpec returns the discounting specification of the environment
func (c *Cartpole) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{c.discount})
	upperBound := mat.NewVecDense(1, []float64{c.discount})

	return env.NewSpec(shape, env.Discount, lowerBound, upperBound,
		env.Continuous)
}

// Step takes one environmental step given action a and returns the next
// timestep and a bool indicating whether or not the episode has ended.
func (c *Cartpole) Step(a int) (ts.TimeStep, bool, error) {
	if a < 0 || a >= NumActions {
		return ts.TimeStep{}, true, agent.NewConfigurationError("step",
			"illegal action \n\twant([0, %v)) \n\thave(%v)", NumActions, a)
	}
	if c.lastStep.Last() {
		return ts.TimeStep{}, true, agent.NewConfigurationError("step",
			"episode has ended, call Reset")
	}

	force := ForceMag
	if a == 0 {
		force = -ForceMag
	}

	nextState := nextState(c.lastStep.Observation, force)
	reward := c.GetReward(c.lastStep.Observation, a, nextState)
	nextStep := ts.New(ts.Mid, reward, c.discount, nextState,
		c.lastStep.Number+1)

	// Check if the step ends the episode
	c.End(&nextStep)

	c.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// nextState computes the state following state when force is applied
// to the cart
func nextState(state mat.Vector, force float64) *mat.VecDense {
	x, xDot := state.AtVec(0), state.AtVec(1)
	th, thDot := state.AtVec(2), state.AtVec(3)

	cosTheta := math.Cos(th)
	sinTheta := math.Sin(th)

	poleMassLength := PoleMass * HalfPoleLength

	temp := (force + poleMassLength*thDot*thDot*sinTheta) / TotalMass
	thAcc := (Gravity*sinTheta - cosTheta*temp) / (HalfPoleLength *
		(4.0/3.0 - PoleMass*cosTheta*cosTheta/TotalMass))
	xAcc := temp - poleMassLength*thAcc*cosTheta/TotalMass

	x += Dt * xDot
	xDot += Dt * xAcc
	th += Dt * thDot
	thDot += Dt * thAcc

	return mat.NewVecDense(ObservationDims, []float64{x, xDot, th, thDot})
}

func (c *Cartpole) String() string {
	msg := "Cartpole  |  Position: %v  | Speed: %v  |  Angle: %v" +
		"  |  Angular Velocity: %v"

	state := c.lastStep.Observation
	position, speed := state.AtVec(0), state.AtVec(1)
	angle, velocity := state.AtVec(2), state.AtVec(3)

	return fmt.Sprintf(msg, position, speed, angle, velocity)
}
