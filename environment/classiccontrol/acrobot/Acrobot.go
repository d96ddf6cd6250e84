// Package acrobot implements the classic control environment Acrobot
// with discrete actions
package acrobot

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
	dt float64 = 0.2

	// Physical constants
	LinkLength1 float64 = 1.0 // Metres, length of link 1
	LinkMass1   float64 = 1.0 // Kg, mass of link 1
	LinkMass2   float64 = 1.0 // Kg, mass of link 2
	LinkCOMPos1 float64 = 0.5 // Metres, centre of mass link 1
	LinkCOMPos2 float64 = 0.5 // Metres, centre of mass link 2
	LinkMOI     float64 = 1.0 // Moments of inertia for both links
	MaxVel1     float64 = 4 * math.Pi
	MaxVel2     float64 = 9 * math.Pi
	Gravity     float64 = 9.8
	MaxAngle    float64 = math.Pi

	ObservationDims int = 4
	NumActions      int = 3
)

var (
	angleBounds     = r1.Interval{Min: -MaxAngle, Max: MaxAngle}
	velocity1Bounds = r1.Interval{Min: -MaxVel1, Max: MaxVel1}
	velocity2Bounds = r1.Interval{Min: -MaxVel2, Max: MaxVel2}
)

// Acrobot implements the classic control environment Acrobot. In this
// environment, a double hinged and double linked pendulum is attached
// to a single actuated fixed base. Torque can be applied to the joint
// between the links to swing the acrobot around.
//
// State feature vectors have the form
//
//	[θ1, θ2, θ̇1, θ̇2], where:
//	θ1 = angle of the first link measured from the negative y-axis
//	θ2 = angle of the second link relative to the first link
//	θ̇1 = angular velocity of the first link
//	θ̇2 = angular velocity of the second link
//
// Angles are wrapped to stay within [-π, π] and angular velocities are
// clipped to [-MaxVel1, MaxVel1] and [-MaxVel2, MaxVel2]. Dynamics
// follow the RL book and are integrated with 4th order Runge-Kutta.
//
// Action a applies a torque of a-1 to the joint.
type Acrobot struct {
	env.Task
	lastStep ts.TimeStep
	discount float64
}

// New returns a new Acrobot environment with the argument task
func New(t env.Task, discount float64) (*Acrobot, ts.TimeStep, error) {
	a := &Acrobot{Task: t, discount: discount}

	firstStep, err := a.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, err
	}
	return a, firstStep, nil
}

// Reset resets the environment, begins a new episode, and returns
// the first timestep of the new episode
func (a *Acrobot) Reset() (ts.TimeStep, error) {
	state := a.Start()
	if err := validateState(state); err != nil {
		return ts.TimeStep{}, err
	}

	a.lastStep = ts.New(ts.First, 0, a.discount, state, 0)
	return a.lastStep, nil
}

// Step takes one environmental step given action a and returns the next
// timestep and whether or not the episode has ended
func (a *Acrobot) Step(action int) (ts.TimeStep, bool, error) {
	if action < 0 || action >= NumActions {
		return ts.TimeStep{}, true, agent.NewConfigurationError("step",
			"illegal action \n\twant([0, %v)) \n\thave(%v)", NumActions,
			action)
	}
	if a.lastStep.Last() {
		return ts.TimeStep{}, true, agent.NewConfigurationError("step",
			"episode has ended, call Reset")
	}

	nextState := nextState(a.lastStep.Observation, float64(action-1))
	reward := a.GetReward(a.lastStep.Observation, action, nextState)
	nextStep := ts.New(ts.Mid, reward, a.discount, nextState,
		a.lastStep.Number+1)

	a.End(&nextStep)

	a.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// ActionSpec returns the action specification of the environment
func (a *Acrobot) ActionSpec() env.Spec {
	return env.NewDiscreteActionSpec(NumActions)
}

// ObservationSpec returns the observation specification of the
// environment
func (a *Acrobot) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)
	lowerBound := mat.NewVecDense(ObservationDims, []float64{
		angleBounds.Min, angleBounds.Min, velocity1Bounds.Min,
		velocity2Bounds.Min})
	upperBound := mat.NewVecDense(ObservationDims, []float64{
		angleBounds.Max, angleBounds.Max, velocity1Bounds.Max,
		velocity2Bounds.Max})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// DiscountSpec returns the discounting specification of the environment
func (a *Acrobot) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{a.discount})
	upperBound := mat.NewVecDense(1, []float64{a.discount})

	return env.NewSpec(shape, env.Discount, lowerBound, upperBound,
		env.Continuous)
}

// String implements the fmt.Stringer interface
func (a *Acrobot) String() string {
	state := a.lastStep.Observation
	return fmt.Sprintf("Acrobot  |  θ1: %v  |  θ2: %v  |  θ̇1: %v  |  θ̇2: %v",
		state.AtVec(0), state.AtVec(1), state.AtVec(2), state.AtVec(3))
}

// nextState returns the state following s when torque is applied to
// the joint of the acrobot
func nextState(s *mat.VecDense, torque float64) *mat.VecDense {
	// The torque is held constant over the integration by augmenting
	// the state with it
	augmented := mat.NewVecDense(ObservationDims+1, nil)
	augmented.CopyVec(s)
	augmented.SetVec(ObservationDims, torque)

	integrated := rk4(dsDt, augmented, dt)
	ns := mat.NewVecDense(ObservationDims, nil)
	ns.CopyVec(integrated.SliceVec(0, ObservationDims))

	ns.SetVec(0, floatutils.WrapInterval(ns.AtVec(0), angleBounds))
	ns.SetVec(1, floatutils.WrapInterval(ns.AtVec(1), angleBounds))
	ns.SetVec(2, floatutils.ClipInterval(ns.AtVec(2), velocity1Bounds))
	ns.SetVec(3, floatutils.ClipInterval(ns.AtVec(3), velocity2Bounds))

	return ns
}

// dsDt returns the time derivative of a state augmented with the
// applied torque
func dsDt(augmented *mat.VecDense) []float64 {
	m1, m2 := LinkMass1, LinkMass2
	l1 := LinkLength1
	lc1, lc2 := LinkCOMPos1, LinkCOMPos2
	i1, i2 := LinkMOI, LinkMOI
	g := Gravity

	theta1, theta2 := augmented.AtVec(0), augmented.AtVec(1)
	dtheta1, dtheta2 := augmented.AtVec(2), augmented.AtVec(3)
	torque := augmented.AtVec(4)

	d1 := m1*lc1*lc1 + m2*(l1*l1+lc2*lc2+2*l1*lc2*math.Cos(theta2)) +
		i1 + i2
	d2 := m2*(lc2*lc2+l1*lc2*math.Cos(theta2)) + i2

	phi2 := m2 * lc2 * g * math.Cos(theta1+theta2-math.Pi/2)
	phi1 := -m2*l1*lc2*dtheta2*dtheta2*math.Sin(theta2) -
		2*m2*l1*lc2*dtheta2*dtheta1*math.Sin(theta2) +
		(m1*lc1+m2*l1)*g*math.Cos(theta1-math.Pi/2) + phi2

	ddtheta2 := (torque + d2/d1*phi1 -
		m2*l1*lc2*dtheta1*dtheta1*math.Sin(theta2) - phi2) /
		(m2*lc2*lc2 + i2 - d2*d2/d1)
	ddtheta1 := -(d2*ddtheta2 + phi1) / d1

	// The torque is constant
	return []float64{dtheta1, dtheta2, ddtheta1, ddtheta2, 0.0}
}

// rk4 takes a single step of length h of 4th order Runge-Kutta
// integration of the system of ODEs dy/dt = derivs(y) from y0
func rk4(derivs func(*mat.VecDense) []float64, y0 *mat.VecDense,
	h float64) *mat.VecDense {
	n := y0.Len()

	k1 := mat.NewVecDense(n, derivs(y0))

	input := mat.NewVecDense(n, nil)
	input.AddScaledVec(y0, h/2, k1)
	k2 := mat.NewVecDense(n, derivs(input))

	input.AddScaledVec(y0, h/2, k2)
	k3 := mat.NewVecDense(n, derivs(input))

	input.AddScaledVec(y0, h, k3)
	k4 := mat.NewVecDense(n, derivs(input))

	// y0 + h/6 (k1 + 2k2 + 2k3 + k4)
	sum := mat.NewVecDense(n, nil)
	sum.CopyVec(k1)
	sum.AddScaledVec(sum, 2, k2)
	sum.AddScaledVec(sum, 2, k3)
	sum.AddVec(sum, k4)
	sum.AddScaledVec(y0, h/6, sum)
	return sum
}

// validateState checks that state is a legal Acrobot state
func validateState(state *mat.VecDense) error {
	if l := state.Len(); l != ObservationDims {
		return agent.NewConfigurationError("validateState", "illegal "+
			"state length \n\twant(%v) \n\thave(%v)", ObservationDims, l)
	}

	bounds := []r1.Interval{angleBounds, angleBounds, velocity1Bounds,
		velocity2Bounds}
	for i, b := range bounds {
		if v := state.AtVec(i); v < b.Min || v > b.Max {
			return agent.NewConfigurationError("validateState", "feature "+
				"%v out of bounds %v ∉ [%v, %v]", i, v, b.Min, b.Max)
		}
	}
	return nil
}
