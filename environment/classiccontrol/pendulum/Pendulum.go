// Package pendulum implements the classic control Pendulum swing up
// environment with discretized torques
package pendulum

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
	AngleBound  float64 = math.Pi // +/- Angle bounds
	SpeedBound  float64 = 8.0     // +/- Speed bounds
	TorqueBound float64 = 2.0     // +/- Torque bounds

	dt      float64 = 0.05
	Gravity float64 = 9.8
	Mass    float64 = 1.0
	Length  float64 = 1.0

	ObservationDims int = 2
	NumActions      int = 5
)

var (
	angleBounds = r1.Interval{Min: -AngleBound, Max: AngleBound}
	speedBounds = r1.Interval{Min: -SpeedBound, Max: SpeedBound}
)

// Pendulum implements the classic control environment Pendulum. A
// pendulum is attached to a fixed base at which torque can be applied
// to swing the pendulum up and balance it.
//
// State features are the angle of the pendulum from the positive
// y-axis, wrapped to [-π, π], and its angular velocity, clipped to
// [-SpeedBound, SpeedBound].
//
// Action a applies a torque of (a/2 - 1) * TorqueBound, so that the
// actions apply -2, -1, 0, 1, and 2 units of torque.
type Pendulum struct {
	env.Task
	lastStep ts.TimeStep
	discount float64
}

// New returns a new Pendulum environment with the argument task
func New(t env.Task, discount float64) (*Pendulum, ts.TimeStep, error) {
	p := &Pendulum{Task: t, discount: discount}

	firstStep, err := p.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, err
	}
	return p, firstStep, nil
}

// Reset resets the environment and returns a starting state drawn from
// the environment Starter
func (p *Pendulum) Reset() (ts.TimeStep, error) {
	state := p.Start()
	if err := validateState(state); err != nil {
		return ts.TimeStep{}, err
	}

	p.lastStep = ts.New(ts.First, 0, p.discount, state, 0)
	return p.lastStep, nil
}

// Step takes one environmental step given action a and returns the next
// timestep and whether or not the episode has ended
func (p *Pendulum) Step(a int) (ts.TimeStep, bool, error) {
	if a < 0 || a >= NumActions {
		return ts.TimeStep{}, true, agent.NewConfigurationError("step",
			"illegal action \n\twant([0, %v)) \n\thave(%v)", NumActions, a)
	}
	if p.lastStep.Last() {
		return ts.TimeStep{}, true, agent.NewConfigurationError("step",
			"episode has ended, call Reset")
	}

	torque := (float64(a)/2 - 1) * TorqueBound
	nextState := nextState(p.lastStep.Observation, torque)
	reward := p.GetReward(p.lastStep.Observation, a, nextState)
	nextStep := ts.New(ts.Mid, reward, p.discount, nextState,
		p.lastStep.Number+1)

	p.End(&nextStep)

	p.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// ActionSpec returns the action specification of the environment
func (p *Pendulum) ActionSpec() env.Spec {
	return env.NewDiscreteActionSpec(NumActions)
}

// ObservationSpec returns the observation specification of the
// environment
func (p *Pendulum) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)
	lowerBound := mat.NewVecDense(ObservationDims, []float64{
		angleBounds.Min, speedBounds.Min})
	upperBound := mat.NewVecDense(ObservationDims, []float64{
		angleBounds.Max, speedBounds.Max})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// DiscountSpec returns the discounting specification of the environment
func (p *Pendulum) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{p.discount})
	upperBound := mat.NewVecDense(1, []float64{p.discount})

	return env.NewSpec(shape, env.Discount, lowerBound, upperBound,
		env.Continuous)
}

func (p *Pendulum) String() string {
	str := "Pendulum  |  theta: %v  |  theta dot: %v"
	state := p.lastStep.Observation
	return fmt.Sprintf(str, state.AtVec(0), state.AtVec(1))
}

// nextState returns the state following state when torque is applied.
// The velocity is updated before the angle (semi-implicit Euler).
func nextState(state mat.Vector, torque float64) *mat.VecDense {
	th, thdot := state.AtVec(0), state.AtVec(1)

	thdot += (-3*Gravity/(2*Length)*math.Sin(th+math.Pi) +
		3.0/(Mass*Length*Length)*torque) * dt
	thdot = floatutils.ClipInterval(thdot, speedBounds)

	th = floatutils.WrapInterval(th+thdot*dt, angleBounds)

	return mat.NewVecDense(ObservationDims, []float64{th, thdot})
}

// validateState checks that state is a legal Pendulum state
func validateState(state *mat.VecDense) error {
	if l := state.Len(); l != ObservationDims {
		return agent.NewConfigurationError("validateState", "illegal "+
			"state length \n\twant(%v) \n\thave(%v)", ObservationDims, l)
	}
	if th := state.AtVec(0); th < angleBounds.Min || th > angleBounds.Max {
		return agent.NewConfigurationError("validateState", "angle "+
			"%v ∉ [%v, %v]", th, angleBounds.Min, angleBounds.Max)
	}
	if thdot := state.AtVec(1); thdot < speedBounds.Min ||
		thdot > speedBounds.Max {
		return agent.NewConfigurationError("validateState", "speed "+
			"%v ∉ [%v, %v]", thdot, speedBounds.Min, speedBounds.Max)
	}
	return nil
}
