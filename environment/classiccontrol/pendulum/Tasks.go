package pendulum

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

// SwingUp implements the Pendulum swing up task. The reward is the
// cosine of the pendulum angle after each action, so that it is
// largest when the pendulum is upright. Episodes never terminate and
// are cut off with a Timeout after a step limit.
type SwingUp struct {
	env.Starter
	*env.StepLimit
}

// NewSwingUp returns a new SwingUp task
func NewSwingUp(s env.Starter, episodeSteps int) *SwingUp {
	return &SwingUp{s, env.NewStepLimit(episodeSteps)}
}

// GetReward returns the reward for a given state and action, resulting
// in a given next state
func (s *SwingUp) GetReward(_ *mat.VecDense, _ int,
	next *mat.VecDense) float64 {
	return math.Cos(next.AtVec(0))
}

// NewDefault returns the standard Pendulum environment: starting angles
// drawn uniformly from [-π, π] and speeds from [-1, 1], the SwingUp
// task, and episodes cut off after episodeSteps steps.
func NewDefault(episodeSteps int, discount float64,
	seed uint64) (*Pendulum, ts.TimeStep, error) {
	bounds := []r1.Interval{angleBounds, {Min: -1, Max: 1}}
	starter := env.NewUniformStarter(bounds, seed)

	return New(NewSwingUp(starter, episodeSteps), discount)
}
