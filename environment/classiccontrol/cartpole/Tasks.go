package cartpole

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

const (
	FailAngle     float64 = 12 * 2 * math.Pi / 360
	PositionLimit float64 = 2.4
)

// Balance implements the classic control Cartpole Balance task. In this
// Task, the goal of the agent is to balance the pole on the cart in
// an upright position for as long as possible.
//
// The reward is +1 for every timestep, including the step on which the
// pole falls.
//
// Episodes terminate when the pole angle leaves [-failAngle, failAngle]
// or the cart position leaves [-positionLimit, positionLimit]. Episodes
// are cut off with a Timeout after a step limit.
type Balance struct {
	env.Starter
	stepLimiter  *env.StepLimit
	stateLimiter *env.IntervalLimit
}

// NewBalance creates and returns a new Balance task
func NewBalance(s env.Starter, episodeSteps int, failAngle,
	positionLimit float64) *Balance {
	stepLimiter := env.NewStepLimit(episodeSteps)

	legal := []r1.Interval{
		{Min: -positionLimit, Max: positionLimit},
		{Min: -failAngle, Max: failAngle},
	}
	stateLimiter := env.NewIntervalLimit(legal, []int{0, 2},
		ts.TerminalStateReached)

	return &Balance{s, stepLimiter, stateLimiter}
}

// End checks if a TimeStep is the last in an episode. If so, it adjusts
// the TimeStep's StepType to timestep.Last and returns true. Otherwise,
// the function does not adjust the TimeStep and returns false.
func (b *Balance) End(t *ts.TimeStep) bool {
	if end := b.stateLimiter.End(t); end {
		return true
	}
	return b.stepLimiter.End(t)
}

// GetReward returns the reward for an action taken in some state,
// resulting in a transition to the next state nextState.
func (b *Balance) GetReward(_ *mat.VecDense, _ int,
	_ *mat.VecDense) float64 {
	return 1.0
}

// EpisodeSteps returns the step limit of episodes
func (b *Balance) EpisodeSteps() int {
	return b.stepLimiter.EpisodeSteps()
}
