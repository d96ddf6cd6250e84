package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (s, a, r, s', done) tuple. Done is true only
// when NextState is terminal; an episode cut off by a step limit is not
// done since its last state can still be bootstrapped from.
type Transition struct {
	State     *mat.VecDense
	Action    int
	Reward    float64
	NextState *mat.VecDense
	Done      bool
}

// NewTransition constructs the transition from step to next when
// action was taken in step.
func NewTransition(step TimeStep, action int, next TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    next.Reward,
		NextState: next.Observation,
		Done:      next.Terminal(),
	}
}

// DoneMask returns 1 if the transition ends in a terminal state and 0
// otherwise.
func (t Transition) DoneMask() float64 {
	if t.Done {
		return 1.0
	}
	return 0.0
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | Action: %v  |  Reward: %.2f  |  "+
		"Done: %v", t.Action, t.Reward, t.Done)
}
