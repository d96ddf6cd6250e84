// Package randomwalk implements a long one dimensional random walk in
// which each step jumps a random number of states
package randomwalk

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

const (
	NumStates  int = 1000
	NumActions int = 2
	MaxJump    int = 100 // jumps are drawn from [0, MaxJump)

	LeftReward  float64 = -10
	RightReward float64 = 10
	StepReward  float64 = -1
)

// RandomWalk implements a random walk over the states
// {0, 1, ..., n-1}. Episodes start in state n/2. Action 0 jumps right
// and action 1 jumps left by a number of states drawn uniformly from
// [0, MaxJump). Jumps past either end stop at that end.
//
// Reaching state 0 terminates the episode with a reward of LeftReward,
// reaching state n-1 terminates the episode with a reward of
// RightReward, and every other step has a reward of StepReward.
//
// Observations are 1-dimensional vectors holding the state index.
type RandomWalk struct {
	env.Ender
	numStates int
	rng       *rand.Rand
	discount  float64
	lastStep  ts.TimeStep
}

// New returns a new RandomWalk with numStates states
func New(numStates int, discount float64, seed uint64) (*RandomWalk,
	ts.TimeStep, error) {
	if numStates < 3 {
		return nil, ts.TimeStep{}, agent.NewConfigurationError("new",
			"random walk needs at least 3 states \n\thave(%v)", numStates)
	}

	last := float64(numStates - 1)
	ender := env.NewFunctionEnder(func(obs *mat.VecDense) bool {
		s := obs.AtVec(0)
		return s == 0 || s == last
	}, ts.TerminalStateReached)

	r := &RandomWalk{
		Ender:     ender,
		numStates: numStates,
		rng:       rand.New(rand.NewSource(seed)),
		discount:  discount,
	}
	step, err := r.Reset()
	return r, step, err
}

// Reset resets the environment to the middle state
func (r *RandomWalk) Reset() (ts.TimeStep, error) {
	obs := mat.NewVecDense(1, []float64{float64(r.numStates / 2)})
	r.lastStep = ts.New(ts.First, 0, r.discount, obs, 0)
	return r.lastStep, nil
}

// Step takes one environmental step given action a and returns the next
// timestep and a bool indicating whether or not the episode has ended
func (r *RandomWalk) Step(a int) (ts.TimeStep, bool, error) {
	if a < 0 || a >= NumActions {
		return ts.TimeStep{}, true, agent.NewConfigurationError("step",
			"illegal action \n\twant([0, %v)) \n\thave(%v)", NumActions, a)
	}
	if r.lastStep.Last() {
		return ts.TimeStep{}, true, agent.NewConfigurationError("step",
			"episode has ended, call Reset")
	}

	jump := r.rng.Intn(MaxJump)
	if a == 1 {
		jump = -jump
	}
	state := r.State() + jump
	if state < 0 {
		state = 0
	} else if state > r.numStates-1 {
		state = r.numStates - 1
	}

	obs := mat.NewVecDense(1, []float64{float64(state)})
	next := ts.New(ts.Mid, r.reward(state), r.discount, obs,
		r.lastStep.Number+1)
	r.End(&next)

	r.lastStep = next
	return next, next.Last(), nil
}

func (r *RandomWalk) reward(state int) float64 {
	switch state {
	case 0:
		return LeftReward
	case r.numStates - 1:
		return RightReward
	default:
		return StepReward
	}
}

// State returns the current state index
func (r *RandomWalk) State() int {
	return int(r.lastStep.Observation.AtVec(0))
}

// NumStates returns the number of states in the walk
func (r *RandomWalk) NumStates() int {
	return r.numStates
}

// ActionSpec returns the action specification of the environment
func (r *RandomWalk) ActionSpec() env.Spec {
	return env.NewDiscreteActionSpec(NumActions)
}

// ObservationSpec returns the observation specification of the
// environment
func (r *RandomWalk) ObservationSpec() env.Spec {
	return env.NewSpec(
		mat.NewVecDense(1, nil),
		env.Observation,
		mat.NewVecDense(1, []float64{0}),
		mat.NewVecDense(1, []float64{float64(r.numStates - 1)}),
		env.Discrete,
	)
}

// DiscountSpec returns the discounting specification of the environment
func (r *RandomWalk) DiscountSpec() env.Spec {
	return env.NewSpec(
		mat.NewVecDense(1, nil),
		env.Discount,
		mat.NewVecDense(1, []float64{r.discount}),
		mat.NewVecDense(1, []float64{r.discount}),
		env.Continuous,
	)
}

func (r *RandomWalk) String() string {
	return fmt.Sprintf("RandomWalk  |  State: %v/%v", r.State(),
		r.numStates-1)
}
