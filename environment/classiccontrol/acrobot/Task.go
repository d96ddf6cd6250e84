package acrobot

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

const (
	// GoalHeight is the classic control goal: the tip must swing one
	// link length above the fixed base
	GoalHeight float64 = LinkLength1

	// StartBound is the bound (+/-) of every feature of starting states
	StartBound float64 = 0.1
)

// SwingUp implements the classic control Acrobot task where the
// agent must swing the tip of the second link above some set
// height.
//
// A reward of -1 is given on all timesteps except for the timestep
// which transitions the tip above the goal height, on which the reward
// is 0. Episodes terminate when the tip swings above the goal height
// and are cut off with a Timeout after a step limit.
type SwingUp struct {
	env.Starter
	stepEnder  *env.StepLimit
	goalEnder  *env.FunctionEnder
	goalHeight float64
}

// NewSwingUp returns a new SwingUp task with start state distribution
// defined by s, episodic step limit episodeSteps, and goal height
// goalHeight
func NewSwingUp(s env.Starter, episodeSteps int,
	goalHeight float64) *SwingUp {
	task := &SwingUp{
		Starter:    s,
		stepEnder:  env.NewStepLimit(episodeSteps),
		goalHeight: goalHeight,
	}
	task.goalEnder = env.NewFunctionEnder(task.AtGoal,
		ts.TerminalStateReached)
	return task
}

// AtGoal returns whether the tip of the acrobot is above the goal
// height in state
func (s *SwingUp) AtGoal(state *mat.VecDense) bool {
	theta1, theta2 := state.AtVec(0), state.AtVec(1)
	return -math.Cos(theta1)-math.Cos(theta1+theta2) > s.goalHeight
}

// End determines if a timestep is the last timestep in the episode
func (s *SwingUp) End(t *ts.TimeStep) bool {
	if ended := s.goalEnder.End(t); ended {
		return true
	}
	return s.stepEnder.End(t)
}

// GetReward returns the reward for a given state and action, resulting
// in a given next state
func (s *SwingUp) GetReward(_ *mat.VecDense, _ int,
	next *mat.VecDense) float64 {
	if s.AtGoal(next) {
		return 0.0
	}
	return -1.0
}

// EpisodeSteps returns the step limit of episodes
func (s *SwingUp) EpisodeSteps() int {
	return s.stepEnder.EpisodeSteps()
}

// NewDefault returns the standard Acrobot environment: every starting
// state feature drawn uniformly from [-StartBound, StartBound], the
// SwingUp task with GoalHeight, and episodes cut off after
// episodeSteps steps.
func NewDefault(episodeSteps int, discount float64,
	seed uint64) (*Acrobot, ts.TimeStep, error) {
	bounds := make([]r1.Interval, ObservationDims)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: -StartBound, Max: StartBound}
	}
	starter := env.NewUniformStarter(bounds, seed)

	return New(NewSwingUp(starter, episodeSteps, GoalHeight), discount)
}
