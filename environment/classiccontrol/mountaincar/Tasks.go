package mountaincar

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

// GoalPosition is the commonly used goal position
const GoalPosition float64 = 0.5

// Goal implements the classic control task of reaching a goal on
// Mountain Car. Since the car is underpowered, it must rock back and
// forth from hill to hill until it reaches the goal.
//
// Rewards are -1 on each timestep and 0 for the action which
// transitions the car to the goal.
//
// Episodes terminate when the car reaches the goal and are cut off
// with a Timeout after a step limit.
type Goal struct {
	env.Starter
	goalEnder *env.FunctionEnder
	stepEnder *env.StepLimit
	goalX     float64
}

// NewGoal creates and returns a new Goal task given a Starter, which
// determines the starting states; the maximum number of episode
// steps; and the goal x position.
func NewGoal(s env.Starter, episodeSteps int, goalX float64) *Goal {
	g := &Goal{
		Starter:   s,
		stepEnder: env.NewStepLimit(episodeSteps),
		goalX:     goalX,
	}
	g.goalEnder = env.NewFunctionEnder(g.AtGoal, ts.TerminalStateReached)
	return g
}

// AtGoal returns whether state is at or past the goal
func (g *Goal) AtGoal(state *mat.VecDense) bool {
	return state.AtVec(0) >= g.goalX
}

// GetReward returns the reward for a given state and action, resulting
// in a given next state
func (g *Goal) GetReward(_ *mat.VecDense, _ int,
	next *mat.VecDense) float64 {
	if g.AtGoal(next) {
		return 0.0
	}
	return -1.0
}

// End determines if a timestep is the last timestep in the episode.
// If so, it changes the TimeStep's StepType to timestep.Last.
func (g *Goal) End(t *ts.TimeStep) bool {
	if end := g.goalEnder.End(t); end {
		return true
	}
	return g.stepEnder.End(t)
}

// EpisodeSteps returns the step limit of episodes
func (g *Goal) EpisodeSteps() int {
	return g.stepEnder.EpisodeSteps()
}

// NewStarter returns the standard Mountain Car Starter, which starts
// the car at rest at a position drawn uniformly from [-0.6, -0.4]
func NewStarter(seed uint64) env.UniformStarter {
	bounds := []r1.Interval{{Min: -0.6, Max: -0.4}, {Min: 0, Max: 0}}
	return env.NewUniformStarter(bounds, seed)
}

// NewDefault returns the standard Mountain Car environment: starting
// states drawn by NewStarter, the Goal task with GoalPosition, and
// episodes cut off after episodeSteps steps.
func NewDefault(episodeSteps int, discount float64,
	seed uint64) (*MountainCar, ts.TimeStep, error) {
	return New(NewGoal(NewStarter(seed), episodeSteps, GoalPosition),
		discount)
}
