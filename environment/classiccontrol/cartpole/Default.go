package cartpole

import (
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

// StartBound is the bound (+/-) of every feature of starting states
const StartBound float64 = 0.05

// NewStarter returns the standard Cartpole Starter, which samples each
// state feature uniformly from [-StartBound, StartBound]
func NewStarter(seed uint64) env.UniformStarter {
	bounds := make([]r1.Interval, ObservationDims)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: -StartBound, Max: StartBound}
	}
	return env.NewUniformStarter(bounds, seed)
}

// NewDefault returns the standard Cartpole balance environment: starting
// states drawn by NewStarter, the Balance task, and episodes cut off
// after episodeSteps steps.
func NewDefault(episodeSteps int, discount float64,
	seed uint64) (*Cartpole, ts.TimeStep, error) {
	task := NewBalance(NewStarter(seed), episodeSteps, FailAngle,
		PositionLimit)
	return New(task, discount)
}
