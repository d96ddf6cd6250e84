package checkpointer

import (
	"github.com/samuelfneumann/rltrain/experiment/trackers"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

// aboveMean checkpoints at the end of each episode whose return exceeds
// the mean return over all episodes so far, including itself.
type aboveMean struct {
	object   Saveable
	filename func() string

	currentReturn float64
	mean          *trackers.MovingAverage
}

// NewAboveMean returns a checkpointer that saves object whenever an
// episode return beats the running mean of episode returns.
func NewAboveMean(object Saveable, filename func() string) Checkpointer {
	return &aboveMean{
		object:   object,
		filename: filename,
		mean:     trackers.NewMovingAverage(0),
	}
}

// Checkpoint accumulates the return of the current episode and saves
// the tracked object at the end of the episode if it beats the mean.
func (a *aboveMean) Checkpoint(t ts.TimeStep) error {
	a.currentReturn += t.Reward
	if !t.Last() {
		return nil
	}

	ret := a.currentReturn
	a.currentReturn = 0
	if ret > a.mean.Add(ret) {
		return a.object.Save(a.filename())
	}
	return nil
}
