// Package experiment implements functionality for running an experiment
package experiment

import (
	"context"

	"github.com/samuelfneumann/rltrain/experiment/trackers"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments send each environment TimeStep to Trackers, which cache
// the data they track in RAM to be later saved to disk with Save. Run
// runs episodes until the step or episode limit is reached, the
// context is cancelled, or an error occurs. RunEpisode runs a single
// episode.
type Experiment interface {
	Run(ctx context.Context) error

	// RunEpisode returns whether the experiment has finished
	RunEpisode(ctx context.Context) (bool, error)

	// Save all tracked data to disk
	Save() error

	// Adds a new Tracker to the (possibly already running) experiment.
	// Useful if you want to track data only after a specified event.
	Register(t trackers.Tracker)
}
