// Package agent defines the interfaces shared by all agents along with
// the pieces they have in common: exploration schedules, action
// selection, and configuration errors.
package agent

import (
	"github.com/samuelfneumann/rltrain/timestep"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single update to the learner
	Step() error

	// Observe records that an action lead to some timestep
	Observe(action int, nextObs timestep.TimeStep) error

	// ObserveFirst records the first timestep in an episode
	ObserveFirst(timestep.TimeStep) error
}

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. In evaluation mode a
// policy acts (near) greedily and the agent does not learn.
type Policy interface {
	SelectAction(t timestep.TimeStep) (int, error)
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Reporter is an Agent which reports statistics about its most recent
// update, such as losses or the current exploration rate.
type Reporter interface {
	Report() map[string]interface{}
}

// Saver is an Agent which can write its learned parameters to disk
type Saver interface {
	Save(filename string) error
}
