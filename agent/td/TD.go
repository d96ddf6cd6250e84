// Package td implements semi-gradient TD(0) prediction of the state
// value function of a uniformly random policy
package td

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

// TD implements semi-gradient TD(0). After each transition (S, R, S')
// the state value function v takes a gradient step on
//
//	(R + γ v(S') - v(S))²
//
// treating the bootstrapped target R + γ v(S') as a constant. The value
// of terminal states is 0. Actions are selected uniformly at random.
type TD struct {
	value      agent.Approximator
	rng        *rand.Rand
	numActions int
	gamma      float64

	prevStep   ts.TimeStep
	hasPrev    bool
	transition *ts.Transition // Waiting to be learned from

	updates int
	loss    float64
	tdError float64

	eval bool
}

// New creates and returns a new TD agent learning the state value
// function value
func New(e env.Environment, config Config, value agent.Approximator,
	seed uint64) (*TD, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}
	if value.Features() != e.ObservationSpec().Len() {
		return nil, agent.NewConfigurationError("new", "value function "+
			"features do not match observations \n\twant(%v) \n\thave(%v)",
			e.ObservationSpec().Len(), value.Features())
	}
	if value.Outputs() != 1 {
		return nil, agent.NewConfigurationError("new", "value function "+
			"must predict a single value \n\thave(%v)", value.Outputs())
	}

	return &TD{
		value:      value,
		rng:        rand.New(rand.NewSource(seed)),
		numActions: e.ActionSpec().Actions(),
		gamma:      config.Gamma,
	}, nil
}

// SelectAction selects an action uniformly at random
func (t *TD) SelectAction(ts.TimeStep) (int, error) {
	return t.rng.Intn(t.numActions), nil
}

// ObserveFirst observes and records the first episodic timestep
func (t *TD) ObserveFirst(step ts.TimeStep) error {
	if !step.First() {
		return agent.NewConfigurationError("observeFirst", "timestep "+
			"%v is not the first of an episode", step.Number)
	}
	if t.eval {
		return nil
	}
	t.prevStep = step
	t.hasPrev = true
	t.transition = nil
	return nil
}

// Observe records that action was taken in the previously observed
// timestep and led to next
func (t *TD) Observe(action int, next ts.TimeStep) error {
	if t.eval {
		return nil
	}
	if !t.hasPrev {
		return agent.NewConfigurationError("observe", "no previous "+
			"timestep, call ObserveFirst first")
	}

	transition := ts.NewTransition(t.prevStep, action, next)
	t.transition = &transition
	t.prevStep = next
	return nil
}

// Step updates the value function on the most recently observed
// transition
func (t *TD) Step() error {
	if t.eval || t.transition == nil {
		return nil
	}
	tr := t.transition
	t.transition = nil

	states := mat.NewDense(2, tr.State.Len(), nil)
	states.SetRow(0, tr.State.RawVector().Data)
	states.SetRow(1, tr.NextState.RawVector().Data)
	values, err := t.value.Predict(states)
	if err != nil {
		return errors.Wrap(err, "step")
	}

	target := tr.Reward + (1-tr.DoneMask())*t.gamma*values.At(1, 0)
	state := mat.NewDense(1, tr.State.Len(), nil)
	state.SetRow(0, tr.State.RawVector().Data)
	loss, err := t.value.Update(state, []int{0}, []float64{target})
	if err != nil {
		return errors.Wrap(err, "step")
	}

	t.updates++
	t.loss = loss
	t.tdError = target - values.At(0, 0)
	return nil
}

// Values returns the predicted value of each row of states
func (t *TD) Values(states *mat.Dense) ([]float64, error) {
	values, err := t.value.Predict(states)
	if err != nil {
		return nil, errors.Wrap(err, "values")
	}
	return mat.Col(nil, 0, values), nil
}

// Report returns statistics of the most recent update
func (t *TD) Report() map[string]interface{} {
	return map[string]interface{}{
		"updates":  t.updates,
		"loss":     t.loss,
		"td_error": t.tdError,
	}
}

// Save saves the parameters of the value function
func (t *TD) Save(filename string) error {
	return agent.SaveParameters(filename, t.value)
}

// Eval sets the agent into evaluation mode
func (t *TD) Eval() {
	t.eval = true
}

// Train sets the agent into training mode
func (t *TD) Train() {
	t.eval = false
}

// IsEval indicates whether the agent is in evaluation mode
func (t *TD) IsEval() bool {
	return t.eval
}

func (t *TD) String() string {
	return fmt.Sprintf("TD(0)  |  Updates: %v  |  TD Error: %.4f",
		t.updates, t.tdError)
}
