// Package deepq implements the double deep Q-learning algorithm with
// experience replay and target networks
package deepq

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	"github.com/samuelfneumann/rltrain/expreplay"
	"github.com/samuelfneumann/rltrain/targetsync"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

// DeepQ implements the double deep Q-learning algorithm. The online
// action value function is trained on batches sampled from an
// experience replay buffer. Update targets are computed by the target
// action value function at the action the online function deems best
// in the next state:
//
//	y = r + γ (1 - done) Q_target(s', argmax_a' Q_online(s', a'))
//
// The target function only changes when the online parameters are
// synchronized into it.
type DeepQ struct {
	online agent.Approximator
	target agent.Approximator

	replay *expreplay.ReplayBuffer
	sync   targetsync.Schedule

	// Exploration
	behaviour *agent.EGreedy
	evalPol   *agent.EGreedy
	epsilon   *agent.LinearSchedule

	gamma         float64
	batchSize     int
	minBufferSize int
	trainEvery    int

	// Track previous step and action to add transitions to the replay
	// buffer
	prevStep ts.TimeStep
	hasPrev  bool

	steps   int // Environment steps taken in training mode
	updates int
	syncs   int
	trained bool
	loss    float64
	tdError float64

	eval bool // Whether or not in evaluation mode
}

// New creates and returns a new DeepQ agent with action value functions
// online and target. The parameters of online are copied into target.
func New(e env.Environment, config Config, online,
	target agent.Approximator, seed uint64) (*DeepQ, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}

	features := e.ObservationSpec().Len()
	actions := e.ActionSpec().Actions()
	if e.ActionSpec().Cardinality != env.Discrete {
		return nil, agent.NewConfigurationError("new", "cannot use "+
			"non-discrete actions")
	}
	for _, approx := range []agent.Approximator{online, target} {
		if approx.Features() != features {
			return nil, agent.NewConfigurationError("new", "approximator "+
				"features do not match observations \n\twant(%v) "+
				"\n\thave(%v)", features, approx.Features())
		}
		if approx.Outputs() != actions {
			return nil, agent.NewConfigurationError("new", "approximator "+
				"outputs do not match actions \n\twant(%v) \n\thave(%v)",
				actions, approx.Outputs())
		}
	}

	replay, err := expreplay.New(config.Capacity, features, seed)
	if err != nil {
		return nil, errors.Wrap(err, "new")
	}
	sync, err := targetsync.NewSchedule(config.TargetSyncPeriod, config.Tau)
	if err != nil {
		return nil, errors.Wrap(err, "new")
	}
	schedule, err := agent.NewLinearSchedule(config.EpsilonStart,
		config.EpsilonMin, config.EpsilonDecaySteps)
	if err != nil {
		return nil, errors.Wrap(err, "new")
	}
	behaviour, err := agent.NewEGreedy(config.EpsilonStart, seed+1)
	if err != nil {
		return nil, errors.Wrap(err, "new")
	}
	evalPol, err := agent.NewEGreedy(config.EvalEpsilon, seed+2)
	if err != nil {
		return nil, errors.Wrap(err, "new")
	}

	// Both functions start out identical
	if err := targetsync.Sync(online, target, 1.0); err != nil {
		return nil, errors.Wrap(err, "new")
	}

	return &DeepQ{
		online:        online,
		target:        target,
		replay:        replay,
		sync:          sync,
		behaviour:     behaviour,
		evalPol:       evalPol,
		epsilon:       schedule,
		gamma:         config.Gamma,
		batchSize:     config.BatchSize,
		minBufferSize: config.MinBufferSize,
		trainEvery:    config.TrainEvery,
	}, nil
}

// TrainStep takes a single gradient step on the online action value
// function using batch b. The mean squared TD error before the update
// and the TD error of each transition are returned.
func (d *DeepQ) TrainStep(b expreplay.Batch) (float64, []float64, error) {
	n := b.Len()
	if err := d.checkBatch(b); err != nil {
		return 0, nil, err
	}

	nextOnline, err := d.online.Predict(b.NextStates)
	if err != nil {
		return 0, nil, errors.Wrap(err, "trainStep")
	}
	nextTarget, err := d.target.Predict(b.NextStates)
	if err != nil {
		return 0, nil, errors.Wrap(err, "trainStep")
	}
	current, err := d.online.Predict(b.States)
	if err != nil {
		return 0, nil, errors.Wrap(err, "trainStep")
	}

	targets := make([]float64, n)
	tdError := make([]float64, n)
	for i := 0; i < n; i++ {
		// The online function selects the next action and the target
		// function evaluates it
		nextAction := floats.MaxIdx(nextOnline.RawRowView(i))
		nextValue := nextTarget.At(i, nextAction)

		targets[i] = b.Rewards[i] + (1-b.Dones[i])*d.gamma*nextValue
		tdError[i] = targets[i] - current.At(i, b.Actions[i])
	}

	loss, err := d.online.Update(b.States, b.Actions, targets)
	if err != nil {
		return 0, nil, errors.Wrap(err, "trainStep")
	}
	return loss, tdError, nil
}

// checkBatch ensures all fields of a batch are consistent with each
// other and with the action value functions
func (d *DeepQ) checkBatch(b expreplay.Batch) error {
	n := b.Len()
	if n == 0 {
		return agent.NewConfigurationError("trainStep", "empty batch")
	}
	if len(b.Rewards) != n || len(b.Dones) != n {
		return agent.NewConfigurationError("trainStep", "batch fields "+
			"differ in length \n\tactions(%v) \n\trewards(%v) \n\tdones(%v)",
			n, len(b.Rewards), len(b.Dones))
	}
	for _, states := range []*mat.Dense{b.States, b.NextStates} {
		if states == nil {
			return agent.NewConfigurationError("trainStep", "missing states")
		}
		r, c := states.Dims()
		if r != n || c != d.online.Features() {
			return agent.NewConfigurationError("trainStep", "invalid "+
				"state shape \n\twant(%v x %v) \n\thave(%v x %v)", n,
				d.online.Features(), r, c)
		}
	}
	for _, a := range b.Actions {
		if a < 0 || a >= d.online.Outputs() {
			return agent.NewConfigurationError("trainStep", "action out "+
				"of range \n\twant([0, %v)) \n\thave(%v)", d.online.Outputs(),
				a)
		}
	}
	return nil
}

// SelectAction selects an action ε-greedily with respect to the online
// action values. In training mode ε follows the linear schedule, in
// evaluation mode ε is fixed.
func (d *DeepQ) SelectAction(t ts.TimeStep) (int, error) {
	obs := t.Observation
	state := mat.NewDense(1, obs.Len(), nil)
	state.SetRow(0, obs.RawVector().Data)

	values, err := d.online.Predict(state)
	if err != nil {
		return 0, errors.Wrap(err, "selectAction")
	}

	if d.eval {
		return d.evalPol.Select(values.RawRowView(0)), nil
	}
	return d.behaviour.Select(values.RawRowView(0)), nil
}

// ObserveFirst observes and records the first episodic timestep.
// Evaluation episodes are not recorded so that training episodes can be
// resumed after evaluation.
func (d *DeepQ) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		return agent.NewConfigurationError("observeFirst", "timestep "+
			"%v is not the first of an episode", t.Number)
	}
	if d.eval {
		return nil
	}
	d.prevStep = t
	d.hasPrev = true
	return nil
}

// Observe records that action was taken in the previously observed
// timestep and led to next, storing the transition in the replay
// buffer. Nothing is recorded in evaluation mode.
func (d *DeepQ) Observe(action int, next ts.TimeStep) error {
	if d.eval {
		return nil
	}
	if !d.hasPrev {
		return agent.NewConfigurationError("observe", "no previous "+
			"timestep, call ObserveFirst first")
	}

	transition := ts.NewTransition(d.prevStep, action, next)
	if err := d.replay.Store(transition); err != nil {
		return errors.Wrap(err, "observe")
	}
	d.prevStep = next
	return nil
}

// Step performs the updates due after a single environment step. The
// target function is synchronized on the sync schedule. Once the
// replay buffer holds more than the minimum number of transitions, the
// online function is updated every trainEvery steps and ε is annealed.
func (d *DeepQ) Step() error {
	if d.eval {
		return nil
	}
	step := d.steps
	d.steps++
	d.trained = false

	synced, err := d.sync.Apply(step, d.online, d.target)
	if err != nil {
		return errors.Wrap(err, "step")
	}
	if synced {
		d.syncs++
	}

	if d.replay.Len() <= d.minBufferSize || step%d.trainEvery != 0 {
		return nil
	}

	d.behaviour.SetEpsilon(d.epsilon.Epsilon(step))

	batch, err := d.replay.Sample(d.batchSize)
	if err != nil {
		return errors.Wrap(err, "step")
	}
	loss, tdError, err := d.TrainStep(batch)
	if err != nil {
		return errors.Wrap(err, "step")
	}

	d.updates++
	d.trained = true
	d.loss = loss
	d.tdError = floats.Sum(tdError) / float64(len(tdError))
	return nil
}

// Trained returns whether the most recent call to Step updated the
// online function
func (d *DeepQ) Trained() bool {
	return d.trained
}

// Report returns statistics of the most recent update
func (d *DeepQ) Report() map[string]interface{} {
	return map[string]interface{}{
		"step":     d.steps,
		"updates":  d.updates,
		"syncs":    d.syncs,
		"loss":     d.loss,
		"td_error": d.tdError,
		"epsilon":  d.behaviour.Epsilon(),
		"buffer":   d.replay.Len(),
	}
}

// Save saves the parameters of the online action value function
func (d *DeepQ) Save(filename string) error {
	return agent.SaveParameters(filename, d.online)
}

// Load loads parameters saved with Save into both action value
// functions
func (d *DeepQ) Load(filename string) error {
	if err := agent.LoadParameters(filename, d.online); err != nil {
		return err
	}
	return targetsync.Sync(d.online, d.target, 1.0)
}

// Eval sets the agent into evaluation mode
func (d *DeepQ) Eval() {
	d.eval = true
}

// Train sets the agent into training mode
func (d *DeepQ) Train() {
	d.eval = false
}

// IsEval indicates whether the agent is in evaluation mode
func (d *DeepQ) IsEval() bool {
	return d.eval
}

func (d *DeepQ) String() string {
	return fmt.Sprintf("DeepQ  |  Steps: %v  |  Updates: %v  |  ε: %.3f",
		d.steps, d.updates, d.behaviour.Epsilon())
}
