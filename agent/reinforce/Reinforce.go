// Package reinforce implements the REINFORCE policy gradient algorithm
// with a learned state value baseline
package reinforce

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rltrain/agent"
	env "github.com/samuelfneumann/rltrain/environment"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

// Policy is a stochastic policy over discrete actions which is trained
// by policy gradient steps
type Policy interface {
	agent.Parameterized

	// Sample samples an action in state obs
	Sample(obs mat.Vector) (int, error)

	// Probabilities returns the probability of each action in each
	// row of states
	Probabilities(states *mat.Dense) (*mat.Dense, error)

	// Update takes a single gradient step on the loss
	// -mean(log π(actions[i]|states[i]) advantages[i])
	Update(states *mat.Dense, actions []int, advantages []float64) (float64,
		error)

	Features() int
	Outputs() int
}

// Reinforce implements the REINFORCE algorithm with a baseline. At the
// end of each episode the discounted return Gₜ of each timestep is
// computed, the baseline b is regressed towards Gₜ, and the policy
// takes a gradient step on:
//
//	-1/T Σₜ log π(Aₜ|Sₜ) Âₜ
//
// where Âₜ are the normalized advantages Gₜ - b(Sₜ), computed before the
// baseline is updated.
type Reinforce struct {
	policy   Policy
	baseline agent.Approximator
	buffer   *Buffer

	gamma     float64
	batchSize int

	prevStep    ts.TimeStep
	hasPrev     bool
	episodeDone bool

	// Statistics of the most recent update
	episodes     int
	episodeRet   float64
	policyLoss   float64
	baselineLoss float64

	eval bool
}

// New creates and returns a new Reinforce agent
func New(e env.Environment, config Config, policy Policy,
	baseline agent.Approximator) (*Reinforce, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}

	features := e.ObservationSpec().Len()
	if policy.Features() != features || baseline.Features() != features {
		return nil, agent.NewConfigurationError("new", "approximator "+
			"features do not match observations \n\twant(%v) "+
			"\n\thave(policy: %v, baseline: %v)", features,
			policy.Features(), baseline.Features())
	}
	if policy.Outputs() != e.ActionSpec().Actions() {
		return nil, agent.NewConfigurationError("new", "policy outputs "+
			"do not match actions \n\twant(%v) \n\thave(%v)",
			e.ActionSpec().Actions(), policy.Outputs())
	}
	if baseline.Outputs() != 1 {
		return nil, agent.NewConfigurationError("new", "baseline must "+
			"predict a single value \n\thave(%v)", baseline.Outputs())
	}

	return &Reinforce{
		policy:    policy,
		baseline:  baseline,
		buffer:    NewBuffer(features),
		gamma:     config.Gamma,
		batchSize: config.BatchSize,
	}, nil
}

// SelectAction samples an action from the policy. In evaluation mode
// the most probable action is selected.
func (r *Reinforce) SelectAction(t ts.TimeStep) (int, error) {
	if !r.eval {
		action, err := r.policy.Sample(t.Observation)
		return action, errors.Wrap(err, "selectAction")
	}

	obs := t.Observation
	state := mat.NewDense(1, obs.Len(), nil)
	state.SetRow(0, obs.RawVector().Data)
	probs, err := r.policy.Probabilities(state)
	if err != nil {
		return 0, errors.Wrap(err, "selectAction")
	}
	return floats.MaxIdx(probs.RawRowView(0)), nil
}

// ObserveFirst observes and records the first episodic timestep
func (r *Reinforce) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		return agent.NewConfigurationError("observeFirst", "timestep "+
			"%v is not the first of an episode", t.Number)
	}
	if r.eval {
		return nil
	}

	r.buffer = NewBuffer(r.buffer.obsSize)
	r.prevStep = t
	r.hasPrev = true
	r.episodeDone = false
	return nil
}

// Observe records that action was taken in the previously observed
// timestep and led to next
func (r *Reinforce) Observe(action int, next ts.TimeStep) error {
	if r.eval {
		return nil
	}
	if !r.hasPrev {
		return agent.NewConfigurationError("observe", "no previous "+
			"timestep, call ObserveFirst first")
	}

	obs := r.prevStep.Observation.RawVector().Data
	if err := r.buffer.Store(obs, action, next.Reward); err != nil {
		return errors.Wrap(err, "observe")
	}

	r.prevStep = next
	r.episodeDone = next.Last()
	return nil
}

// Step updates the baseline and policy once an episode has ended
func (r *Reinforce) Step() error {
	if r.eval || !r.episodeDone || r.buffer.Len() == 0 {
		return nil
	}
	r.episodeDone = false

	r.episodeRet = r.buffer.Return()
	states, actions, returns := r.buffer.Get(r.gamma)

	values, err := r.baseline.Predict(states)
	if err != nil {
		return errors.Wrap(err, "step")
	}
	advantages := make([]float64, len(returns))
	floats.SubTo(advantages, returns, mat.Col(nil, 0, values))
	advantages = NormalizeAdvantages(advantages)

	baselineLoss, err := r.updateBaseline(states, returns)
	if err != nil {
		return errors.Wrap(err, "step")
	}
	policyLoss, err := r.updatePolicy(states, actions, advantages)
	if err != nil {
		return errors.Wrap(err, "step")
	}

	r.episodes++
	r.baselineLoss = baselineLoss
	r.policyLoss = policyLoss
	return nil
}

// updateBaseline regresses the baseline towards returns in batches of
// at most batchSize timesteps, returning the mean loss
func (r *Reinforce) updateBaseline(states *mat.Dense,
	returns []float64) (float64, error) {
	var loss float64
	chunks := 0
	err := r.chunks(len(returns), func(start, end int) error {
		outputs := make([]int, end-start)
		chunkLoss, err := r.baseline.Update(rowSlice(states, start, end),
			outputs, returns[start:end])
		loss += chunkLoss
		chunks++
		return err
	})
	return loss / float64(chunks), err
}

// updatePolicy takes policy gradient steps in batches of at most
// batchSize timesteps, returning the mean loss
func (r *Reinforce) updatePolicy(states *mat.Dense, actions []int,
	advantages []float64) (float64, error) {
	var loss float64
	chunks := 0
	err := r.chunks(len(actions), func(start, end int) error {
		chunkLoss, err := r.policy.Update(rowSlice(states, start, end),
			actions[start:end], advantages[start:end])
		loss += chunkLoss
		chunks++
		return err
	})
	return loss / float64(chunks), err
}

// chunks calls f on consecutive index ranges [start, end) covering
// [0, n), each of length at most batchSize
func (r *Reinforce) chunks(n int, f func(start, end int) error) error {
	for start := 0; start < n; start += r.batchSize {
		end := start + r.batchSize
		if end > n {
			end = n
		}
		if err := f(start, end); err != nil {
			return err
		}
	}
	return nil
}

func rowSlice(m *mat.Dense, start, end int) *mat.Dense {
	_, c := m.Dims()
	return mat.DenseCopyOf(m.Slice(start, end, 0, c))
}

// Report returns statistics of the most recent update
func (r *Reinforce) Report() map[string]interface{} {
	return map[string]interface{}{
		"episodes":      r.episodes,
		"return":        r.episodeRet,
		"policy_loss":   r.policyLoss,
		"baseline_loss": r.baselineLoss,
	}
}

// Save saves the parameters of the policy
func (r *Reinforce) Save(filename string) error {
	return agent.SaveParameters(filename, r.policy)
}

// Load loads policy parameters saved with Save
func (r *Reinforce) Load(filename string) error {
	return agent.LoadParameters(filename, r.policy)
}

// Eval sets the agent into evaluation mode
func (r *Reinforce) Eval() {
	r.eval = true
}

// Train sets the agent into training mode
func (r *Reinforce) Train() {
	r.eval = false
}

// IsEval indicates whether the agent is in evaluation mode
func (r *Reinforce) IsEval() bool {
	return r.eval
}

func (r *Reinforce) String() string {
	return fmt.Sprintf("Reinforce  |  Episodes: %v  |  Return: %v",
		r.episodes, r.episodeRet)
}
