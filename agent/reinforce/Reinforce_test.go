package reinforce

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/rltrain/network"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

var _ Policy = &network.CategoricalMLP{}

func TestDiscountedReturns(t *testing.T) {
	assert.InDeltaSlice(t, []float64{1.75, 1.5, 1},
		DiscountedReturns([]float64{1, 1, 1}, 0.5), 1e-12)
	assert.InDeltaSlice(t, []float64{1 + 0.9*(-2+0.9*3), -2 + 0.9*3, 3},
		DiscountedReturns([]float64{1, -2, 3}, 0.9), 1e-12)
	assert.Empty(t, DiscountedReturns(nil, 0.9))
}

func TestNormalizeAdvantages(t *testing.T) {
	norm := math.Sqrt(14)
	assert.InDeltaSlice(t, []float64{-1 / norm, 0, 1 / norm},
		NormalizeAdvantages([]float64{1, 2, 3}), 1e-12)

	// Zero norms are not scaled
	assert.Equal(t, []float64{0, 0}, NormalizeAdvantages([]float64{0, 0}))
	assert.Empty(t, NormalizeAdvantages(nil))
}

func TestBuffer(t *testing.T) {
	b := NewBuffer(2)
	require.NoError(t, b.Store([]float64{1, 2}, 0, 1))
	require.NoError(t, b.Store([]float64{3, 4}, 1, 2))
	assert.True(t, agent.IsConfigurationError(b.Store([]float64{1}, 0, 0)))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 3.0, b.Return())

	states, actions, returns := b.Get(0.5)
	assert.Equal(t, []float64{1, 2}, states.RawRowView(0))
	assert.Equal(t, []float64{3, 4}, states.RawRowView(1))
	assert.Equal(t, []int{0, 1}, actions)
	assert.InDeltaSlice(t, []float64{2, 2}, returns, 1e-12)
	assert.Equal(t, 0, b.Len())
}

// constantBaseline predicts the same value for every state and records
// its update targets
type constantBaseline struct {
	value   float64
	targets []float64
}

func (c *constantBaseline) Predict(states *mat.Dense) (*mat.Dense, error) {
	r, _ := states.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, c.value)
	}
	return out, nil
}

func (c *constantBaseline) Update(_ *mat.Dense, _ []int,
	targets []float64) (float64, error) {
	c.targets = append(c.targets, targets...)
	return 0, nil
}

func (c *constantBaseline) Parameters() []*mat.Dense { return nil }
func (c *constantBaseline) SetParameters([]*mat.Dense) error { return nil }
func (c *constantBaseline) Features() int { return 4 }
func (c *constantBaseline) Outputs() int { return 1 }

// recordingPolicy always selects action 0 and records its updates
type recordingPolicy struct {
	actions    []int
	advantages []float64
	updates    int
}

func (r *recordingPolicy) Sample(mat.Vector) (int, error) { return 0, nil }

func (r *recordingPolicy) Probabilities(s *mat.Dense) (*mat.Dense, error) {
	rows, _ := s.Dims()
	probs := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		probs.Set(i, 1, 1)
	}
	return probs, nil
}

func (r *recordingPolicy) Update(_ *mat.Dense, actions []int,
	advantages []float64) (float64, error) {
	r.actions = append(r.actions, actions...)
	r.advantages = append(r.advantages, advantages...)
	r.updates++
	return 0, nil
}

func (r *recordingPolicy) Parameters() []*mat.Dense { return nil }
func (r *recordingPolicy) SetParameters([]*mat.Dense) error { return nil }
func (r *recordingPolicy) Features() int { return 4 }
func (r *recordingPolicy) Outputs() int { return 2 }

func TestEpisodeUpdate(t *testing.T) {
	e, _, err := cartpole.NewDefault(3, 0.99, 1)
	require.NoError(t, err)

	c := DefaultConfig()
	c.Gamma = 0.5
	c.BatchSize = 2 // Forces the 3 step episode into two gradient steps
	policy := &recordingPolicy{}
	baseline := &constantBaseline{value: 1}
	r, err := New(e, c, policy, baseline)
	require.NoError(t, err)

	step, err := e.Reset()
	require.NoError(t, err)
	require.NoError(t, r.ObserveFirst(step))

	for done := false; !done; {
		action, err := r.SelectAction(step)
		require.NoError(t, err)
		step, done, err = e.Step(action)
		require.NoError(t, err)
		require.NoError(t, r.Observe(action, step))

		require.NoError(t, r.Step())
		if !done {
			assert.Equal(t, 0, policy.updates)
		}
	}

	// Returns [1.75 1.5 1], advantages [0.75 0.5 0]
	assert.InDeltaSlice(t, []float64{1.75, 1.5, 1}, baseline.targets, 1e-12)
	assert.InDeltaSlice(t, NormalizeAdvantages([]float64{0.75, 0.5, 0}),
		policy.advantages, 1e-12)
	assert.Equal(t, []int{0, 0, 0}, policy.actions)
	assert.Equal(t, 2, policy.updates)

	report := r.Report()
	assert.Equal(t, 1, report["episodes"])
	assert.Equal(t, 3.0, report["return"])

	// Nothing is left to learn from
	require.NoError(t, r.Step())
	assert.Equal(t, 2, policy.updates)
}

func TestEvalSelectsGreedy(t *testing.T) {
	e, step, err := cartpole.NewDefault(3, 0.99, 1)
	require.NoError(t, err)
	r, err := New(e, DefaultConfig(), &recordingPolicy{},
		&constantBaseline{})
	require.NoError(t, err)

	r.Eval()
	action, err := r.SelectAction(step)
	require.NoError(t, err)
	assert.Equal(t, 1, action)

	require.NoError(t, r.ObserveFirst(step))
	next := ts.New(ts.Last, 1, 1, step.Observation, 1)
	require.NoError(t, r.Observe(action, next))
	require.NoError(t, r.Step())
	assert.Equal(t, 0, r.Report()["episodes"])
}

func TestNewValidation(t *testing.T) {
	e, _, err := cartpole.NewDefault(3, 0.99, 1)
	require.NoError(t, err)

	c := DefaultConfig()
	c.BaselineActivations = nil
	_, err = New(e, c, &recordingPolicy{}, &constantBaseline{})
	assert.True(t, agent.IsConfigurationError(err))

	c = DefaultConfig()
	c.BatchSize = 0
	_, err = New(e, c, &recordingPolicy{}, &constantBaseline{})
	assert.True(t, agent.IsConfigurationError(err))
}

func TestCreateAgentLearns(t *testing.T) {
	e, step, err := cartpole.NewDefault(50, 0.99, 1)
	require.NoError(t, err)

	c := DefaultConfig()
	c.PolicyHiddenSizes = []int{8}
	c.PolicyActivations = []string{"relu"}
	c.BaselineHiddenSizes = []int{8}
	c.BaselineActivations = []string{"relu"}
	c.BatchSize = 50
	r, err := c.CreateAgent(e, 1)
	require.NoError(t, err)

	for episode := 0; episode < 3; episode++ {
		require.NoError(t, r.ObserveFirst(step))
		for done := false; !done; {
			action, err := r.SelectAction(step)
			require.NoError(t, err)
			step, done, err = e.Step(action)
			require.NoError(t, err)
			require.NoError(t, r.Observe(action, step))
			require.NoError(t, r.Step())
		}
		step, err = e.Reset()
		require.NoError(t, err)
	}
	assert.Equal(t, 3, r.Report()["episodes"])

	filename := filepath.Join(t.TempDir(), "policy.bin")
	require.NoError(t, r.Save(filename))
	require.NoError(t, r.Load(filename))
}
