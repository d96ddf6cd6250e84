package deepq

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/rltrain/expreplay"
	ts "github.com/samuelfneumann/rltrain/timestep"
)

// linear is a linear action value function Q(s, ·) = sᵀW. With one-hot
// states it is a table of action values.
type linear struct {
	weights *mat.Dense
	calls   int

	// Arguments of the most recent call to Update
	outputs []int
	targets []float64
}

func newLinear(features, outputs int, data []float64) *linear {
	return &linear{weights: mat.NewDense(features, outputs, data)}
}

func (l *linear) Predict(states *mat.Dense) (*mat.Dense, error) {
	var out mat.Dense
	out.Mul(states, l.weights)
	return &out, nil
}

func (l *linear) Update(states *mat.Dense, outputs []int,
	targets []float64) (float64, error) {
	pred, _ := l.Predict(states)

	var loss float64
	for i, out := range outputs {
		diff := targets[i] - pred.At(i, out)
		loss += diff * diff
	}
	l.calls++
	l.outputs = append([]int{}, outputs...)
	l.targets = append([]float64{}, targets...)

	// Nudge the weights so that synchronization is observable
	l.weights.Apply(func(_, _ int, v float64) float64 { return v + 0.01 },
		l.weights)
	return loss / float64(len(outputs)), nil
}

func (l *linear) Parameters() []*mat.Dense {
	return []*mat.Dense{mat.DenseCopyOf(l.weights)}
}

func (l *linear) SetParameters(p []*mat.Dense) error {
	if len(p) != 1 {
		return agent.NewConfigurationError("setParameters", "want 1 "+
			"parameter")
	}
	l.weights.Copy(p[0])
	return nil
}

func (l *linear) Features() int {
	r, _ := l.weights.Dims()
	return r
}

func (l *linear) Outputs() int {
	_, c := l.weights.Dims()
	return c
}

func oneHot(rows ...int) *mat.Dense {
	states := mat.NewDense(len(rows), 4, nil)
	for i, r := range rows {
		states.Set(i, r, 1.0)
	}
	return states
}

func testConfig() Config {
	c := DefaultConfig()
	c.Capacity = 100
	c.BatchSize = 4
	c.MinBufferSize = 10
	c.TargetSyncPeriod = 5
	c.EpsilonDecaySteps = 20
	return c
}

func newTestAgent(t *testing.T, online, target *linear) *DeepQ {
	e, _, err := cartpole.NewDefault(500, 0.99, 1)
	require.NoError(t, err)

	d, err := New(e, testConfig(), online, target, 1)
	require.NoError(t, err)
	return d
}

func TestTrainStepDoubleQTargets(t *testing.T) {
	// Rows are states, columns are actions
	online := newLinear(4, 2, []float64{
		1, 2, // state 0
		3, 0.5, // state 1
		0, 0, // state 2
		4, 5, // state 3
	})
	target := newLinear(4, 2, nil)
	d := newTestAgent(t, online, target)
	d.gamma = 0.9

	// New synchronizes the target, so set its values afterwards
	require.NoError(t, target.SetParameters([]*mat.Dense{
		mat.NewDense(4, 2, []float64{
			0, 0,
			10, 20, // online picks action 0 in state 1
			0, 0,
			7, -2, // online picks action 1 in state 3
		}),
	}))

	batch := expreplay.Batch{
		States:     oneHot(0, 0, 2),
		Actions:    []int{0, 1, 1},
		Rewards:    []float64{1, -1, 0},
		NextStates: oneHot(1, 3, 1),
		Dones:      []float64{0, 0, 1},
	}

	loss, td, err := d.TrainStep(batch)
	require.NoError(t, err)

	wantTargets := []float64{1 + 0.9*10, -1 + 0.9*-2, 0}
	assert.InDeltaSlice(t, wantTargets, online.targets, 1e-12)
	assert.Equal(t, []int{0, 1, 1}, online.outputs)

	wantTD := []float64{9, -4.8, 0}
	assert.InDeltaSlice(t, wantTD, td, 1e-12)
	assert.InDelta(t, (81+4.8*4.8)/3, loss, 1e-9)

	// Only the online function is trained
	assert.Equal(t, 1, online.calls)
	assert.Equal(t, 0, target.calls)
}

func TestTrainStepInvalidBatch(t *testing.T) {
	d := newTestAgent(t, newLinear(4, 2, nil), newLinear(4, 2, nil))

	valid := func() expreplay.Batch {
		return expreplay.Batch{
			States:     oneHot(0, 1),
			Actions:    []int{0, 1},
			Rewards:    []float64{0, 0},
			NextStates: oneHot(1, 2),
			Dones:      []float64{0, 0},
		}
	}

	tests := map[string]func(b *expreplay.Batch){
		"rewards":     func(b *expreplay.Batch) { b.Rewards = []float64{0} },
		"dones":       func(b *expreplay.Batch) { b.Dones = nil },
		"states":      func(b *expreplay.Batch) { b.States = oneHot(0) },
		"next states": func(b *expreplay.Batch) { b.NextStates = mat.NewDense(2, 3, nil) },
		"action":      func(b *expreplay.Batch) { b.Actions[1] = 2 },
		"empty":       func(b *expreplay.Batch) { *b = expreplay.Batch{} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			b := valid()
			mutate(&b)
			_, _, err := d.TrainStep(b)
			assert.True(t, agent.IsConfigurationError(err))
		})
	}
}

func TestNewValidation(t *testing.T) {
	e, _, err := cartpole.NewDefault(500, 0.99, 1)
	require.NoError(t, err)

	_, err = New(e, testConfig(), newLinear(3, 2, nil), newLinear(4, 2, nil), 1)
	assert.True(t, agent.IsConfigurationError(err))

	_, err = New(e, testConfig(), newLinear(4, 2, nil), newLinear(4, 3, nil), 1)
	assert.True(t, agent.IsConfigurationError(err))

	c := testConfig()
	c.TargetSyncPeriod = 0
	_, err = New(e, c, newLinear(4, 2, nil), newLinear(4, 2, nil), 1)
	assert.True(t, agent.IsConfigurationError(err))

	c = testConfig()
	c.MinBufferSize = c.Capacity
	assert.True(t, agent.IsConfigurationError(c.Validate()))
}

func TestNewSynchronizesTarget(t *testing.T) {
	online := newLinear(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	target := newLinear(4, 2, nil)
	newTestAgent(t, online, target)

	assert.True(t, mat.Equal(online.weights, target.weights))

	// Parameters are copied, not shared
	online.weights.Set(0, 0, -1)
	assert.Equal(t, 1.0, target.weights.At(0, 0))
}

func TestStepSchedule(t *testing.T) {
	online := newLinear(4, 2, nil)
	target := newLinear(4, 2, nil)
	d := newTestAgent(t, online, target)

	e, step, err := cartpole.NewDefault(500, 0.99, 2)
	require.NoError(t, err)
	require.NoError(t, d.ObserveFirst(step))

	const steps = 30
	for i := 0; i < steps; i++ {
		action, err := d.SelectAction(step)
		require.NoError(t, err)

		var done bool
		step, done, err = e.Step(action)
		require.NoError(t, err)
		require.NoError(t, d.Observe(action, step))
		require.NoError(t, d.Step())

		// After step i the buffer holds i+1 transitions, training
		// starts once it holds more than 10
		assert.Equal(t, i >= 10, d.Trained(), "step %v", i)

		if done {
			step, err = e.Reset()
			require.NoError(t, err)
			require.NoError(t, d.ObserveFirst(step))
		}
	}

	report := d.Report()
	assert.Equal(t, steps, report["step"])
	assert.Equal(t, steps-10, report["updates"])
	assert.Equal(t, 6, report["syncs"]) // steps 0, 5, ..., 25
	assert.Equal(t, steps-10, online.calls)
	assert.Equal(t, 0.025, report["epsilon"])

	// The last sync happened at step 25 before that step's update, so
	// the online function was updated 5 more times
	diff := online.weights.At(0, 0) - target.weights.At(0, 0)
	assert.InDelta(t, 0.05, diff, 1e-9)
}

func TestEvalModeDoesNotLearn(t *testing.T) {
	d := newTestAgent(t, newLinear(4, 2, nil), newLinear(4, 2, nil))
	d.Eval()
	assert.True(t, d.IsEval())

	first := ts.New(ts.First, 0, 1, mat.NewVecDense(4, nil), 0)
	next := ts.New(ts.Mid, 1, 1, mat.NewVecDense(4, nil), 1)
	require.NoError(t, d.ObserveFirst(first))
	require.NoError(t, d.Observe(0, next))
	require.NoError(t, d.Step())
	assert.Equal(t, 0, d.replay.Len())
	assert.Equal(t, 0, d.Report()["step"])

	d.Train()
	assert.False(t, d.IsEval())
	assert.True(t, agent.IsConfigurationError(d.Observe(0, next)))
}

func TestSaveLoad(t *testing.T) {
	online := newLinear(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	d := newTestAgent(t, online, newLinear(4, 2, nil))
	filename := filepath.Join(t.TempDir(), "deepq.bin")
	require.NoError(t, d.Save(filename))

	other := newLinear(4, 2, nil)
	otherTarget := newLinear(4, 2, nil)
	loaded := newTestAgent(t, other, otherTarget)
	require.NoError(t, loaded.Load(filename))
	assert.True(t, mat.Equal(online.weights, other.weights))
	assert.True(t, mat.Equal(online.weights, otherTarget.weights))
}

func TestCreateAgent(t *testing.T) {
	e, step, err := cartpole.NewDefault(500, 0.99, 1)
	require.NoError(t, err)

	c := testConfig()
	c.MinBufferSize = 4
	c.HiddenSizes = []int{8}
	c.Activations = []string{"relu"}
	d, err := c.CreateAgent(e, 1)
	require.NoError(t, err)

	require.NoError(t, d.ObserveFirst(step))
	for i := 0; i < 12; i++ {
		action, err := d.SelectAction(step)
		require.NoError(t, err)
		assert.True(t, action == 0 || action == 1)

		var done bool
		step, done, err = e.Step(action)
		require.NoError(t, err)
		require.NoError(t, d.Observe(action, step))
		require.NoError(t, d.Step())

		if done {
			step, err = e.Reset()
			require.NoError(t, err)
			require.NoError(t, d.ObserveFirst(step))
		}
	}
	assert.Equal(t, 8, d.Report()["updates"])

	c.Activations = []string{"swish"}
	_, err = c.CreateAgent(e, 1)
	assert.Error(t, err)
}
