package expreplay

import (
	"testing"

	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const features = 3

// transition returns a transition whose every field encodes k so that
// misaligned fields are easy to spot.
func transition(k int) timestep.Transition {
	state := mat.NewVecDense(features, nil)
	nextState := mat.NewVecDense(features, nil)
	for i := 0; i < features; i++ {
		state.SetVec(i, float64(k))
		nextState.SetVec(i, float64(k)+0.5)
	}
	return timestep.Transition{
		State:     state,
		Action:    k,
		Reward:    float64(k) * 10,
		NextState: nextState,
		Done:      k%2 == 1,
	}
}

func TestNewInvalid(t *testing.T) {
	_, err := New(0, features, 1)
	assert.True(t, agent.IsConfigurationError(err))

	_, err = New(-3, features, 1)
	assert.True(t, agent.IsConfigurationError(err))

	_, err = New(10, 0, 1)
	assert.True(t, agent.IsConfigurationError(err))
}

func TestStoreBeforeWrap(t *testing.T) {
	buffer, err := New(5, features, 1)
	require.NoError(t, err)

	for k := 0; k < 3; k++ {
		require.NoError(t, buffer.Store(transition(k)))
	}
	assert.Equal(t, 3, buffer.Len())
	assert.Equal(t, 5, buffer.Capacity())

	for k := 0; k < 3; k++ {
		tr, err := buffer.At(k)
		require.NoError(t, err)
		assert.Equal(t, k, tr.Action)
		assert.Equal(t, float64(k)*10, tr.Reward)
		assert.Equal(t, float64(k), tr.State.AtVec(0))
		assert.Equal(t, float64(k)+0.5, tr.NextState.AtVec(2))
		assert.Equal(t, k%2 == 1, tr.Done)
	}

	_, err = buffer.At(3)
	assert.True(t, IsInsufficientData(err))
}

func TestStoreWraparound(t *testing.T) {
	buffer, err := New(5, features, 1)
	require.NoError(t, err)

	for k := 0; k < 7; k++ {
		require.NoError(t, buffer.Store(transition(k)))
		if k < 5 {
			assert.Equal(t, k+1, buffer.Len())
		} else {
			assert.Equal(t, 5, buffer.Len(), "filled count must saturate")
		}
	}

	// Transitions 0 and 1 were overwritten, the rest are oldest first
	want := []int{2, 3, 4, 5, 6}
	for i, k := range want {
		tr, err := buffer.At(i)
		require.NoError(t, err)
		assert.Equal(t, k, tr.Action)
		assert.Equal(t, float64(k), tr.State.AtVec(1))
	}
}

func TestSampleEmpty(t *testing.T) {
	buffer, err := New(5, features, 1)
	require.NoError(t, err)

	_, err = buffer.Sample(2)
	require.Error(t, err)
	assert.True(t, IsInsufficientData(err))
	assert.False(t, agent.IsConfigurationError(err))
}

func TestSampleInvalidBatchSize(t *testing.T) {
	buffer, err := New(5, features, 1)
	require.NoError(t, err)
	require.NoError(t, buffer.Store(transition(0)))

	_, err = buffer.Sample(0)
	assert.True(t, agent.IsConfigurationError(err))
}

func TestSampleAlignedAndValid(t *testing.T) {
	buffer, err := New(5, features, 42)
	require.NoError(t, err)

	for k := 0; k < 7; k++ {
		require.NoError(t, buffer.Store(transition(k)))
	}

	valid := map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true}
	seen := make(map[int]bool)

	for i := 0; i < 50; i++ {
		batch, err := buffer.Sample(8)
		require.NoError(t, err)
		require.Equal(t, 8, batch.Len())

		rows, cols := batch.States.Dims()
		assert.Equal(t, 8, rows)
		assert.Equal(t, features, cols)

		for j := 0; j < batch.Len(); j++ {
			k := batch.Actions[j]
			assert.True(t, valid[k], "sampled overwritten transition %v", k)
			seen[k] = true

			assert.Equal(t, float64(k)*10, batch.Rewards[j])
			assert.Equal(t, float64(k), batch.States.At(j, 0))
			assert.Equal(t, float64(k)+0.5, batch.NextStates.At(j, features-1))
			if k%2 == 1 {
				assert.Equal(t, 1.0, batch.Dones[j])
			} else {
				assert.Equal(t, 0.0, batch.Dones[j])
			}
		}
	}
	assert.Len(t, seen, 5, "every valid slot should eventually be sampled")
}

func TestSampleSingleTransition(t *testing.T) {
	buffer, err := New(10, features, 3)
	require.NoError(t, err)
	require.NoError(t, buffer.Store(transition(4)))

	// Sampling is with replacement so a batch may exceed the data held
	batch, err := buffer.Sample(6)
	require.NoError(t, err)
	for _, a := range batch.Actions {
		assert.Equal(t, 4, a)
	}
}

func TestStoreCopiesState(t *testing.T) {
	buffer, err := New(2, features, 1)
	require.NoError(t, err)

	tr := transition(1)
	require.NoError(t, buffer.Store(tr))
	tr.State.SetVec(0, -100)

	stored, err := buffer.At(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.State.AtVec(0))
}

func TestStoreIllegalShape(t *testing.T) {
	buffer, err := New(2, features, 1)
	require.NoError(t, err)

	tr := transition(1)
	tr.State = mat.NewVecDense(features+1, nil)
	err = buffer.Store(tr)
	assert.True(t, agent.IsConfigurationError(err))
	assert.Equal(t, 0, buffer.Len())
}

func BenchmarkSample(b *testing.B) {
	buffer, err := New(10000, 4, 1)
	if err != nil {
		b.Fatal(err)
	}
	for k := 0; k < 10000; k++ {
		tr := timestep.Transition{
			State:     mat.NewVecDense(4, nil),
			Action:    k % 2,
			NextState: mat.NewVecDense(4, nil),
		}
		if err := buffer.Store(tr); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := buffer.Sample(64); err != nil {
			b.Fatal(err)
		}
	}
}
