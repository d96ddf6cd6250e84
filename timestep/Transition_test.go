package timestep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewTransition(t *testing.T) {
	s := mat.NewVecDense(2, []float64{0, 1})
	sPrime := mat.NewVecDense(2, []float64{1, 2})

	first := New(First, 0, 0.99, s, 0)

	mid := New(Mid, 1.5, 0.99, sPrime, 1)
	tr := NewTransition(first, 1, mid)
	assert.Equal(t, 1, tr.Action)
	assert.Equal(t, 1.5, tr.Reward)
	assert.False(t, tr.Done)
	assert.Equal(t, 0.0, tr.DoneMask())
	assert.Same(t, s, tr.State)
	assert.Same(t, sPrime, tr.NextState)

	terminal := New(Last, -1, 0.99, sPrime, 1)
	terminal.SetEnd(TerminalStateReached)
	tr = NewTransition(first, 0, terminal)
	assert.True(t, tr.Done)
	assert.Equal(t, 1.0, tr.DoneMask())

	timeout := New(Last, 1, 0.99, sPrime, 1)
	timeout.SetEnd(Timeout)
	tr = NewTransition(first, 0, timeout)
	assert.False(t, tr.Done, "truncated episodes should not be terminal")
}

func TestStepTypeString(t *testing.T) {
	assert.Equal(t, "First", First.String())
	assert.Equal(t, "Mid", Mid.String())
	assert.Equal(t, "Last", Last.String())
	assert.Equal(t, "Timeout", Timeout.String())
	assert.Equal(t, "Unknown", Unknown.String())
}
