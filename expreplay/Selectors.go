package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector chooses the slots of a replay buffer that a batch is drawn
// from.
type Selector interface {
	// choose selects n indices in [0, filled)
	choose(filled, n int) []int
}

// uniformSelector selects slots uniformly at random with replacement
type uniformSelector struct {
	rng *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data
// uniformly randomly, with replacement, from a replay buffer
func NewUniformSelector(seed uint64) Selector {
	source := rand.NewSource(seed)
	return &uniformSelector{rng: rand.New(source)}
}

// choose selects n indices at which to draw data from the buffer
func (u *uniformSelector) choose(filled, n int) []int {
	selected := make([]int, n)
	for i := range selected {
		selected[i] = u.rng.Intn(filled)
	}
	return selected
}
