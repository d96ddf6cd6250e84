// Package expreplay implements a fixed capacity experience replay
// buffer from which batches of transitions are sampled uniformly.
package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/timestep"
	"gonum.org/v1/gonum/mat"
)

// Batch is a batch of transitions sampled from a ReplayBuffer. Row i
// of States and NextStates together with element i of the remaining
// fields form the ith sampled transition.
type Batch struct {
	States     *mat.Dense
	Actions    []int
	Rewards    []float64
	NextStates *mat.Dense
	Dones      []float64 // 1 if the next state is terminal, 0 otherwise
}

// Len returns the number of transitions in the batch
func (b Batch) Len() int {
	return len(b.Actions)
}

// ReplayBuffer stores the most recent transitions up to a fixed
// capacity. Transitions are written to a circular set of slots so that
// once the buffer is full, each new transition overwrites the oldest
// one. Storage is a set of flat, preallocated arrays, one per field of
// a transition.
//
// A ReplayBuffer is not safe for concurrent use.
type ReplayBuffer struct {
	stateCache     []float64
	actionCache    []int
	rewardCache    []float64
	nextStateCache []float64
	doneCache      []float64

	// cursor is the slot written by the next call to Store
	cursor int

	// filled is the number of slots holding data and never exceeds
	// capacity
	filled int

	sampler     Selector
	capacity    int
	featureSize int
}

// New returns a new ReplayBuffer holding at most capacity transitions
// whose states have featureSize features. The seed determines the
// random sampling of batches.
func New(capacity, featureSize int, seed uint64) (*ReplayBuffer, error) {
	if capacity <= 0 {
		return nil, agent.NewConfigurationError("new", "capacity must be "+
			"positive \n\twant(>0) \n\thave(%v)", capacity)
	}
	if featureSize <= 0 {
		return nil, agent.NewConfigurationError("new", "feature size must "+
			"be positive \n\twant(>0) \n\thave(%v)", featureSize)
	}

	return &ReplayBuffer{
		stateCache:     make([]float64, capacity*featureSize),
		actionCache:    make([]int, capacity),
		rewardCache:    make([]float64, capacity),
		nextStateCache: make([]float64, capacity*featureSize),
		doneCache:      make([]float64, capacity),
		sampler:        NewUniformSelector(seed),
		capacity:       capacity,
		featureSize:    featureSize,
	}, nil
}

// Store adds a transition to the buffer, overwriting the oldest
// transition if the buffer is full. The transition's state vectors are
// copied into the buffer.
func (r *ReplayBuffer) Store(t timestep.Transition) error {
	if t.State == nil || t.State.Len() != r.featureSize {
		return agent.NewConfigurationError("store", "illegal state "+
			"length \n\twant(%v) \n\thave(%v)", r.featureSize, vecLen(t.State))
	}
	if t.NextState == nil || t.NextState.Len() != r.featureSize {
		return agent.NewConfigurationError("store", "illegal next state "+
			"length \n\twant(%v) \n\thave(%v)", r.featureSize,
			vecLen(t.NextState))
	}

	start := r.cursor * r.featureSize
	for i := 0; i < r.featureSize; i++ {
		r.stateCache[start+i] = t.State.AtVec(i)
		r.nextStateCache[start+i] = t.NextState.AtVec(i)
	}
	r.actionCache[r.cursor] = t.Action
	r.rewardCache[r.cursor] = t.Reward
	r.doneCache[r.cursor] = t.DoneMask()

	r.cursor = (r.cursor + 1) % r.capacity
	if r.filled < r.capacity {
		r.filled++
	}
	return nil
}

// Sample draws batchSize transitions uniformly at random, with
// replacement, from the slots currently holding data.
func (r *ReplayBuffer) Sample(batchSize int) (Batch, error) {
	if batchSize <= 0 {
		return Batch{}, agent.NewConfigurationError("sample", "batch size "+
			"must be positive \n\twant(>0) \n\thave(%v)", batchSize)
	}
	if r.filled == 0 {
		return Batch{}, &InsufficientDataError{
			Op:   "sample",
			Have: 0,
			Want: batchSize,
		}
	}

	indices := r.sampler.choose(r.filled, batchSize)

	states := make([]float64, batchSize*r.featureSize)
	nextStates := make([]float64, batchSize*r.featureSize)
	actions := make([]int, batchSize)
	rewards := make([]float64, batchSize)
	dones := make([]float64, batchSize)

	for i, index := range indices {
		batchStart := i * r.featureSize
		cacheStart := index * r.featureSize
		copy(states[batchStart:batchStart+r.featureSize],
			r.stateCache[cacheStart:cacheStart+r.featureSize])
		copy(nextStates[batchStart:batchStart+r.featureSize],
			r.nextStateCache[cacheStart:cacheStart+r.featureSize])

		actions[i] = r.actionCache[index]
		rewards[i] = r.rewardCache[index]
		dones[i] = r.doneCache[index]
	}

	return Batch{
		States:     mat.NewDense(batchSize, r.featureSize, states),
		Actions:    actions,
		Rewards:    rewards,
		NextStates: mat.NewDense(batchSize, r.featureSize, nextStates),
		Dones:      dones,
	}, nil
}

// At returns a copy of the ith oldest transition in the buffer. Index
// 0 is the oldest transition and Len()-1 the most recently stored.
func (r *ReplayBuffer) At(i int) (timestep.Transition, error) {
	if i < 0 || i >= r.filled {
		return timestep.Transition{}, &InsufficientDataError{
			Op:   "at",
			Have: r.filled,
			Want: i,
		}
	}

	// Once wrapped, the cursor points at the oldest transition
	if r.filled == r.capacity {
		i = (r.cursor + i) % r.capacity
	}

	start := i * r.featureSize
	state := make([]float64, r.featureSize)
	nextState := make([]float64, r.featureSize)
	copy(state, r.stateCache[start:start+r.featureSize])
	copy(nextState, r.nextStateCache[start:start+r.featureSize])

	return timestep.Transition{
		State:     mat.NewVecDense(r.featureSize, state),
		Action:    r.actionCache[i],
		Reward:    r.rewardCache[i],
		NextState: mat.NewVecDense(r.featureSize, nextState),
		Done:      r.doneCache[i] == 1.0,
	}, nil
}

// Len returns the number of transitions currently in the buffer
func (r *ReplayBuffer) Len() int {
	return r.filled
}

// Capacity returns the maximum number of transitions in the buffer
func (r *ReplayBuffer) Capacity() int {
	return r.capacity
}

// FeatureSize returns the number of features in each stored state
func (r *ReplayBuffer) FeatureSize() int {
	return r.featureSize
}

// String returns the string representation of the ReplayBuffer
func (r *ReplayBuffer) String() string {
	return fmt.Sprintf("ReplayBuffer | Len: %v  |  Capacity: %v  |  "+
		"Cursor: %v", r.filled, r.capacity, r.cursor)
}

func vecLen(v *mat.VecDense) int {
	if v == nil {
		return 0
	}
	return v.Len()
}
