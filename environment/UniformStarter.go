package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// UniformStarter samples starting states uniformly from a box
type UniformStarter struct {
	features int
	rand     *distmv.Uniform
}

// NewUniformStarter returns a new UniformStarter sampling feature i of
// starting states uniformly from bounds[i]
func NewUniformStarter(bounds []r1.Interval, seed uint64) UniformStarter {
	source := rand.NewSource(seed)
	return UniformStarter{len(bounds), distmv.NewUniform(bounds, source)}
}

// Start returns a starting state vector
func (u UniformStarter) Start() *mat.VecDense {
	return mat.NewVecDense(u.features, u.rand.Rand(nil))
}

// ConstantStarter always starts episodes in the same state
type ConstantStarter struct {
	state *mat.VecDense
}

// NewConstantStarter returns a new ConstantStarter
func NewConstantStarter(state []float64) ConstantStarter {
	return ConstantStarter{mat.NewVecDense(len(state), state)}
}

// Start returns a copy of the starting state
func (c ConstantStarter) Start() *mat.VecDense {
	return mat.VecDenseCopyOf(c.state)
}
