package initwfn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// GlorotUConfig implements a configuration of the Glorot Uniform
// initialization algorithm.
type GlorotUConfig struct {
	Gain float64
}

// NewGlorotU returns a new Glorot Uniform weight initializer
func NewGlorotU(gain float64) *InitWFn {
	return newInitWFn(GlorotUConfig{Gain: gain})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (g GlorotUConfig) Type() Type { return GlorotU }

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (g GlorotUConfig) Create() G.InitWFn { return G.GlorotU(g.Gain) }

// Sample draws weights uniformly from ±gain * sqrt(6 / (rows + cols))
func (g GlorotUConfig) Sample(src rand.Source, rows, cols int) []float64 {
	bound := math.Sqrt(3) * g.Gain * math.Sqrt(2/float64(rows+cols))
	return uniform(src, bound, rows*cols)
}

// HeUConfig implements a configuration of the He uniform
// initialization algorithm, suited to layers with ReLU activations.
type HeUConfig struct {
	Gain float64
}

// NewHeU returns a new He Uniform weight initializer
func NewHeU(gain float64) *InitWFn {
	return newInitWFn(HeUConfig{Gain: gain})
}

func (h HeUConfig) Type() Type        { return HeU }
func (h HeUConfig) Create() G.InitWFn { return G.HeU(h.Gain) }

// Sample draws weights uniformly from ±gain * sqrt(3 / rows)
func (h HeUConfig) Sample(src rand.Source, rows, cols int) []float64 {
	bound := math.Sqrt(3) * h.Gain * math.Sqrt(1/float64(rows))
	return uniform(src, bound, rows*cols)
}

// ZeroesConfig implements a configuration of a zero weight initializer
type ZeroesConfig struct{}

// NewZeroes returns a new zeroes weight intializer
func NewZeroes() *InitWFn {
	return newInitWFn(ZeroesConfig{})
}

func (z ZeroesConfig) Type() Type        { return Zeroes }
func (z ZeroesConfig) Create() G.InitWFn { return G.Zeroes() }

func (z ZeroesConfig) Sample(_ rand.Source, rows, cols int) []float64 {
	return make([]float64, rows*cols)
}

// ConstantConfig implements a configuration of a weight initializer
// that initializes all weights to a constant value.
type ConstantConfig struct {
	Value float64
}

// NewConstant returns a new constant weight intializer
func NewConstant(value float64) *InitWFn {
	return newInitWFn(ConstantConfig{Value: value})
}

func (c ConstantConfig) Type() Type        { return Constant }
func (c ConstantConfig) Create() G.InitWFn { return G.ValuesOf(c.Value) }

func (c ConstantConfig) Sample(_ rand.Source, rows, cols int) []float64 {
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = c.Value
	}
	return values
}

// uniform returns n samples drawn uniformly from [-bound, bound)
func uniform(src rand.Source, bound float64, n int) []float64 {
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	values := make([]float64, n)
	for i := range values {
		values[i] = dist.Rand()
	}
	return values
}
