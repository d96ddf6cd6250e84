// Package initwfn implements functionality to wrap Gorgonia InitWFn
// so that they can be JSON serialized into configuration files.
package initwfn

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Type describes different types of InitWFn that are available.
type Type string

// Available InitWFn types
const (
	GlorotU  Type = "GlorotU"
	HeU      Type = "HeU"
	Zeroes   Type = "Zeroes"
	Constant Type = "Constant"
)

// registered maps each Type to the concrete Config that describes it
var registered = map[Type]reflect.Type{
	GlorotU:  reflect.TypeOf(GlorotUConfig{}),
	HeU:      reflect.TypeOf(HeUConfig{}),
	Zeroes:   reflect.TypeOf(ZeroesConfig{}),
	Constant: reflect.TypeOf(ConstantConfig{}),
}

// InitWFn wraps Gorgonia InitWFn so that they can be JSON marshalled and
// unmarshalled.
//
// Gorgonia seeds its random initializers with the current time. A
// Seeded InitWFn instead draws weights from its own source so that
// networks can be initialized reproducibly.
type InitWFn struct {
	initWFn G.InitWFn
	src     rand.Source
	Type
	Config
}

// newInitWFn returns a new InitWFn
func newInitWFn(c Config) *InitWFn {
	return &InitWFn{initWFn: c.Create(), Type: c.Type(), Config: c}
}

// InitWFn returns the wrapped Gorgonia InitWFn
func (w *InitWFn) InitWFn() G.InitWFn {
	return w.initWFn
}

// Seeded returns a copy of w which draws weights from a source seeded
// with seed
func (w *InitWFn) Seeded(seed uint64) *InitWFn {
	seeded := *w
	seeded.src = rand.NewSource(seed)
	return &seeded
}

// Values returns the initial weights of a rows x cols weight matrix in
// row major order
func (w *InitWFn) Values(rows, cols int) []float64 {
	if w.src == nil {
		return w.initWFn(tensor.Float64, rows, cols).([]float64)
	}
	return w.Config.Sample(w.src, rows, cols)
}

// String implements the fmt.Stringer interface
func (w *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", w.Type, w.Config)
}

// UnmarshalJSON implements the json.Unmarshaller interface. Field names
// are matched case-insensitively.
func (w *InitWFn) UnmarshalJSON(data []byte) error {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.Wrap(err, "unmarshalJSON")
	}

	var typeName Type
	if err := json.Unmarshal(field(m, "Type"), &typeName); err != nil {
		return errors.Wrap(err, "unmarshalJSON: could not decode type")
	}
	ty, ok := registered[typeName]
	if !ok {
		return errors.Errorf("unmarshalJSON: no such InitWFn type %v",
			typeName)
	}

	value := reflect.New(ty).Interface()
	if raw := field(m, "Config"); raw != nil {
		if err := json.Unmarshal(raw, value); err != nil {
			return errors.Wrap(err, "unmarshalJSON: could not decode config")
		}
	}

	*w = *newInitWFn(reflect.ValueOf(value).Elem().Interface().(Config))
	return nil
}

// field returns the value of the key in m equal to name under
// case-folding, or nil if there is none
func field(m map[string]json.RawMessage, name string) json.RawMessage {
	if v, ok := m[name]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// Config implements a Gorgonia InitWFn configuration and can be used to
// create the described Gorgonia InitWFn's.
type Config interface {
	// Create returns the Gorgonia InitWFn that the Config describes
	Create() G.InitWFn

	// Sample draws the weights of a rows x cols matrix from src using
	// the same distribution as the Gorgonia InitWFn
	Sample(src rand.Source, rows, cols int) []float64

	// Type returns the type of Gorgonia InitWFn that is returned
	Type() Type
}
