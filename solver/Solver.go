// Package solver implements functionality to wrap Gorgonia Solvers
// so that they can be JSON serialized into configuration files.
package solver

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	RMSProp Type = "RMSProp"
	Vanilla Type = "Vanilla"
)

// Solver wraps Gorgonia Solvers so that they can be JSON marshalled and
// unmarshalled.
//
// Gorgonia Solvers keep per-parameter state (e.g. Adam's moment
// estimates), so a Solver should only ever step a single model. Use
// Clone to obtain a fresh Solver with the same configuration.
type Solver struct {
	G.Solver `json:"-"`
	Type
	Config
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, errors.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "newSolver")
	}
	solver := Solver{Type: t, Config: c}
	solver.Solver = solver.Config.Create()

	return &solver, nil
}

// Must returns s and panics if err is not nil. It is intended for
// package level defaults such as Must(NewDefaultAdam(0.001, 1)).
func Must(s *Solver, err error) *Solver {
	if err != nil {
		panic(err)
	}
	return s
}

// Clone returns a new Solver with the same configuration and no
// accumulated state
func (s *Solver) Clone() (*Solver, error) {
	return newSolver(s.Type, s.Config)
}

// UnmarshalJSON implements the json.Unmarshaller interface. Field names
// are matched case-insensitively so that solvers can be read from
// configuration files whose keys are lowercased.
func (s *Solver) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(
		data,
		"Type",
		"Config",
		map[string]reflect.Type{
			string(Vanilla): reflect.TypeOf(VanillaConfig{}),
			string(Adam):    reflect.TypeOf(AdamConfig{}),
			string(RMSProp): reflect.TypeOf(RMSPropConfig{}),
		})
	if err != nil {
		return err
	}

	solver, err := newSolver(typeName, config)
	if err != nil {
		return errors.Wrap(err, "unmarshalJSON")
	}
	*s = *solver
	return nil
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJsonField, valueJsonField string,
	customTypes map[string]reflect.Type) (Config, Type, error) {
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	typeName, ok := field(m, typeJsonField).(string)
	if !ok {
		return nil, "", errors.Errorf("unmarshalConfig: missing solver "+
			"field %q", typeJsonField)
	}
	ty, found := customTypes[typeName]
	if !found {
		return nil, "", errors.Errorf("unmarshalConfig: no such solver "+
			"type %v", typeName)
	}
	value := reflect.New(ty).Interface()

	valueBytes, err := json.Marshal(field(m, valueJsonField))
	if err != nil {
		return nil, "", err
	}

	if err = json.Unmarshal(valueBytes, value); err != nil {
		return nil, "", err
	}
	concrete := reflect.ValueOf(value).Elem().Interface().(Config)

	return concrete, Type(typeName), nil
}

// field returns the value of the key in m equal to name under
// case-folding
func field(m map[string]interface{}, name string) interface{} {
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

// Config implements a Gorgonia Solver configuration and can be used to
// create Gorgonia Solvers they describe.
type Config interface {
	Create() G.Solver

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool

	// Validate returns an error if the hyperparameters are illegal
	Validate() error
}
