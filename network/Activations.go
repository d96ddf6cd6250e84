package network

import (
	"strings"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

type activationType string

const (
	relu     activationType = "relu"
	identity activationType = "identity"
	tanh     activationType = "tanh"
)

// Activation represents an activation function applied to the output
// of a layer
type Activation struct {
	activationType
	f func(x *G.Node) (*G.Node, error)
}

// fwd performs the forward pass of an Activation
func (a *Activation) fwd(x *G.Node) (*G.Node, error) {
	return a.f(x)
}

// String implements the Stringer interface
func (a *Activation) String() string {
	return string(a.activationType)
}

// IsIdentity returns whether or not the Activation is the identity
// function.
func (a *Activation) IsIdentity() bool {
	return a.activationType == identity
}

// GobEncode implements the GobEncoder interface
func (a *Activation) GobEncode() ([]byte, error) {
	return []byte(a.activationType), nil
}

// GobDecode implements the GobDecoder interface
func (a *Activation) GobDecode(encoded []byte) error {
	decoded, err := ParseActivation(string(encoded))
	if err != nil {
		return errors.Wrap(err, "gobdecode")
	}
	*a = *decoded
	return nil
}

// ParseActivation returns the Activation with the given name, one of
// "relu", "tanh", or "identity".
func ParseActivation(name string) (*Activation, error) {
	switch activationType(strings.ToLower(name)) {
	case relu:
		return ReLU(), nil
	case tanh:
		return TanH(), nil
	case identity:
		return Identity(), nil
	}
	return nil, errors.Errorf("parseActivation: illegal activation %q", name)
}

// ParseActivations parses one Activation per name
func ParseActivations(names []string) ([]*Activation, error) {
	acts := make([]*Activation, len(names))
	for i, name := range names {
		act, err := ParseActivation(name)
		if err != nil {
			return nil, err
		}
		acts[i] = act
	}
	return acts, nil
}

// Identity returns an identity *Activation
func Identity() *Activation {
	return &Activation{
		activationType: identity,
		f: func(x *G.Node) (*G.Node, error) {
			return x, nil
		},
	}
}

// ReLU returns a ReLU *Activation
func ReLU() *Activation {
	return &Activation{
		activationType: relu,
		f:              G.Rectify,
	}
}

// TanH returns a tanh *Activation
func TanH() *Activation {
	return &Activation{
		activationType: tanh,
		f:              G.Tanh,
	}
}
