package agent

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// parameter is the gob encoding of a single parameter matrix
type parameter struct {
	Rows, Cols int
	Data       []float64
}

// SaveParameters writes the parameters of p to filename with gob
func SaveParameters(filename string, p Parameterized) error {
	params := p.Parameters()
	encoded := make([]parameter, len(params))
	for i, param := range params {
		r, c := param.Dims()
		encoded[i] = parameter{r, c, mat.DenseCopyOf(param).RawMatrix().Data}
	}

	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "saveParameters: could not create file")
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(encoded); err != nil {
		return errors.Wrap(err, "saveParameters: could not encode")
	}
	return nil
}

// LoadParameters reads parameters written by SaveParameters and sets
// them as the parameters of p
func LoadParameters(filename string, p Parameterized) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "loadParameters: could not open file")
	}
	defer file.Close()

	var encoded []parameter
	if err := gob.NewDecoder(file).Decode(&encoded); err != nil {
		return errors.Wrap(err, "loadParameters: could not decode")
	}

	params := make([]*mat.Dense, len(encoded))
	for i, param := range encoded {
		if len(param.Data) != param.Rows*param.Cols {
			return NewConfigurationError("loadParameters", "corrupt "+
				"parameter %v \n\twant(%v values) \n\thave(%v)", i,
				param.Rows*param.Cols, len(param.Data))
		}
		params[i] = mat.NewDense(param.Rows, param.Cols, param.Data)
	}
	return errors.Wrap(p.SetParameters(params), "loadParameters")
}
