// Package network implements multi-layered perceptrons built on
// Gorgonia computational graphs. Networks are exposed through gonum
// matrices so that callers never handle graph nodes directly.
package network

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/rltrain/agent"
	"github.com/samuelfneumann/rltrain/initwfn"
	"github.com/samuelfneumann/rltrain/solver"
	"github.com/samuelfneumann/rltrain/utils/intutils"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// minBatch is the smallest training batch a graph is built for. Sums
// over the rows of a single row batch collapse to scalars in Gorgonia,
// which breaks the shapes of the loss graphs.
const minBatch = 2

// mlp holds what every multi-layered perceptron shares: the
// architecture, the training graph up to the prediction node, and
// forward-only graphs used for prediction.
//
// The training graph has a fixed batch size. Smaller batches are
// zero-padded and padded rows are given zero weight in the loss.
type mlp struct {
	features    int
	outputs     int
	batch       int
	hiddenSizes []int
	activations []*Activation

	g          *G.ExprGraph
	layers     []*fcLayer
	learnables G.Nodes
	input      *G.Node
	prediction *G.Node

	loss    *G.Node
	lossVal G.Value
	vm      G.VM
	solver  *solver.Solver

	// predictors caches forward-only graphs by batch size
	predictors map[int]*predictor
}

// predictor is a forward-only copy of an mlp's graph
type predictor struct {
	input      *G.Node
	learnables G.Nodes
	predVal    G.Value
	vm         G.VM
}

// newMLP creates the training graph of an MLP with one hidden layer
// per element of hiddenSizes and a final linear layer of outputs units.
func newMLP(features, outputs, batch int, hiddenSizes []int,
	activations []*Activation, init *initwfn.InitWFn) (*mlp, error) {
	if features <= 0 || outputs <= 0 {
		return nil, agent.NewConfigurationError("newMLP", "features and "+
			"outputs must be positive \n\thave(%v, %v)", features, outputs)
	}
	if batch <= 0 {
		return nil, agent.NewConfigurationError("newMLP", "batch size "+
			"must be positive \n\thave(%v)", batch)
	}
	if init == nil {
		return nil, agent.NewConfigurationError("newMLP", "weight "+
			"initializer must be set")
	}
	if len(hiddenSizes) != len(activations) {
		return nil, agent.NewConfigurationError("newMLP", "invalid number "+
			"of activations \n\twant(%d) \n\thave(%d)", len(hiddenSizes),
			len(activations))
	}
	for _, size := range hiddenSizes {
		if size <= 0 {
			return nil, agent.NewConfigurationError("newMLP", "hidden "+
				"layer sizes must be positive \n\thave(%v)", hiddenSizes)
		}
	}
	batch = intutils.Max(batch, minBatch)

	// Add a final linear layer so the network predicts outputs values
	sizes := append(append([]int{}, hiddenSizes...), outputs)
	acts := append(append([]*Activation{}, activations...), Identity())

	g := G.NewGraph()
	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)
	layers := newFCLayers(g, features, sizes, acts, init)
	prediction, err := forward(layers, input)
	if err != nil {
		return nil, errors.Wrap(err, "newMLP")
	}

	return &mlp{
		features:    features,
		outputs:     outputs,
		batch:       batch,
		hiddenSizes: append([]int{}, hiddenSizes...),
		activations: append([]*Activation{}, activations...),
		g:           g,
		layers:      layers,
		learnables:  learnablesOf(layers),
		input:       input,
		prediction:  prediction,
		predictors:  make(map[int]*predictor),
	}, nil
}

// compile differentiates loss with respect to the learnables and
// creates the VM that runs the training graph.
func (m *mlp) compile(loss *G.Node, s *solver.Solver) error {
	m.loss = loss
	G.Read(m.loss, &m.lossVal)

	if _, err := G.Grad(m.loss, m.learnables...); err != nil {
		return errors.Wrap(err, "compile: could not compute gradient")
	}

	m.vm = G.NewTapeMachine(m.g, G.BindDualValues(m.learnables...))
	m.solver = s
	return nil
}

// step runs the training graph with its inputs already bound and takes
// a single solver step. The loss before the step is returned.
func (m *mlp) step() (float64, error) {
	if m.solver == nil {
		return 0, agent.NewConfigurationError("step", "network has no "+
			"solver and cannot be trained")
	}
	defer m.vm.Reset()

	if err := m.vm.RunAll(); err != nil {
		return 0, errors.Wrap(err, "step: could not run training graph")
	}
	if err := m.solver.Step(G.NodesToValueGrads(m.learnables)); err != nil {
		return 0, errors.Wrap(err, "step: could not step solver")
	}

	return floatsOf(m.lossVal)[0], nil
}

// setInputs binds the rows of states to the input node of the training
// graph, zero-padding up to the batch size.
func (m *mlp) setInputs(states *mat.Dense) error {
	raw := make([]float64, m.batch*m.features)
	rows, _ := states.Dims()
	for i := 0; i < rows; i++ {
		copy(raw[i*m.features:(i+1)*m.features], states.RawRowView(i))
	}
	return bind(m.input, raw, m.batch, m.features)
}

// checkBatch ensures a training batch of states with n labels can be
// run through the training graph.
func (m *mlp) checkBatch(op string, states *mat.Dense, n int) error {
	rows, cols := states.Dims()
	if cols != m.features {
		return agent.NewConfigurationError(op, "illegal number of "+
			"features \n\twant(%v) \n\thave(%v)", m.features, cols)
	}
	if rows != n {
		return agent.NewConfigurationError(op, "batch fields differ in "+
			"length \n\tstates(%v) \n\tlabels(%v)", rows, n)
	}
	if rows > m.batch {
		return agent.NewConfigurationError(op, "batch too large "+
			"\n\twant(<=%v) \n\thave(%v)", m.batch, rows)
	}
	return nil
}

// Predict returns the outputs of the network for each row of states
func (m *mlp) Predict(states *mat.Dense) (*mat.Dense, error) {
	rows, cols := states.Dims()
	if cols != m.features {
		return nil, agent.NewConfigurationError("predict", "illegal "+
			"number of features \n\twant(%v) \n\thave(%v)", m.features, cols)
	}

	chunk := m.batch
	if rows == 1 {
		chunk = 1
	}
	p, err := m.predictorFor(chunk)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	if err := p.sync(m.learnables); err != nil {
		return nil, errors.Wrap(err, "predict")
	}

	out := mat.NewDense(rows, m.outputs, nil)
	raw := make([]float64, chunk*m.features)
	for start := 0; start < rows; start += chunk {
		n := intutils.Min(chunk, rows-start)

		for i := range raw {
			raw[i] = 0
		}
		for i := 0; i < n; i++ {
			copy(raw[i*m.features:(i+1)*m.features],
				states.RawRowView(start+i))
		}

		pred, err := p.run(raw, chunk, m.features)
		if err != nil {
			return nil, errors.Wrap(err, "predict")
		}
		for i := 0; i < n; i++ {
			out.SetRow(start+i, pred[i*m.outputs:(i+1)*m.outputs])
		}
	}
	return out, nil
}

// predictorFor returns the forward-only graph for a batch size,
// building it on first use.
func (m *mlp) predictorFor(batch int) (*predictor, error) {
	if p, ok := m.predictors[batch]; ok {
		return p, nil
	}

	g := G.NewGraph()
	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, m.features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)
	layers := cloneFCLayers(g, m.layers)
	prediction, err := forward(layers, input)
	if err != nil {
		return nil, errors.Wrap(err, "predictorFor")
	}

	p := &predictor{
		input:      input,
		learnables: learnablesOf(layers),
	}
	G.Read(prediction, &p.predVal)
	p.vm = G.NewTapeMachine(g)

	m.predictors[batch] = p
	return p, nil
}

// sync copies the values of learnables into the predictor
func (p *predictor) sync(learnables G.Nodes) error {
	for i, node := range learnables {
		value := node.Value().(*tensor.Dense).Clone()
		if err := G.Let(p.learnables[i], value); err != nil {
			return errors.Wrap(err, "sync")
		}
	}
	return nil
}

// run runs the forward pass on a row-major batch of inputs
func (p *predictor) run(raw []float64, rows, cols int) ([]float64, error) {
	if err := bind(p.input, raw, rows, cols); err != nil {
		return nil, err
	}
	defer p.vm.Reset()

	if err := p.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "run")
	}
	return floatsOf(p.predVal), nil
}

// Parameters returns a copy of the network's weights and biases, in
// layer order, with biases as row vectors.
func (m *mlp) Parameters() []*mat.Dense {
	params := make([]*mat.Dense, len(m.learnables))
	for i, node := range m.learnables {
		shape := node.Shape()
		data := append([]float64{}, floatsOf(node.Value())...)
		params[i] = mat.NewDense(shape[0], shape[1], data)
	}
	return params
}

// SetParameters sets the network's weights and biases to copies of
// params, which must match the shapes returned by Parameters.
func (m *mlp) SetParameters(params []*mat.Dense) error {
	if len(params) != len(m.learnables) {
		return agent.NewConfigurationError("setParameters", "illegal "+
			"number of parameters \n\twant(%v) \n\thave(%v)",
			len(m.learnables), len(params))
	}
	for i, node := range m.learnables {
		shape := node.Shape()
		r, c := params[i].Dims()
		if r != shape[0] || c != shape[1] {
			return agent.NewConfigurationError("setParameters", "illegal "+
				"shape for parameter %v \n\twant(%v, %v) \n\thave(%v, %v)",
				i, shape[0], shape[1], r, c)
		}
	}

	for i, node := range m.learnables {
		r, c := params[i].Dims()
		raw := make([]float64, 0, r*c)
		for row := 0; row < r; row++ {
			raw = append(raw, params[i].RawRowView(row)...)
		}
		if err := bind(node, raw, r, c); err != nil {
			return errors.Wrap(err, "setParameters")
		}
	}
	return nil
}

// Features returns the number of features the network takes as input
func (m *mlp) Features() int {
	return m.features
}

// Outputs returns the number of outputs predicted per input
func (m *mlp) Outputs() int {
	return m.outputs
}

// BatchSize returns the largest batch the network can be trained on
func (m *mlp) BatchSize() int {
	return m.batch
}

// bind binds a row-major matrix to node n
func bind(n *G.Node, raw []float64, rows, cols int) error {
	t := tensor.New(
		tensor.WithShape(rows, cols),
		tensor.WithBacking(raw),
	)
	return G.Let(n, t)
}

// bindVec binds a vector to node n
func bindVec(n *G.Node, raw []float64) error {
	t := tensor.New(
		tensor.WithShape(len(raw)),
		tensor.WithBacking(raw),
	)
	return G.Let(n, t)
}

// floatsOf returns the data of a Gorgonia value as a slice
func floatsOf(v G.Value) []float64 {
	switch data := v.Data().(type) {
	case float64:
		return []float64{data}
	case []float64:
		return data
	}
	panic("floatsOf: value does not hold float64 data")
}

// architecture is the serialized form of an mlp
type architecture struct {
	Features    int
	Outputs     int
	Batch       int
	HiddenSizes []int
	Activations []*Activation
	Parameters  []parameter
	Solver      []byte // JSON encoded, empty if there is no solver
}

type parameter struct {
	Rows, Cols int
	Data       []float64
}

// architecture returns the serializable description of the mlp
func (m *mlp) architecture() (architecture, error) {
	arch := architecture{
		Features:    m.features,
		Outputs:     m.outputs,
		Batch:       m.batch,
		HiddenSizes: m.hiddenSizes,
		Activations: m.activations,
	}
	for _, p := range m.Parameters() {
		r, c := p.Dims()
		arch.Parameters = append(arch.Parameters, parameter{r, c, p.RawMatrix().Data})
	}

	if m.solver != nil {
		s, err := json.Marshal(m.solver)
		if err != nil {
			return architecture{}, errors.Wrap(err, "architecture: could "+
				"not encode solver")
		}
		arch.Solver = s
	}
	return arch, nil
}

// parameters returns the serialized parameters as matrices
func (a architecture) parameters() []*mat.Dense {
	params := make([]*mat.Dense, len(a.Parameters))
	for i, p := range a.Parameters {
		params[i] = mat.NewDense(p.Rows, p.Cols, p.Data)
	}
	return params
}

// solver returns the serialized solver, or nil if there is none
func (a architecture) solver() (*solver.Solver, error) {
	if len(a.Solver) == 0 {
		return nil, nil
	}
	var s solver.Solver
	if err := json.Unmarshal(a.Solver, &s); err != nil {
		return nil, errors.Wrap(err, "solver: could not decode solver")
	}
	return &s, nil
}

func encodeArchitecture(m *mlp) ([]byte, error) {
	arch, err := m.architecture()
	if err != nil {
		return nil, errors.Wrap(err, "gobencode")
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(arch); err != nil {
		return nil, errors.Wrap(err, "gobencode")
	}
	return buf.Bytes(), nil
}

func decodeArchitecture(in []byte) (architecture, error) {
	var arch architecture
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&arch); err != nil {
		return architecture{}, errors.Wrap(err, "gobdecode")
	}
	return arch, nil
}

// Save gob encodes a network to a file
func Save(filename string, net gob.GobEncoder) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "save: could not create file")
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(net); err != nil {
		return errors.Wrap(err, "save: could not encode network")
	}
	return nil
}

// Load decodes a network saved with Save into net
func Load(filename string, net gob.GobDecoder) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "load: could not open file")
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(net); err != nil {
		return errors.Wrap(err, "load: could not decode network")
	}
	return nil
}
