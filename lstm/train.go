package lstm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/autograd"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/utils"
)

// TrainOnSequence runs one full BPTT step on a single example and applies
// p -= lr * grad to every parameter. It returns the last step's
// log-probabilities and the summed loss divided by the sequence length.
//
// A non-finite loss or gradient returns ErrNumericDivergence and leaves the
// parameters untouched.
func (m *Model) TrainOnSequence(inputs []*mat.Dense, targets []int) (*mat.Dense, float64, error) {
	if err := m.checkInputs(inputs); err != nil {
		return nil, 0, err
	}
	if len(targets) != len(inputs) {
		return nil, 0, fmt.Errorf("%w: %d inputs but %d targets", ErrInvalidConfiguration, len(inputs), len(targets))
	}
	v := m.alphabet.Size()
	for t, idx := range targets {
		if idx < 0 || idx >= v {
			return nil, 0, fmt.Errorf("%w: target %d at step %d", ErrIndexOutOfRange, idx, t)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.params {
		p.ZeroGrad()
	}

	g := autograd.NewGraph(true)
	var (
		states   States
		logProbs *autograd.Node
		loss     *autograd.Node
		err      error
	)
	for t, x := range inputs {
		states, err = m.stack.Step(g, g.Constant(x), states)
		if err != nil {
			return nil, 0, err
		}
		logProbs = m.head.Project(g, states[len(states)-1].C, true)
		nll := g.NLL(logProbs, targets[t])
		if loss == nil {
			loss = nll
		} else {
			loss = g.Add(loss, nll)
		}
	}

	total := loss.W.At(0, 0)
	if !utils.IsFinite(total) {
		return nil, 0, fmt.Errorf("%w: loss is %v", ErrNumericDivergence, total)
	}
	g.Backward(loss)
	for i, p := range m.params {
		if !utils.AllFinite(p.DW) {
			return nil, 0, fmt.Errorf("%w: gradient of parameter %d", ErrNumericDivergence, i)
		}
	}

	m.opt.Step(m.params)
	m.loss = total / float64(len(inputs))
	return mat.DenseCopyOf(logProbs.W), m.loss, nil
}

// TrainOnString encodes line and trains on it.
func (m *Model) TrainOnString(line string) (*mat.Dense, float64, error) {
	inputs, targets, err := m.alphabet.EncodeExample(line)
	if err != nil {
		return nil, 0, err
	}
	return m.TrainOnSequence(inputs, targets)
}
