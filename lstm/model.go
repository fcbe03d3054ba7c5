// Package lstm is the line generator: a stack of LSTM cells, an output head
// and the training and sampling loops around them.
package lstm

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/autograd"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/codec"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/optimizations"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/params"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/utils"
)

// Model owns the parameters. TrainOnSequence is the only writer; sampling
// holds the read lock so it never sees a half-applied update.
type Model struct {
	mu sync.RWMutex

	alphabet *codec.Alphabet
	stack    *Stack
	head     *Head
	params   []*autograd.Node
	opt      optimizations.SGD

	loss float64
}

// BuildModel constructs a model for alphabet a (codec.Default() if nil).
// inputWidth and outputWidth must both equal the alphabet size.
func BuildModel(inputWidth int, layerWidths []int, outputWidth int, cfg params.TrainingConfig, a *codec.Alphabet) (*Model, error) {
	if a == nil {
		a = codec.Default()
	}
	if inputWidth != a.Size() || outputWidth != a.Size() {
		return nil, fmt.Errorf("%w: widths %d/%d do not match alphabet size %d",
			ErrInvalidConfiguration, inputWidth, outputWidth, a.Size())
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return nil, fmt.Errorf("%w: dropout %v not in [0, 1)", ErrInvalidConfiguration, cfg.Dropout)
	}
	if !utils.IsFinite(cfg.LearningRate) || cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("%w: learning rate %v", ErrInvalidConfiguration, cfg.LearningRate)
	}

	weights := rand.NewPCG(cfg.Seed, 0x5eed)
	stack, err := NewStack(inputWidth, layerWidths, weights)
	if err != nil {
		return nil, err
	}
	head := NewHead(stack.Width(), outputWidth, cfg.Dropout, weights, rand.NewPCG(cfg.Seed, 0xd20f))

	m := &Model{
		alphabet: a,
		stack:    stack,
		head:     head,
		opt:      optimizations.SGD{LearningRate: cfg.LearningRate},
	}
	m.params = append(stack.Params(), head.Params()...)
	return m, nil
}

// New builds a model over the default alphabet from cfg.LayerWidths.
func New(cfg params.TrainingConfig) (*Model, error) {
	a := codec.Default()
	return BuildModel(a.Size(), cfg.LayerWidths, a.Size(), cfg, a)
}

func (m *Model) Alphabet() *codec.Alphabet { return m.alphabet }

// Params returns every trainable node: each cell's weights in layer order,
// then the head.
func (m *Model) Params() []*autograd.Node { return m.params }

// Loss is the mean per-step loss of the last successful training step.
func (m *Model) Loss() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loss
}

// StackCalls counts stack invocations across training and sampling.
func (m *Model) StackCalls() int64 { return m.stack.Calls() }

// NumParams is the total number of scalar weights.
func (m *Model) NumParams() int {
	n := 0
	for _, p := range m.params {
		r, c := p.W.Dims()
		n += r * c
	}
	return n
}

// Run feeds inputs through the model from an absent state without dropout
// and without recording, returning the log-probabilities of every step.
func (m *Model) Run(inputs []*mat.Dense) ([]*mat.Dense, error) {
	if err := m.checkInputs(inputs); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := autograd.NewGraph(false)
	out := make([]*mat.Dense, len(inputs))
	var states States
	var err error
	for t, x := range inputs {
		states, err = m.stack.Step(g, g.Constant(x), states)
		if err != nil {
			return nil, err
		}
		out[t] = m.head.Project(g, states[len(states)-1].C, false).W
	}
	return out, nil
}

func (m *Model) checkInputs(inputs []*mat.Dense) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: empty sequence", ErrInvalidConfiguration)
	}
	v := m.alphabet.Size()
	for t, x := range inputs {
		if x == nil {
			return fmt.Errorf("%w: nil input at step %d", ErrInvalidConfiguration, t)
		}
		if r, c := x.Dims(); r != v || c != 1 {
			return fmt.Errorf("%w: input %d is %dx%d, want %dx1", ErrInvalidConfiguration, t, r, c, v)
		}
	}
	return nil
}
