package lstm

import (
	"fmt"
	"iter"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/autograd"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/utils"
)

// Termination says why generation stopped.
type Termination int

const (
	TerminatedByEOS Termination = iota
	TerminatedByLength
)

func (t Termination) String() string {
	switch t {
	case TerminatedByEOS:
		return "eos"
	case TerminatedByLength:
		return "length"
	}
	return fmt.Sprintf("Termination(%d)", int(t))
}

// GenerateTrace greedily decodes from seed. The result starts with seed and
// holds at most maxLength further characters.
func (m *Model) GenerateTrace(seed rune, maxLength int) (string, Termination, error) {
	if maxLength < 0 {
		return "", 0, fmt.Errorf("%w: negative max length %d", ErrInvalidConfiguration, maxLength)
	}
	x, err := m.alphabet.OneHot(seed)
	if err != nil {
		return "", 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	g := autograd.NewGraph(false)
	v, end := m.alphabet.Size(), m.alphabet.EndIndex()
	out := []rune{seed}
	var states States
	for range maxLength {
		states, err = m.stack.Step(g, g.Constant(x), states)
		if err != nil {
			return "", 0, err
		}
		logProbs := m.head.Project(g, states[len(states)-1].C, false)
		idx := utils.ArgmaxCol(logProbs.W)
		if idx == end {
			return string(out), TerminatedByEOS, nil
		}
		r, err := m.alphabet.DecodeIndex(idx)
		if err != nil {
			return "", 0, err
		}
		out = append(out, r)
		x = utils.OneHot(v, idx)
	}
	return string(out), TerminatedByLength, nil
}

func (m *Model) Generate(seed rune, maxLength int) (string, error) {
	line, _, err := m.GenerateTrace(seed, maxLength)
	return line, err
}

// GenerateMany returns one line per seed rune, in order.
func (m *Model) GenerateMany(seeds string, maxLength int) ([]string, error) {
	var out []string
	for line, err := range m.Lines(seeds, maxLength) {
		if err != nil {
			return out, err
		}
		out = append(out, line)
	}
	return out, nil
}

// Lines yields one generated line per seed rune. It stops at the first error.
func (m *Model) Lines(seeds string, maxLength int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, r := range seeds {
			line, err := m.Generate(r, maxLength)
			if !yield(line, err) || err != nil {
				return
			}
		}
	}
}
