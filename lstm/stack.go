package lstm

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/autograd"
)

// Stack is an ordered list of cells. Layer i > 0 reads layer i-1's new cell
// state, not its hidden state.
type Stack struct {
	Cells []*Cell

	calls atomic.Int64
}

func NewStack(inputWidth int, widths []int, src rand.Source) (*Stack, error) {
	if len(widths) == 0 {
		return nil, fmt.Errorf("%w: stack needs at least one layer", ErrInvalidConfiguration)
	}
	s := &Stack{Cells: make([]*Cell, len(widths))}
	in := inputWidth
	for i, w := range widths {
		if w <= 0 {
			return nil, fmt.Errorf("%w: layer %d has width %d", ErrInvalidConfiguration, i, w)
		}
		s.Cells[i] = NewCell(in, w, src)
		in = w
	}
	return s, nil
}

// Width is the cell-state width of the last layer.
func (s *Stack) Width() int { return s.Cells[len(s.Cells)-1].Hiddens }

func (s *Stack) Params() []*autograd.Node {
	var out []*autograd.Node
	for _, c := range s.Cells {
		out = append(out, c.Params()...)
	}
	return out
}

// Calls reports how many times Step has run.
func (s *Stack) Calls() int64 { return s.calls.Load() }

// Step runs every layer once for input x. prev == nil means no previous
// state; otherwise it must hold one entry per layer, and each layer checks
// its own entry for presence.
func (s *Stack) Step(g *autograd.Graph, x *autograd.Node, prev States) (States, error) {
	if prev == nil {
		prev = make(States, len(s.Cells))
	}
	if len(prev) != len(s.Cells) {
		return nil, fmt.Errorf("%w: got %d layer states for %d layers", ErrInvalidConfiguration, len(prev), len(s.Cells))
	}
	s.calls.Add(1)

	next := make(States, len(s.Cells))
	input := x
	for i, cell := range s.Cells {
		next[i] = cell.Step(g, input, prev[i])
		input = next[i].C
	}
	return next, nil
}
