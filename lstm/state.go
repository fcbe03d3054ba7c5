package lstm

import "github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/autograd"

// State is one layer's (hidden, cell) pair, or Absent before the first step.
// The zero value is Absent.
type State struct {
	present bool
	H, C    *autograd.Node
}

func Absent() State { return State{} }

func Present(h, c *autograd.Node) State {
	return State{present: true, H: h, C: c}
}

// IsPresent is false for Absent and for a pair missing either vector.
func (s State) IsPresent() bool {
	return s.present && s.H != nil && s.C != nil
}

// States holds one State per layer. A nil States means every layer is Absent.
type States []State
