package lstm

import (
	"math/rand/v2"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/autograd"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/utils"
)

// Cell is a single LSTM cell. Gate rows are packed in the order
// input, forget, candidate, output.
type Cell struct {
	Inputs, Hiddens int

	Wih *autograd.Node // (4H x in)
	Whh *autograd.Node // (4H x H)
	Bih *autograd.Node // (4H x 1)
	Bhh *autograd.Node // (4H x 1)
}

func NewCell(inputs, hiddens int, src rand.Source) *Cell {
	g := 4 * hiddens
	fan := float64(hiddens)
	return &Cell{
		Inputs:  inputs,
		Hiddens: hiddens,
		Wih:     autograd.NewParam(g, inputs, utils.RandomArray(g*inputs, fan, src)),
		Whh:     autograd.NewParam(g, hiddens, utils.RandomArray(g*hiddens, fan, src)),
		Bih:     autograd.NewParam(g, 1, utils.RandomArray(g, fan, src)),
		Bhh:     autograd.NewParam(g, 1, utils.RandomArray(g, fan, src)),
	}
}

func (c *Cell) Params() []*autograd.Node {
	return []*autograd.Node{c.Wih, c.Whh, c.Bih, c.Bhh}
}

// Step advances the cell by one time step.
//
// With prev present:
//
//	c' = f*c + i*g,  h' = o*tanh(c')
//
// With prev absent the cell starts from its own zero state: the recurrent
// product and the forget term drop out, leaving c' = i*g.
func (c *Cell) Step(g *autograd.Graph, x *autograd.Node, prev State) State {
	H := c.Hiddens
	gates := g.Add(g.Mul(c.Wih, x), c.Bih)
	if prev.IsPresent() {
		gates = g.Add(gates, g.Add(g.Mul(c.Whh, prev.H), c.Bhh))
	} else {
		gates = g.Add(gates, c.Bhh)
	}

	in := g.Sigmoid(g.RowSlice(gates, 0, H))
	cand := g.Tanh(g.RowSlice(gates, 2*H, 3*H))
	out := g.Sigmoid(g.RowSlice(gates, 3*H, 4*H))

	var cell *autograd.Node
	if prev.IsPresent() {
		forget := g.Sigmoid(g.RowSlice(gates, H, 2*H))
		cell = g.Add(g.Eltmul(forget, prev.C), g.Eltmul(in, cand))
	} else {
		cell = g.Eltmul(in, cand)
	}
	hidden := g.Eltmul(out, g.Tanh(cell))
	return Present(hidden, cell)
}
