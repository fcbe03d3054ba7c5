package optimizations

import (
	"gonum.org/v1/gonum/mat"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/autograd"
)

// p -= lr * g
func SGDUpdateInPlace(p, g *mat.Dense, lr float64) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("sgdUpdateInPlace: grad shape mismatch")
	}
	var step mat.Dense
	step.Scale(-lr, g)
	p.Add(p, &step)
}

// SGD is plain stochastic gradient descent: no momentum, no adaptive
// scaling, no clipping.
type SGD struct {
	LearningRate float64
}

// Step applies one update to every parameter, in order.
func (s SGD) Step(params []*autograd.Node) {
	for _, p := range params {
		SGDUpdateInPlace(p.W, p.DW, s.LearningRate)
	}
}
