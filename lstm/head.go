package lstm

import (
	"math/rand/v2"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/autograd"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/utils"
)

// Head projects the last layer's cell state onto vocabulary log-probabilities.
type Head struct {
	Inputs, Outputs int
	Weights, Bias   *autograd.Node
	Dropout         float64

	src rand.Source
}

func NewHead(inputs, outputs int, dropout float64, weights, masks rand.Source) *Head {
	fan := float64(inputs)
	return &Head{
		Inputs:  inputs,
		Outputs: outputs,
		Weights: autograd.NewParam(outputs, inputs, utils.RandomArray(outputs*inputs, fan, weights)),
		Bias:    autograd.NewParam(outputs, 1, utils.RandomArray(outputs, fan, weights)),
		Dropout: dropout,
		src:     masks,
	}
}

func (h *Head) Params() []*autograd.Node {
	return []*autograd.Node{h.Weights, h.Bias}
}

// Project is log_softmax(dropout(W*c + b)). Dropout only applies when train
// is set, with a fresh mask each call.
func (h *Head) Project(g *autograd.Graph, c *autograd.Node, train bool) *autograd.Node {
	logits := g.Add(g.Mul(h.Weights, c), h.Bias)
	if train && h.Dropout > 0 {
		logits = g.Mask(logits, utils.DropoutMask(h.Outputs, h.Dropout, h.src))
	}
	return g.LogSoftmax(logits)
}
