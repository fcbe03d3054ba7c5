// Package autograd is a small reverse-mode tape over gonum column vectors.
// Every op computes its value immediately; when the graph records, it also
// pushes a closure that propagates the output gradient back to its operands.
// Backward replays the closures in reverse.
package autograd

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/utils"
)

// Node holds a value W and, when it takes part in backprop, its gradient DW.
// Constants and every node built on a non-recording graph have DW == nil.
type Node struct {
	W  *mat.Dense
	DW *mat.Dense
}

// NewParam wraps a trainable (r x c) matrix and allocates its gradient.
func NewParam(r, c int, data []float64) *Node {
	return &Node{W: mat.NewDense(r, c, data), DW: mat.NewDense(r, c, nil)}
}

func (n *Node) Rows() int {
	r, _ := n.W.Dims()
	return r
}

// ZeroGrad clears the accumulated gradient.
func (n *Node) ZeroGrad() {
	if n.DW != nil {
		n.DW.Zero()
	}
}

// Graph is the tape. With NeedsBackprop false no closure is recorded and no
// gradient buffer is allocated, which is the inference mode.
type Graph struct {
	NeedsBackprop bool
	backprop      []func()
}

func NewGraph(needsBackprop bool) *Graph {
	return &Graph{NeedsBackprop: needsBackprop}
}

// Len is the number of recorded backward closures.
func (g *Graph) Len() int { return len(g.backprop) }

// Backward seeds d(loss)/d(loss) = 1 and runs the tape in reverse.
// loss must be a (1 x 1) node produced on this graph.
func (g *Graph) Backward(loss *Node) {
	if !g.NeedsBackprop {
		panic("autograd: Backward on a graph that does not record")
	}
	if r, c := loss.W.Dims(); r != 1 || c != 1 {
		panic("autograd: Backward expects a (1 x 1) loss")
	}
	loss.DW.Set(0, 0, 1)
	for i := len(g.backprop) - 1; i >= 0; i-- {
		g.backprop[i]()
	}
	g.backprop = g.backprop[:0]
}

// Constant wraps m as an input that never receives a gradient.
func (g *Graph) Constant(m *mat.Dense) *Node {
	return &Node{W: m}
}

func (g *Graph) newNode(r, c int) *Node {
	n := &Node{W: mat.NewDense(r, c, nil)}
	if g.NeedsBackprop {
		n.DW = mat.NewDense(r, c, nil)
	}
	return n
}

func (g *Graph) record(out *Node, fn func()) {
	if g.NeedsBackprop && out.DW != nil {
		g.backprop = append(g.backprop, fn)
	}
}

func accumulate(dst *Node, delta mat.Matrix) {
	if dst.DW != nil {
		dst.DW.Add(dst.DW, delta)
	}
}

// Mul is the matrix-vector product m * x.
func (g *Graph) Mul(m, x *Node) *Node {
	r, k := m.W.Dims()
	xr, xc := x.W.Dims()
	if k != xr {
		panic("autograd: Mul shape mismatch")
	}
	out := g.newNode(r, xc)
	out.W.Mul(m.W, x.W)
	g.record(out, func() {
		if m.DW != nil {
			var dm mat.Dense
			dm.Mul(out.DW, x.W.T())
			accumulate(m, &dm)
		}
		if x.DW != nil {
			var dx mat.Dense
			dx.Mul(m.W.T(), out.DW)
			accumulate(x, &dx)
		}
	})
	return out
}

func (g *Graph) Add(a, b *Node) *Node {
	r, c := a.W.Dims()
	out := g.newNode(r, c)
	out.W.Add(a.W, b.W)
	g.record(out, func() {
		accumulate(a, out.DW)
		accumulate(b, out.DW)
	})
	return out
}

// Eltmul is the element-wise (Hadamard) product.
func (g *Graph) Eltmul(a, b *Node) *Node {
	r, c := a.W.Dims()
	out := g.newNode(r, c)
	out.W.MulElem(a.W, b.W)
	g.record(out, func() {
		if a.DW != nil {
			var da mat.Dense
			da.MulElem(b.W, out.DW)
			accumulate(a, &da)
		}
		if b.DW != nil {
			var db mat.Dense
			db.MulElem(a.W, out.DW)
			accumulate(b, &db)
		}
	})
	return out
}

func (g *Graph) Sigmoid(a *Node) *Node {
	r, c := a.W.Dims()
	out := g.newNode(r, c)
	out.W.Apply(func(_, _ int, v float64) float64 {
		return 1.0 / (1.0 + math.Exp(-v))
	}, a.W)
	g.record(out, func() {
		if a.DW == nil {
			return
		}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				s := out.W.At(i, j)
				a.DW.Set(i, j, a.DW.At(i, j)+s*(1-s)*out.DW.At(i, j))
			}
		}
	})
	return out
}

func (g *Graph) Tanh(a *Node) *Node {
	r, c := a.W.Dims()
	out := g.newNode(r, c)
	out.W.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, a.W)
	g.record(out, func() {
		if a.DW == nil {
			return
		}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				t := out.W.At(i, j)
				a.DW.Set(i, j, a.DW.At(i, j)+(1-t*t)*out.DW.At(i, j))
			}
		}
	})
	return out
}

// RowSlice returns rows [i, j) of a column vector.
func (g *Graph) RowSlice(a *Node, i, j int) *Node {
	_, c := a.W.Dims()
	out := g.newNode(j-i, c)
	out.W.Copy(a.W.Slice(i, j, 0, c))
	g.record(out, func() {
		if a.DW == nil {
			return
		}
		view := a.DW.Slice(i, j, 0, c).(*mat.Dense)
		view.Add(view, out.DW)
	})
	return out
}

// Mask multiplies a column vector by fixed per-row factors (dropout).
func (g *Graph) Mask(a *Node, mask []float64) *Node {
	r, c := a.W.Dims()
	if len(mask) != r || c != 1 {
		panic("autograd: Mask shape mismatch")
	}
	out := g.newNode(r, 1)
	for i := 0; i < r; i++ {
		out.W.Set(i, 0, a.W.At(i, 0)*mask[i])
	}
	g.record(out, func() {
		if a.DW == nil {
			return
		}
		for i := 0; i < r; i++ {
			a.DW.Set(i, 0, a.DW.At(i, 0)+mask[i]*out.DW.At(i, 0))
		}
	})
	return out
}

// LogSoftmax normalises a column vector into log-probabilities.
func (g *Graph) LogSoftmax(a *Node) *Node {
	r, _ := a.W.Dims()
	out := g.newNode(r, 1)
	out.W.Copy(utils.LogSoftmaxCol(a.W))
	g.record(out, func() {
		if a.DW == nil {
			return
		}
		// d x_i = d y_i - softmax_i * sum_j d y_j
		sum := floats.Sum(utils.Col(out.DW))
		for i := 0; i < r; i++ {
			p := math.Exp(out.W.At(i, 0))
			a.DW.Set(i, 0, a.DW.At(i, 0)+out.DW.At(i, 0)-p*sum)
		}
	})
	return out
}

// NLL is the negative log-likelihood of class idx under log-probabilities a,
// returned as a (1 x 1) node.
func (g *Graph) NLL(a *Node, idx int) *Node {
	out := g.newNode(1, 1)
	out.W.Set(0, 0, -a.W.At(idx, 0))
	g.record(out, func() {
		if a.DW == nil {
			return
		}
		a.DW.Set(idx, 0, a.DW.At(idx, 0)-out.DW.At(0, 0))
	})
	return out
}
