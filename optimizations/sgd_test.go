package optimizations

import (
	"testing"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/autograd"
)

func TestSGDStep(t *testing.T) {
	a := autograd.NewParam(2, 1, []float64{1, -1})
	b := autograd.NewParam(1, 2, []float64{0.5, 0.25})
	a.DW.Set(0, 0, 2)
	a.DW.Set(1, 0, -4)
	b.DW.Set(0, 1, 1)

	SGD{LearningRate: 0.5}.Step([]*autograd.Node{a, b})

	want := map[string][]float64{
		"a": {0, 1},
		"b": {0.5, -0.25},
	}
	got := map[string][]float64{
		"a": {a.W.At(0, 0), a.W.At(1, 0)},
		"b": {b.W.At(0, 0), b.W.At(0, 1)},
	}
	for k := range want {
		for i := range want[k] {
			if got[k][i] != want[k][i] {
				t.Errorf("%s[%d] = %v, want %v", k, i, got[k][i], want[k][i])
			}
		}
	}
	// gradients are left for the caller to clear
	if a.DW.At(0, 0) != 2 {
		t.Errorf("Step modified the gradient")
	}
}

func TestSGDShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on shape mismatch")
		}
	}()
	p := autograd.NewParam(2, 1, nil)
	g := autograd.NewParam(1, 2, nil)
	SGDUpdateInPlace(p.W, g.W, 0.1)
}
