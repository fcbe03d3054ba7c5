package lstm

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/autograd"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/codec"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/params"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/utils"
)

func testConfig(widths ...int) params.TrainingConfig {
	return params.TrainingConfig{
		LayerWidths:  widths,
		Dropout:      0,
		LearningRate: 0.1,
		Seed:         42,
	}
}

func mustModel(t *testing.T, a *codec.Alphabet, cfg params.TrainingConfig) *Model {
	t.Helper()
	m, err := BuildModel(a.Size(), cfg.LayerWidths, a.Size(), cfg, a)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	return m
}

func mustAlphabet(t *testing.T, s string) *codec.Alphabet {
	t.Helper()
	a, err := codec.NewAlphabet(s)
	if err != nil {
		t.Fatalf("NewAlphabet(%q): %v", s, err)
	}
	return a
}

func vec(src rand.Source, n int) *mat.Dense {
	return mat.NewDense(n, 1, utils.RandomArray(n, 1, src))
}

// Numerical vs analytical gradient check on every weight of a cell driven
// through one absent step and one present step.
func TestCellGradCheck(t *testing.T) {
	src := rand.NewPCG(7, 11)
	cell := NewCell(4, 3, src)
	x1, x2 := vec(src, 4), vec(src, 4)

	lossOf := func(g *autograd.Graph) *autograd.Node {
		s1 := cell.Step(g, g.Constant(x1), Absent())
		s2 := cell.Step(g, g.Constant(x2), s1)
		l := g.NLL(g.LogSoftmax(s2.C), 1)
		return g.Add(l, g.NLL(g.LogSoftmax(s2.H), 0))
	}

	for _, p := range cell.Params() {
		p.ZeroGrad()
	}
	g := autograd.NewGraph(true)
	g.Backward(lossOf(g))

	eval := func() float64 {
		return lossOf(autograd.NewGraph(false)).W.At(0, 0)
	}
	const eps, tol = 1e-5, 1e-6
	for pi, p := range cell.Params() {
		r, c := p.W.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				orig := p.W.At(i, j)
				p.W.Set(i, j, orig+eps)
				plus := eval()
				p.W.Set(i, j, orig-eps)
				minus := eval()
				p.W.Set(i, j, orig)

				num := (plus - minus) / (2 * eps)
				if ana := p.DW.At(i, j); math.Abs(num-ana) > tol {
					t.Fatalf("param %d (%d,%d): numerical %.8f analytical %.8f", pi, i, j, num, ana)
				}
			}
		}
	}
}

// The absent path gives the same numbers as a zero state but records a
// shorter tape: no recurrent product and no forget gate.
func TestAbsentIsOwnCodePath(t *testing.T) {
	src := rand.NewPCG(1, 2)
	cell := NewCell(5, 4, src)
	x := vec(src, 5)

	ga := autograd.NewGraph(true)
	absent := cell.Step(ga, ga.Constant(x), Absent())

	gz := autograd.NewGraph(true)
	zero := Present(gz.Constant(mat.NewDense(4, 1, nil)), gz.Constant(mat.NewDense(4, 1, nil)))
	zeroed := cell.Step(gz, gz.Constant(x), zero)

	if !mat.EqualApprox(absent.H.W, zeroed.H.W, 1e-12) || !mat.EqualApprox(absent.C.W, zeroed.C.W, 1e-12) {
		t.Fatalf("absent and zero state disagree")
	}
	if ga.Len() >= gz.Len() {
		t.Fatalf("absent path recorded %d ops, zero state %d", ga.Len(), gz.Len())
	}
}

func TestStatePresence(t *testing.T) {
	n := autograd.NewParam(1, 1, nil)
	if Absent().IsPresent() {
		t.Errorf("Absent is present")
	}
	if (State{}).IsPresent() {
		t.Errorf("zero State is present")
	}
	if Present(n, nil).IsPresent() {
		t.Errorf("state without a cell vector is present")
	}
	if !Present(n, n).IsPresent() {
		t.Errorf("Present(h, c) is not present")
	}
}

func TestStackChainsCellState(t *testing.T) {
	src := rand.NewPCG(3, 4)
	s, err := NewStack(6, []int{3, 5}, src)
	if err != nil {
		t.Fatal(err)
	}
	if _, in := s.Cells[1].Wih.W.Dims(); in != 3 {
		t.Fatalf("layer 1 input width %d, want 3", in)
	}
	x := vec(src, 6)

	g := autograd.NewGraph(false)
	states, err := s.Step(g, g.Constant(x), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Fatalf("got %d states", len(states))
	}

	fromCell := s.Cells[1].Step(g, states[0].C, Absent())
	if !mat.Equal(fromCell.C.W, states[1].C.W) {
		t.Fatalf("layer 1 is not fed layer 0's cell state")
	}
	fromHidden := s.Cells[1].Step(g, states[0].H, Absent())
	if mat.Equal(fromHidden.C.W, states[1].C.W) {
		t.Fatalf("layer 1 output matches hidden-state chaining")
	}
}

func TestStackMixedState(t *testing.T) {
	src := rand.NewPCG(5, 6)
	s, err := NewStack(4, []int{3, 3}, src)
	if err != nil {
		t.Fatal(err)
	}
	x1, x2 := vec(src, 4), vec(src, 4)

	g := autograd.NewGraph(false)
	first, err := s.Step(g, g.Constant(x1), nil)
	if err != nil {
		t.Fatal(err)
	}
	mixed, err := s.Step(g, g.Constant(x2), States{first[0], Absent()})
	if err != nil {
		t.Fatal(err)
	}

	l0 := s.Cells[0].Step(g, g.Constant(x2), first[0])
	l1 := s.Cells[1].Step(g, l0.C, Absent())
	if !mat.Equal(mixed[0].C.W, l0.C.W) || !mat.Equal(mixed[1].C.W, l1.C.W) {
		t.Fatalf("layers did not check their own state independently")
	}

	if _, err := s.Step(g, g.Constant(x2), States{first[0]}); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("short state list: got %v", err)
	}
}

func TestHeadDropoutOnlyWhenTraining(t *testing.T) {
	src := rand.NewPCG(8, 9)
	h := NewHead(6, 10, 0.5, src, rand.NewPCG(1, 1))
	plain := NewHead(6, 10, 0, src, nil)
	plain.Weights, plain.Bias = h.Weights, h.Bias
	c := vec(src, 6)

	g := autograd.NewGraph(false)
	eval := h.Project(g, g.Constant(c), false)
	want := plain.Project(g, g.Constant(c), true)
	if !mat.Equal(eval.W, want.W) {
		t.Fatalf("dropout applied outside training")
	}

	train := h.Project(g, g.Constant(c), true)
	if mat.Equal(train.W, eval.W) {
		t.Fatalf("dropout not applied during training")
	}
	for _, out := range []*autograd.Node{eval, train} {
		probs := utils.Col(out.W)
		for i := range probs {
			probs[i] = math.Exp(probs[i])
		}
		if s := floats.Sum(probs); math.Abs(s-1) > 1e-9 {
			t.Fatalf("probabilities sum to %v", s)
		}
	}
}

func TestBuildModelInvalidConfiguration(t *testing.T) {
	a := codec.Default()
	v := a.Size()
	good := testConfig(8)
	cases := map[string]func() error{
		"no layers": func() error {
			_, err := BuildModel(v, nil, v, good, a)
			return err
		},
		"zero width": func() error {
			_, err := BuildModel(v, []int{8, 0}, v, good, a)
			return err
		},
		"input width": func() error {
			_, err := BuildModel(v-1, []int{8}, v, good, a)
			return err
		},
		"output width": func() error {
			_, err := BuildModel(v, []int{8}, v+1, good, a)
			return err
		},
		"dropout": func() error {
			cfg := good
			cfg.Dropout = 1
			_, err := BuildModel(v, []int{8}, v, cfg, a)
			return err
		},
		"learning rate": func() error {
			cfg := good
			cfg.LearningRate = 0
			_, err := BuildModel(v, []int{8}, v, cfg, a)
			return err
		},
	}
	for name, build := range cases {
		if err := build(); !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("%s: got %v, want ErrInvalidConfiguration", name, err)
		}
	}

	m, err := New(testConfig(8, 4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// 2 cells of 4 nodes each, plus the head's weights and bias
	if got := len(m.Params()); got != 10 {
		t.Fatalf("got %d parameter nodes, want 10", got)
	}
}

func TestTrainOnSequenceRejectsBadInput(t *testing.T) {
	m := mustModel(t, codec.Default(), testConfig(8))
	inputs, targets, err := m.Alphabet().EncodeExample("abc")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := m.TrainOnSequence(nil, nil); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("empty sequence: got %v", err)
	}
	if _, _, err := m.TrainOnSequence(inputs, targets[:2]); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("length mismatch: got %v", err)
	}
	bad := append([]int(nil), targets...)
	bad[1] = m.Alphabet().Size()
	if _, _, err := m.TrainOnSequence(inputs, bad); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("target out of range: got %v", err)
	}
	if _, _, err := m.TrainOnString("café"); !errors.Is(err, ErrUnknownSymbol) || !errors.Is(err, codec.ErrUnknownSymbol) {
		t.Errorf("unknown symbol: got %v", err)
	}
	if m.StackCalls() != 0 {
		t.Errorf("rejected input reached the stack %d times", m.StackCalls())
	}
}

func TestStackCalledOncePerStep(t *testing.T) {
	m := mustModel(t, codec.Default(), testConfig(8, 8))
	if _, _, err := m.TrainOnString("hello"); err != nil {
		t.Fatal(err)
	}
	if got := m.StackCalls(); got != 5 {
		t.Fatalf("stack called %d times for 5 characters", got)
	}
}

func TestTrainingIsDeterministic(t *testing.T) {
	a := codec.Default()
	m1 := mustModel(t, a, testConfig(12))
	m2 := mustModel(t, a, testConfig(12))

	inputs, err := a.EncodeOneHot("Deterministic")
	if err != nil {
		t.Fatal(err)
	}
	r1, err := m1.Run(inputs)
	if err != nil {
		t.Fatal(err)
	}
	r2, _ := m2.Run(inputs)
	for i := range r1 {
		if !mat.Equal(r1[i], r2[i]) {
			t.Fatalf("step %d differs between identically seeded runs", i)
		}
	}

	for _, line := range []string{"one line", "another"} {
		_, l1, err := m1.TrainOnString(line)
		if err != nil {
			t.Fatal(err)
		}
		_, l2, _ := m2.TrainOnString(line)
		if l1 != l2 {
			t.Fatalf("loss %v != %v", l1, l2)
		}
	}
	g1, _ := m1.Generate('T', 30)
	g2, _ := m2.Generate('T', 30)
	if g1 != g2 {
		t.Fatalf("generated %q and %q", g1, g2)
	}
}

func TestConvergesOnRepeatedCharacter(t *testing.T) {
	m := mustModel(t, codec.Default(), testConfig(16))
	_, first, err := m.TrainOnString("aaaa")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 500; i++ {
		if _, _, err := m.TrainOnString("aaaa"); err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
	}
	if last := m.Loss(); last > 0.1*first {
		t.Fatalf("loss went from %.4f to %.4f", first, last)
	}
}

// Vocabulary {a, b, end}: "ab" trains towards b then end, and a single update
// lowers the loss of the first step.
func TestSingleUpdateLowersFirstStepLoss(t *testing.T) {
	a := mustAlphabet(t, "ab")
	cfg := testConfig(4)
	cfg.LearningRate = 0.05
	cfg.Seed = 7
	m := mustModel(t, a, cfg)

	inputs, targets, err := a.EncodeExample("ab")
	if err != nil {
		t.Fatal(err)
	}
	if targets[0] != 1 || targets[1] != 2 {
		t.Fatalf("targets %v, want [1 2]", targets)
	}

	stepLoss := func() float64 {
		out, err := m.Run(inputs)
		if err != nil {
			t.Fatal(err)
		}
		return -out[0].At(targets[0], 0)
	}
	before := stepLoss()
	_, loss, err := m.TrainOnSequence(inputs, targets)
	if err != nil {
		t.Fatal(err)
	}
	if !utils.IsFinite(loss) || loss <= 0 {
		t.Fatalf("loss %v", loss)
	}
	if after := stepLoss(); after >= before {
		t.Fatalf("first-step loss %.6f -> %.6f", before, after)
	}
}

func TestDivergenceLeavesParametersUntouched(t *testing.T) {
	m := mustModel(t, codec.Default(), testConfig(8))
	m.head.Bias.W.Set(0, 0, math.NaN())

	snapshot := func() [][]uint64 {
		var out [][]uint64
		for _, p := range m.Params() {
			raw := p.W.RawMatrix().Data
			bits := make([]uint64, len(raw))
			for i, v := range raw {
				bits[i] = math.Float64bits(v)
			}
			out = append(out, bits)
		}
		return out
	}
	before := snapshot()

	if _, _, err := m.TrainOnString("boom"); !errors.Is(err, ErrNumericDivergence) {
		t.Fatalf("got %v, want ErrNumericDivergence", err)
	}
	after := snapshot()
	for i := range before {
		for j := range before[i] {
			if before[i][j] != after[i][j] {
				t.Fatalf("parameter %d entry %d changed", i, j)
			}
		}
	}
	if m.Loss() != 0 {
		t.Fatalf("loss recorded for a failed step: %v", m.Loss())
	}
}

func TestGenerateBounds(t *testing.T) {
	m := mustModel(t, codec.Default(), testConfig(16, 8))

	line, term, err := m.GenerateTrace('Q', 0)
	if err != nil || line != "Q" || term != TerminatedByLength {
		t.Fatalf("maxLength 0: %q %v %v", line, term, err)
	}

	for _, seed := range "AZq7" {
		line, err := m.Generate(seed, 25)
		if err != nil {
			t.Fatal(err)
		}
		if r, _ := utf8.DecodeRuneInString(line); r != seed {
			t.Fatalf("%q does not start with %q", line, seed)
		}
		if n := utf8.RuneCountInString(line); n > 26 {
			t.Fatalf("%q has %d runes", line, n)
		}
		if strings.ContainsRune(line, codec.EndSymbol) {
			t.Fatalf("%q contains the end symbol", line)
		}
		again, _ := m.Generate(seed, 25)
		if again != line {
			t.Fatalf("greedy decoding not deterministic: %q vs %q", line, again)
		}
	}

	if _, err := m.Generate('é', 5); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("unknown seed: got %v", err)
	}
	if _, err := m.Generate('A', -1); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("negative length: got %v", err)
	}
}

func TestGenerateStopsAtEndSymbol(t *testing.T) {
	a := mustAlphabet(t, "ab")
	cfg := testConfig(8)
	cfg.LearningRate = 0.5
	m := mustModel(t, a, cfg)
	for i := 0; i < 300; i++ {
		if _, _, err := m.TrainOnString("ab"); err != nil {
			t.Fatal(err)
		}
	}
	if m.Loss() > 0.1 {
		t.Fatalf("did not fit \"ab\": loss %.4f", m.Loss())
	}

	line, term, err := m.GenerateTrace('a', 10)
	if err != nil {
		t.Fatal(err)
	}
	if line != "ab" || term != TerminatedByEOS {
		t.Fatalf("got %q (%v), want \"ab\" (eos)", line, term)
	}
}

func TestGenerateManyAndLines(t *testing.T) {
	m := mustModel(t, codec.Default(), testConfig(8))
	lines, err := m.GenerateMany("ABC", 12)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	for i, seed := range "ABC" {
		if want, _ := m.Generate(seed, 12); lines[i] != want {
			t.Fatalf("line %d: %q vs %q", i, lines[i], want)
		}
	}

	n := 0
	for range m.Lines("ABCDEF", 12) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("consumer stopped after %d lines", n)
	}

	got, err := m.GenerateMany("AéB", 12)
	if !errors.Is(err, ErrUnknownSymbol) || len(got) != 1 {
		t.Fatalf("got %d lines and %v", len(got), err)
	}
}

func TestGenerateParallelMatchesSequential(t *testing.T) {
	m := mustModel(t, codec.Default(), testConfig(8))
	seeds := "ABCDEFGHIJ"
	want, err := m.GenerateMany(seeds, 20)
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.GenerateParallel(seeds, 20, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("seed %d: %q vs %q", i, got[i], want[i])
		}
	}
	if _, err := m.GenerateParallel("ABéC", 20, 4); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("got %v", err)
	}
}
