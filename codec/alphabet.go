// Package codec maps characters to dense indices and back, and builds the
// one-hot inputs and shifted targets the recurrent stack trains on.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/utils"
)

var (
	ErrUnknownSymbol        = errors.New("unknown symbol")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// EndSymbol terminates every line (ASCII end-of-text).
const EndSymbol = '\x03'

const (
	digits      = "0123456789"
	letters     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	whitespace  = " \t\n\r\x0b\x0c"
	printable   = digits + letters + punctuation + whitespace
)

// Alphabet is an ordered, immutable symbol set. The end symbol is always the
// last entry, so EndIndex() == Size()-1.
type Alphabet struct {
	symbols []rune
	index   map[rune]int
}

// Default returns printable ASCII plus whitespace, then the end symbol.
// Repeated characters keep their first slot.
func Default() *Alphabet {
	a := &Alphabet{index: make(map[rune]int)}
	for _, r := range printable + whitespace + " " {
		if _, ok := a.index[r]; ok {
			continue
		}
		a.index[r] = len(a.symbols)
		a.symbols = append(a.symbols, r)
	}
	a.index[EndSymbol] = len(a.symbols)
	a.symbols = append(a.symbols, EndSymbol)
	return a
}

// NewAlphabet builds an alphabet from symbols in order and appends the end
// symbol. Duplicates, an empty set, or an explicit end symbol are rejected.
func NewAlphabet(symbols string) (*Alphabet, error) {
	if symbols == "" {
		return nil, fmt.Errorf("%w: empty alphabet", ErrInvalidConfiguration)
	}
	a := &Alphabet{index: make(map[rune]int)}
	for _, r := range symbols {
		if r == EndSymbol {
			return nil, fmt.Errorf("%w: end symbol is reserved", ErrInvalidConfiguration)
		}
		if _, ok := a.index[r]; ok {
			return nil, fmt.Errorf("%w: duplicate symbol %q", ErrInvalidConfiguration, r)
		}
		a.index[r] = len(a.symbols)
		a.symbols = append(a.symbols, r)
	}
	a.index[EndSymbol] = len(a.symbols)
	a.symbols = append(a.symbols, EndSymbol)
	return a, nil
}

// Size is the vocabulary size V, end symbol included.
func (a *Alphabet) Size() int { return len(a.symbols) }

func (a *Alphabet) EndIndex() int { return len(a.symbols) - 1 }

// Symbols returns a copy of the ordered symbol list.
func (a *Alphabet) Symbols() []rune {
	return append([]rune(nil), a.symbols...)
}

func (a *Alphabet) Contains(r rune) bool {
	_, ok := a.index[r]
	return ok
}

func (a *Alphabet) Index(r rune) (int, error) {
	i, ok := a.index[r]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownSymbol, r)
	}
	return i, nil
}

func (a *Alphabet) DecodeIndex(i int) (rune, error) {
	if i < 0 || i >= len(a.symbols) {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(a.symbols))
	}
	return a.symbols[i], nil
}

// Keep drops every rune the alphabet cannot encode. The end symbol is dropped
// too: it only ever appears as a target.
func (a *Alphabet) Keep(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r != EndSymbol && a.Contains(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// OneHot encodes a single symbol as a (V x 1) column.
func (a *Alphabet) OneHot(r rune) (*mat.Dense, error) {
	i, err := a.Index(r)
	if err != nil {
		return nil, err
	}
	return utils.OneHot(len(a.symbols), i), nil
}

// EncodeOneHot encodes s as one (V x 1) column per character.
func (a *Alphabet) EncodeOneHot(s string) ([]*mat.Dense, error) {
	out := make([]*mat.Dense, 0, len(s))
	for pos, r := range []rune(s) {
		x, err := a.OneHot(r)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", pos, err)
		}
		out = append(out, x)
	}
	return out, nil
}

// EncodeTargets returns the indices of s[1:] followed by the end index, so
// target i is the character that follows input i.
func (a *Alphabet) EncodeTargets(s string) ([]int, error) {
	rs := []rune(s)
	if len(rs) == 0 {
		return nil, fmt.Errorf("%w: empty sequence", ErrInvalidConfiguration)
	}
	out := make([]int, 0, len(rs))
	for pos, r := range rs[1:] {
		i, err := a.Index(r)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", pos+1, err)
		}
		out = append(out, i)
	}
	if _, err := a.Index(rs[0]); err != nil {
		return nil, fmt.Errorf("position 0: %w", err)
	}
	return append(out, a.EndIndex()), nil
}

// EncodeExample returns the (input, target) training pair for one line.
func (a *Alphabet) EncodeExample(s string) ([]*mat.Dense, []int, error) {
	targets, err := a.EncodeTargets(s)
	if err != nil {
		return nil, nil, err
	}
	inputs, err := a.EncodeOneHot(s)
	if err != nil {
		return nil, nil, err
	}
	return inputs, targets, nil
}
