package IO

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sugarme/tokenizer/normalizer"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/codec"
)

// asciiFold decomposes to NFD, then strips combining marks with the BERT
// normaliser (every other BERT step disabled).
var asciiFold = normalizer.NewSequence([]normalizer.Normalizer{
	normalizer.NewNFD(),
	normalizer.NewBertNormalizer(false, false, false, true),
})

// UnicodeToASCII folds accents away and keeps only the runes the alphabet
// can encode, so "café" becomes "cafe".
func UnicodeToASCII(s string, a *codec.Alphabet) (string, error) {
	n, err := asciiFold.Normalize(normalizer.NewNormalizedFrom(s))
	if err != nil {
		return "", fmt.Errorf("normalise %q: %w", s, err)
	}
	return a.Keep(n.GetNormalized()), nil
}

// SplitSentences splits text on delim and normalises every piece. Pieces
// that end up empty are dropped.
func SplitSentences(text, delim string, a *codec.Alphabet) ([]string, error) {
	if delim == "" {
		delim = "\n"
	}
	var out []string
	for _, piece := range strings.Split(text, delim) {
		folded, err := UnicodeToASCII(piece, a)
		if err != nil {
			return nil, err
		}
		if line := strings.TrimSpace(folded); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// ReadLines reads a whole file and returns its sentences.
func ReadLines(filename, delim string, a *codec.Alphabet) ([]string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", filename, err)
	}
	lines, err := SplitSentences(string(b), delim, a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return lines, nil
}

// LoadCorpus concatenates the sentences of every file, logging the running
// size after each one.
func LoadCorpus(files []string, delim string, a *codec.Alphabet, log logrus.FieldLogger) ([]string, error) {
	var lines []string
	for _, f := range files {
		more, err := ReadLines(f, delim, a)
		if err != nil {
			return nil, err
		}
		lines = append(lines, more...)
		if log != nil {
			log.WithFields(logrus.Fields{"file": f, "sentences": len(more), "total": len(lines)}).Info("loaded corpus file")
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: corpus is empty", codec.ErrInvalidConfiguration)
	}
	return lines, nil
}

// RandomChoice picks a uniformly random line.
func RandomChoice(lines []string, rng *rand.Rand) string {
	return lines[rng.IntN(len(lines))]
}
