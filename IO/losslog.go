package IO

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LossLog writes averaged training losses as CSV rows of
// (point, iteration, avg_loss) so the curve can be plotted elsewhere.
type LossLog struct {
	c      io.Closer
	w      *csv.Writer
	points int
}

// CreateLossLog creates or truncates path and writes the header.
func CreateLossLog(path string) (*LossLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create loss log: %w", err)
	}
	l := NewLossLog(f)
	l.c = f
	return l, nil
}

func NewLossLog(w io.Writer) *LossLog {
	l := &LossLog{w: csv.NewWriter(w)}
	l.w.Write([]string{"point", "iteration", "avg_loss"})
	return l
}

func (l *LossLog) Append(iteration int, avg float64) error {
	l.points++
	return l.w.Write([]string{
		strconv.Itoa(l.points),
		strconv.Itoa(iteration),
		strconv.FormatFloat(avg, 'f', 6, 64),
	})
}

// Points is the number of rows appended so far.
func (l *LossLog) Points() int { return l.points }

func (l *LossLog) Close() error {
	l.w.Flush()
	err := l.w.Error()
	if l.c != nil {
		if cerr := l.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
