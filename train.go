package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/IO"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/lstm"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/params"
)

// TrainLines draws cfg.Iterations random lines and trains on each. Every
// PlotEvery iterations the loss of the successful steps is averaged into the
// returned history (and the loss log, when given). A line that diverges is
// skipped and counts towards neither the printed loss nor the average.
func TrainLines(m *lstm.Model, lines []string, cfg params.TrainingConfig, log logrus.FieldLogger, progress io.Writer, lossLog *IO.LossLog) ([]float64, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no training lines", lstm.ErrInvalidConfiguration)
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, 0xc0de))
	start := time.Now()

	var (
		history   []float64
		totalLoss float64
		succeeded int
		diverged  int
	)
	for iter := 1; iter <= cfg.Iterations; iter++ {
		if progress != nil {
			IO.PrintProgress(progress, iter, cfg.Iterations)
		}

		line := IO.RandomChoice(lines, rng)
		_, loss, err := m.TrainOnString(line)
		ok := err == nil
		switch {
		case errors.Is(err, lstm.ErrNumericDivergence):
			diverged++
			log.WithFields(logrus.Fields{"iteration": iter, "line": line}).Warn("skipping divergent example")
		case err != nil:
			return history, fmt.Errorf("iteration %d: %w", iter, err)
		default:
			totalLoss += loss
			succeeded++
		}

		if ok && cfg.PrintEvery > 0 && iter%cfg.PrintEvery == 0 {
			log.WithFields(logrus.Fields{
				"elapsed":   IO.TimeSince(start),
				"iteration": iter,
				"percent":   iter * 100 / cfg.Iterations,
				"loss":      fmt.Sprintf("%.4f", loss),
			}).Info("training")
		}
		if cfg.PlotEvery > 0 && iter%cfg.PlotEvery == 0 {
			if succeeded > 0 {
				avg := totalLoss / float64(succeeded)
				history = append(history, avg)
				if lossLog != nil {
					if err := lossLog.Append(iter, avg); err != nil {
						return history, err
					}
				}
			}
			totalLoss, succeeded = 0, 0
		}
	}
	if progress != nil {
		fmt.Fprintln(progress)
	}

	log.WithFields(logrus.Fields{
		"iterations": cfg.Iterations,
		"diverged":   diverged,
		"duration":   time.Since(start).Round(time.Millisecond),
		"last_loss":  m.Loss(),
	}).Info("training finished")
	return history, nil
}
