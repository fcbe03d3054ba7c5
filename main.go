package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/IO"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/codec"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/lstm"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/params"
)

var (
	cfg = params.Default()

	// blasBackend is replaced by accelerate.go when built with -tags netlib.
	blasBackend = "gonum"

	filesFlag   string
	layersFlag  string
	cliFlag     bool
	disableCUDA bool
	verbose     bool
	quiet       bool
)

func init() {
	flag.StringVar(&filesFlag, "files", "", "Comma-separated corpus files (positional arguments are added too)")
	flag.StringVar(&cfg.SentenceDelimiter, "delimiter", cfg.SentenceDelimiter, "Sentence delimiter used to split the corpus")
	flag.StringVar(&layersFlag, "layers", joinInts(cfg.LayerWidths), "Comma-separated LSTM layer widths")
	flag.IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "Number of training examples to draw")
	flag.IntVar(&cfg.PrintEvery, "print-every", cfg.PrintEvery, "Log the loss every N iterations")
	flag.IntVar(&cfg.PlotEvery, "plot-every", cfg.PlotEvery, "Average the loss over N iterations for the loss log")
	flag.Float64Var(&cfg.LearningRate, "lr", cfg.LearningRate, "SGD learning rate")
	flag.Float64Var(&cfg.Dropout, "dropout", cfg.Dropout, "Dropout on the output layer while training")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for weights, dropout and example selection")
	flag.IntVar(&cfg.MaxSampleLength, "max-length", cfg.MaxSampleLength, "Maximum characters generated per line")
	flag.StringVar(&cfg.SampleSeeds, "samples", cfg.SampleSeeds, "Seed letters sampled after training")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Goroutines used for sampling")
	flag.StringVar(&cfg.LossLogPath, "loss-log", cfg.LossLogPath, "CSV file for averaged losses (empty disables)")
	flag.BoolVar(&cliFlag, "cli", false, "Start the interactive sampler after training")
	flag.BoolVar(&disableCUDA, "disable-cuda", false, "Accepted for compatibility; training always runs on the CPU")
	flag.BoolVar(&verbose, "v", false, "Debug logging")
	flag.BoolVar(&quiet, "q", false, "Hide the progress bar")
}

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(log); err != nil {
		log.WithError(err).Error("exiting")
		os.Exit(1)
	}
}

func run(log *logrus.Logger) error {
	widths, err := parseInts(layersFlag)
	if err != nil {
		return fmt.Errorf("-layers: %w", err)
	}
	cfg.LayerWidths = widths

	if disableCUDA {
		log.Info("CUDA disabled")
	}
	log.WithFields(logrus.Fields{"device": cfg.Device, "blas": blasBackend}).Info("Using CPU mode")

	files := append(splitList(filesFlag), flag.Args()...)
	if len(files) == 0 {
		return fmt.Errorf("no corpus files given")
	}

	alphabet := codec.Default()
	lines, err := IO.LoadCorpus(files, cfg.SentenceDelimiter, alphabet, log)
	if err != nil {
		return err
	}

	model, err := lstm.BuildModel(alphabet.Size(), cfg.LayerWidths, alphabet.Size(), cfg, alphabet)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"layers":     cfg.LayerWidths,
		"parameters": model.NumParams(),
		"lr":         cfg.LearningRate,
		"dropout":    cfg.Dropout,
		"sentences":  len(lines),
	}).Info("model built")

	var lossLog *IO.LossLog
	if cfg.LossLogPath != "" {
		if lossLog, err = IO.CreateLossLog(cfg.LossLogPath); err != nil {
			return err
		}
	}

	var progress io.Writer = os.Stdout
	if quiet {
		progress = nil
	}
	_, trainErr := TrainLines(model, lines, cfg, log, progress, lossLog)
	if lossLog != nil {
		if err := lossLog.Close(); err != nil && trainErr == nil {
			trainErr = err
		}
	}
	if trainErr != nil {
		return trainErr
	}

	samples, err := model.GenerateParallel(cfg.SampleSeeds, cfg.MaxSampleLength, cfg.Workers)
	if err != nil {
		return err
	}
	for _, s := range samples {
		fmt.Println(s)
	}

	if cliFlag {
		SampleCLI(model, cfg, os.Stdin, os.Stdout)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, p := range splitList(s) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
