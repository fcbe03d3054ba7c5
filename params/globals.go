package params

// TrainingConfig is everything the model and the training driver need.
// It is passed explicitly; nothing in the core reads package state.
type TrainingConfig struct {
	// Core network parameters
	LayerWidths []int   // output width of each LSTM layer, in stack order
	Dropout     float64 // drop probability on the output head, training only

	// Optimization
	LearningRate float64 // plain SGD step size
	Seed         uint64  // weight init and dropout masks

	// Driver
	Iterations      int    // training examples drawn
	PrintEvery      int    // log a line every N iterations
	PlotEvery       int    // average the loss over N iterations for the loss log
	MaxSampleLength int    // cap on generated characters per line
	SampleSeeds     string // one generated line per seed letter after training
	Workers         int    // goroutines used to sample lines (<=1 is sequential)

	// Corpus
	SentenceDelimiter string
	LossLogPath       string // CSV of averaged losses; "" disables

	// Device is kept for configuration parity; only "cpu" exists.
	Device string
}

// Default mirrors the reference run.
func Default() TrainingConfig {
	return TrainingConfig{
		LayerWidths: []int{512},
		Dropout:     0.5,

		LearningRate: 0.0005,
		Seed:         1,

		Iterations:      10_000,
		PrintEvery:      500,
		PlotEvery:       50,
		MaxSampleLength: 180,
		SampleSeeds:     "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		Workers:         1,

		SentenceDelimiter: ".",
		LossLogPath:       "training_log.csv",

		Device: "cpu",
	}
}
