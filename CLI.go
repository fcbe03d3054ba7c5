package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/lstm"
	"github.com/anthony-darienzo/I-Cant-Believe-Its-Not-English/params"
)

// SampleCLI reads seed letters from r and writes one generated line per
// letter to w. Typing "exit" (or closing the input) quits.
func SampleCLI(m *lstm.Model, cfg params.TrainingConfig, r io.Reader, w io.Writer) {
	reader := bufio.NewReader(r)
	fmt.Fprintln(w, "Sampler ready. Type seed letters, or 'exit' to quit.")
	for {
		fmt.Fprint(w, "Seeds: ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "exit" {
			return
		}
		if input != "" {
			lines, genErr := m.GenerateParallel(input, cfg.MaxSampleLength, cfg.Workers)
			if genErr != nil {
				fmt.Fprintln(w, "Error:", genErr)
			}
			for _, line := range lines {
				fmt.Fprintln(w, line)
			}
		}
		if err != nil {
			fmt.Fprintln(w)
			return
		}
	}
}
