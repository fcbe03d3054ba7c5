package lstm

import (
	"errors"
	"sync"
)

// GenerateParallel samples one line per seed using up to workers goroutines.
// Parameters are shared read-only; results come back in seed order. With
// workers <= 1 it is GenerateMany.
func (m *Model) GenerateParallel(seeds string, maxLength, workers int) ([]string, error) {
	rs := []rune(seeds)
	if workers <= 1 || len(rs) <= 1 {
		return m.GenerateMany(seeds, maxLength)
	}
	workers = min(workers, len(rs))

	out := make([]string, len(rs))
	errs := make([]error, len(rs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i], errs[i] = m.Generate(rs[i], maxLength)
			}
		}()
	}
	for i := range rs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
