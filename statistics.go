package titans

import (
	"encoding/csv"
	"os"
	"strconv"
)

// Statistics is the per-epoch training history.
type Statistics struct {
	Epochs     []int
	Costs      []float32
	Accuracies []float32
}

func makeStatistics() Statistics {
	return Statistics{
		Epochs:     make([]int, 0, 64),
		Costs:      make([]float32, 0, 64),
		Accuracies: make([]float32, 0, 64),
	}
}

func (s *Statistics) update(epoch int, cost, accuracy float32) {
	s.Epochs = append(s.Epochs, epoch)
	s.Costs = append(s.Costs, cost)
	s.Accuracies = append(s.Accuracies, accuracy)
}

// Dump writes the history as CSV.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"epoch", "cost", "accuracy"}); err != nil {
		return err
	}
	for i, epoch := range s.Epochs {
		record := []string{
			strconv.Itoa(epoch),
			strconv.FormatFloat(float64(s.Costs[i]), 'f', 5, 32),
			strconv.FormatFloat(float64(s.Accuracies[i]), 'f', 3, 32),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
