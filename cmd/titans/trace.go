package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/titans-ml/titans/steplog"
)

var (
	traceIndex int
	traceCount int
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Run the five-module cognitive pipeline over test images",
	Long: `Run test images through all five cognitive modules: perception,
memory, abstraction, reasoning and agency. Each stage appends one
hash-chained step to the step log.

Example usage:
  titans trace --model titans.gob --index 0 --count 3`,
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringVar(&cfg.DataDir, "data", "", "Directory with the MNIST IDX files")
	traceCmd.Flags().StringVar(&cfg.Model, "model", "", "Trained weights to load")
	traceCmd.Flags().StringVar(&cfg.StepsDir, "steps", "", "Step log directory")
	traceCmd.Flags().IntVar(&traceIndex, "index", 0, "First test image to trace")
	traceCmd.Flags().IntVar(&traceCount, "count", 1, "How many consecutive images to trace")
}

func runTrace(cmd *cobra.Command, args []string) error {
	c, err := loadCognition(nil)
	if err != nil {
		return err
	}
	defer c.Close()

	sl, err := steplog.Open(cfg.StepsDir)
	if err != nil {
		return err
	}
	defer sl.Close()
	c.SetStepLog(sl)

	ctx := context.Background()
	for i := 0; i < traceCount; i++ {
		image, label, _, _, err := testImage(traceIndex + i)
		if err != nil {
			return err
		}
		res, err := c.RunTrace(ctx, image)
		if err != nil {
			return err
		}
		fmt.Printf("trace %s: image %d (label %d)\n", res.ID, traceIndex+i, label)
		fmt.Printf("  percept    class %d, confidence %.4f\n", res.Percept.Class, res.Percept.Confidence)
		fmt.Printf("  memory     stored %t, surprise %.4f\n", res.Stored, res.Surprise)
		fmt.Printf("  concept    %s\n", res.Concept)
		fmt.Printf("  related    %v\n", res.Related)
		fmt.Printf("  %s (%v)\n", res.Decision, res.Took)
	}
	return nil
}
