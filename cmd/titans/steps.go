package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/titans-ml/titans/steplog"
)

var stepsTraceID string

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "Inspect the hash-chained step log",
}

var stepsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute every trace's hash chain and report divergences",
	RunE:  runStepsVerify,
}

var stepsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the steps of one trace",
	RunE:  runStepsShow,
}

func init() {
	rootCmd.AddCommand(stepsCmd)
	stepsCmd.AddCommand(stepsVerifyCmd, stepsShowCmd)
	stepsCmd.PersistentFlags().StringVar(&cfg.StepsDir, "steps", "", "Step log directory")
	stepsCmd.PersistentFlags().StringVar(&stepsTraceID, "trace", "", "Limit to one trace ID")
}

func runStepsVerify(cmd *cobra.Command, args []string) error {
	sl, err := steplog.Open(cfg.StepsDir)
	if err != nil {
		return err
	}
	defer sl.Close()
	ctx := context.Background()

	traces := []string{stepsTraceID}
	if stepsTraceID == "" {
		if traces, err = sl.Traces(ctx); err != nil {
			return err
		}
	}

	var broken int
	for _, id := range traces {
		if _, err := sl.Verify(ctx, id); err != nil {
			broken++
			fmt.Printf("BROKEN  %s: %v\n", id, err)
			continue
		}
		fmt.Printf("ok      %s\n", id)
	}
	if broken > 0 {
		return fmt.Errorf("%d of %d traces have broken chains", broken, len(traces))
	}
	return nil
}

func runStepsShow(cmd *cobra.Command, args []string) error {
	if stepsTraceID == "" {
		return fmt.Errorf("--trace is required for show")
	}
	sl, err := steplog.Open(cfg.StepsDir)
	if err != nil {
		return err
	}
	defer sl.Close()

	steps, err := sl.ReadTrace(context.Background(), stepsTraceID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TS\tSOURCE\tEVENT\tDT_MS\tHASH\t")
	for _, s := range steps {
		ts := time.Unix(0, int64(s.TS*1e9)).UTC().Format(time.RFC3339Nano)
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%.12s\t\n", ts, s.Source, s.Event, s.Metrics["dt_ms"], s.Hash)
	}
	return w.Flush()
}
