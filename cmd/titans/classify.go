package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/titans-ml/titans"
	"github.com/titans-ml/titans/mnist"
)

var classifyIndex int

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify one test image with a trained network",
	Long: `Run one image of the MNIST test split through the trained capsule
network and report the per-class activation magnitudes.

Example usage:
  titans classify --model titans.gob --index 42`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVar(&cfg.DataDir, "data", "", "Directory with the MNIST IDX files")
	classifyCmd.Flags().StringVar(&cfg.Model, "model", "", "Trained weights to load")
	classifyCmd.Flags().IntVar(&classifyIndex, "index", 0, "Which test image to classify")
}

func runClassify(cmd *cobra.Command, args []string) error {
	c, err := loadCognition(nil)
	if err != nil {
		return err
	}
	defer c.Close()

	image, label, h, wid, err := testImage(classifyIndex)
	if err != nil {
		return err
	}

	p, err := c.Perception.Perceive(image)
	if err != nil {
		return err
	}

	fmt.Print(asciiDigit(image, h, wid))
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tMAGNITUDE\t")
	for j, mag := range p.Magnitudes {
		marker := ""
		if j == p.Class {
			marker = " <-"
		}
		fmt.Fprintf(w, "%d\t%.4f%s\t\n", j, mag, marker)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("Predicted %d (confidence %.4f), label %d\n", p.Class, p.Confidence, label)
	return nil
}

// loadCognition builds a Cognition from the shared config and loads the
// trained weights into it.
func loadCognition(mutate func(*titans.Config)) (*titans.Cognition, error) {
	conf := titans.DefaultConfig("titans")
	conf.NNConf.Classes = cfg.Classes
	if mutate != nil {
		mutate(&conf)
	}
	c := titans.New(conf)
	c.SetLogger(logger)
	if err := c.Load(cfg.Model); err != nil {
		c.Close()
		return nil, errors.Wrapf(err, "loading weights from %q", cfg.Model)
	}
	return c, nil
}

// testImage returns one image of the test split, its label and its
// spatial dimensions.
func testImage(index int) ([]float32, int, int, int, error) {
	xs, labels, _, err := mnist.Load(cfg.DataDir, "t10k", cfg.Classes)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	count := xs.Shape()[0]
	if index < 0 || index >= count {
		return nil, 0, 0, 0, errors.Errorf("index %d is outside the %d-image test split", index, count)
	}
	h, w := xs.Shape()[2], xs.Shape()[3]
	size := xs.Shape().TotalSize() / count
	data := xs.Data().([]float32)
	return data[index*size : (index+1)*size], labels[index], h, w, nil
}

// asciiDigit renders the image the way the frame encoders do, for
// terminal output.
func asciiDigit(image []float32, h, w int) string {
	const ramp = " .:-=+*#%@"
	var buf strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := int(image[y*w+x] * float32(len(ramp)))
			if i >= len(ramp) {
				i = len(ramp) - 1
			}
			if i < 0 {
				i = 0
			}
			buf.WriteByte(ramp[i])
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}
