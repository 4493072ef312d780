package main

import (
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/titans-ml/titans"
	gifenc "github.com/titans-ml/titans/encoding/gif"
	mjpegenc "github.com/titans-ml/titans/encoding/mjpeg"
	"github.com/titans-ml/titans/mnist"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the capsule network on MNIST",
	Long: `Train the capsule network on the MNIST IDX files in the data
directory, evaluating test accuracy after every epoch.

Example usage:
  titans train --data ./data --epochs 10 --out titans.gob
  titans train --augment --gif run.gif --stats run.csv
  titans train --listen :8080    # watch the run as an MJPEG stream`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().StringVar(&cfg.DataDir, "data", "", "Directory with the MNIST IDX files")
	trainCmd.Flags().StringVar(&cfg.Model, "out", "", "Where to write the trained weights")
	trainCmd.Flags().IntVar(&cfg.Epochs, "epochs", 0, "Training epochs")
	trainCmd.Flags().IntVar(&cfg.BatchSize, "batch", 0, "Batch size")
	trainCmd.Flags().IntVar(&cfg.EvalLimit, "eval-limit", 0, "Cap on test images per evaluation")
	trainCmd.Flags().BoolVar(&cfg.Augment, "augment", false, "Widen the training set with pixel shifts")
	trainCmd.Flags().StringVar(&cfg.GIF, "gif", "", "Write an animated GIF of test classifications")
	trainCmd.Flags().StringVar(&cfg.Listen, "listen", "", "Serve an MJPEG stream of test classifications on this address")
	trainCmd.Flags().StringVar(&cfg.Stats, "stats", "", "Write per-epoch cost/accuracy CSV")
}

func runTrain(cmd *cobra.Command, args []string) error {
	conf := titans.DefaultConfig("titans")
	conf.NNConf.Classes = cfg.Classes
	conf.NNConf.BatchSize = cfg.BatchSize
	if cfg.Augment {
		conf.Augmenter = titans.ShiftAugmenter(conf.NNConf.Height, conf.NNConf.Width)
	}

	var gifOut *gifenc.Encoder
	switch {
	case cfg.GIF != "":
		gifOut = gifenc.NewGifEncoder(800, 600)
		conf.OutputEncoder = gifOut
	case cfg.Listen != "":
		stream := mjpegenc.NewEncoder(800, 600)
		conf.OutputEncoder = stream
		go func() {
			logger.Info().Str("addr", cfg.Listen).Msg("serving mjpeg stream")
			if err := http.ListenAndServe(cfg.Listen, stream); err != nil {
				logger.Error().Err(err).Msg("mjpeg server died")
			}
		}()
	}

	logger.Info().Str("dir", cfg.DataDir).Msg("loading mnist")
	trainXs, trainLabels, _, err := mnist.Load(cfg.DataDir, "train", cfg.Classes)
	if err != nil {
		return err
	}
	testXs, testLabels, _, err := mnist.Load(cfg.DataDir, "t10k", cfg.Classes)
	if err != nil {
		return err
	}
	if limit := cfg.EvalLimit; limit > 0 {
		if testXs, testLabels, err = mnist.Head(testXs, testLabels, limit); err != nil {
			return err
		}
	}

	examples, err := titans.MakeExamples(trainXs, trainLabels)
	if err != nil {
		return err
	}

	c := titans.New(conf)
	defer c.Close()
	c.SetLogger(logger)

	if err := c.Learn(examples, testXs, testLabels, cfg.Epochs); err != nil {
		return err
	}

	if err := c.Save(cfg.Model); err != nil {
		return errors.Wrapf(err, "saving weights to %q", cfg.Model)
	}
	logger.Info().Str("model", cfg.Model).Msg("weights saved")

	if cfg.Stats != "" {
		if err := c.Statistics.Dump(cfg.Stats); err != nil {
			return errors.Wrapf(err, "writing statistics to %q", cfg.Stats)
		}
	}
	if gifOut != nil {
		f, err := os.OpenFile(cfg.GIF, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrapf(err, "creating %q", cfg.GIF)
		}
		defer f.Close()
		gifOut.Writer = f
		if err := gifOut.Flush(); err != nil {
			return errors.Wrapf(err, "flushing gif to %q", cfg.GIF)
		}
	}
	return nil
}
