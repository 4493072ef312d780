package titans

import (
	"io"

	"github.com/titans-ml/titans/capsnet"
)

type Config struct {
	Name   string
	NNConf capsnet.Config

	// cognition thresholds
	SurpriseThreshold   float32 // M2 stores percepts above this
	ConfidenceThreshold float32 // M3 names a digit above this
	NoiseFloor          float32 // M3 calls it noise below this
	MemoryCapacity      int     // M2 short-term memory size

	// extensions
	Augmenter     Augmenter
	OutputEncoder OutputEncoder
}

// DefaultConfig returns a configuration for 28×28 grayscale digits with
// the thresholds the cognitive modules were tuned at.
func DefaultConfig(name string) Config {
	return Config{
		Name:   name,
		NNConf: capsnet.DefaultConf(28, 28, 10),

		SurpriseThreshold:   1.0,
		ConfidenceThreshold: 0.8,
		NoiseFloor:          0.1,
		MemoryCapacity:      64,
	}
}

// Inferer is anything that can classify an image.
type Inferer interface {
	Classify(image []float32) (lengths, poses []float32, err error)
	io.Closer
}

// ExecLogger is anything that can return the execution log.
type ExecLogger interface {
	ExecLog() string
}

// Networker is anything that allows getting out a *CapsNet.
type Networker interface {
	Network() *capsnet.CapsNet
}

// Augmenter takes an example, and creates more examples from it.
type Augmenter func(ex Example) []Example

// Example is one labelled training image.
type Example struct {
	Image []float32
	Label int
}

// Percept is M1's reading of one image: the per-class activation
// magnitudes and class pose vectors, with the winning class pulled out.
type Percept struct {
	Magnitudes []float32
	Poses      []float32
	Class      int
	Confidence float32
}

// Frame is one rendered moment of a run: an image, what the network
// made of it, and where in the run it sits.
type Frame struct {
	Image         []float32 // pixels in [0, 1], row major
	Width, Height int
	Label         int // -1 when unknown
	Predicted     int
	Magnitudes    []float32
	Epoch, Index  int
}

// OutputEncoder encodes frames as whatever.
//
// An example OutputEncoder is the gif Encoder. Another example would be a logger.
type OutputEncoder interface {
	Encode(f Frame) error
	Flush() error
}
