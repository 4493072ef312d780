package titans

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/titans-ml/titans/capsnet"
	"github.com/titans-ml/titans/steplog"
	"gorgonia.org/tensor"
)

// Cognition is the top level structure and the entry point of the API.
// It wires the five cognitive modules around one capsule network: the
// network perceives, and the symbolic modules remember, abstract,
// reason and act on what it saw.
type Cognition struct {
	Perception  *Perception
	Memory      *Memory
	Abstraction Abstraction
	Reasoning   *Reasoning
	Agency      Agency
	Statistics

	conf     Config
	log      zerolog.Logger
	steps    *steplog.Log
	useDummy bool
}

// New builds a Cognition around a freshly initialized capsule network.
// Until Learn or Load runs, perception answers with uniform dummies.
func New(conf Config) *Cognition {
	if !conf.NNConf.IsValid() {
		panic("NNConf is not valid. Unable to proceed")
	}

	nn := capsnet.New(conf.NNConf)
	if err := nn.Init(); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}

	retVal := &Cognition{
		Perception:  newPerception(nn),
		Memory:      NewMemory(conf.SurpriseThreshold, conf.MemoryCapacity),
		Abstraction: Abstraction{conf.ConfidenceThreshold, conf.NoiseFloor},
		Reasoning:   NewReasoning(conf.NNConf.Classes),
		Statistics:  makeStatistics(),
		conf:        conf,
		log:         zerolog.Nop(),
		useDummy:    true,
	}
	retVal.Perception.useDummy()
	return retVal
}

// SetLogger replaces the default no-op logger.
func (c *Cognition) SetLogger(l zerolog.Logger) { c.log = l }

// SetStepLog attaches a step log; every RunTrace appends its steps to it.
func (c *Cognition) SetStepLog(sl *steplog.Log) { c.steps = sl }

// Learn trains the network for epochs passes over the examples,
// evaluating against the test set after each one. Test tensors may be
// nil, in which case accuracy is recorded as zero.
func (c *Cognition) Learn(examples []Example, testXs *tensor.Dense, testLabels []int, epochs int) error {
	xs, ys, batches, err := c.prepareExamples(examples)
	if err != nil {
		return err
	}
	c.log.Info().Str("name", c.conf.Name).Int("examples", batches*c.conf.NNConf.BatchSize).Int("batches", batches).Int("epochs", epochs).Msg("learning")

	costs := make(chan float32, 1)
	for epoch := 0; epoch < epochs; epoch++ {
		if err := capsnet.Train(c.Perception.NN, xs, ys, batches, 1, costs); err != nil {
			return errors.WithMessagef(err, "training epoch %d", epoch)
		}
		cost := <-costs

		if err := c.Perception.SwitchToInference(); err != nil {
			return errors.WithMessagef(err, "switching to inference after epoch %d", epoch)
		}
		c.useDummy = false

		var acc float32
		if testXs != nil {
			if acc, err = c.Accuracy(testXs, testLabels); err != nil {
				return errors.WithMessagef(err, "evaluating epoch %d", epoch)
			}
		}
		c.Statistics.update(epoch, cost, acc)
		c.log.Info().Int("epoch", epoch).Float32("cost", cost).Float32("accuracy", acc).Msg("epoch done")

		if c.conf.OutputEncoder != nil && testXs != nil {
			if err := c.encodeFrames(epoch, testXs, testLabels, 8); err != nil {
				return err
			}
		}
	}
	return nil
}

// Accuracy runs every image of xs through perception and returns the
// fraction whose winning class matches its label.
func (c *Cognition) Accuracy(xs *tensor.Dense, labels []int) (float32, error) {
	count := xs.Shape()[0]
	if count == 0 {
		return 0, nil
	}
	if count > len(labels) {
		return 0, errors.Errorf("%d images but %d labels", count, len(labels))
	}
	size := xs.Shape().TotalSize() / count
	data := xs.Data().([]float32)

	var hits int
	for i := 0; i < count; i++ {
		p, err := c.Perception.Perceive(data[i*size : (i+1)*size])
		if err != nil {
			return 0, err
		}
		if p.Class == labels[i] {
			hits++
		}
	}
	return float32(hits) / float32(count), nil
}

// encodeFrames pushes the first n test images through perception and
// hands the results to the output encoder.
func (c *Cognition) encodeFrames(epoch int, xs *tensor.Dense, labels []int, n int) error {
	count := xs.Shape()[0]
	if n > count {
		n = count
	}
	size := xs.Shape().TotalSize() / count
	data := xs.Data().([]float32)

	for i := 0; i < n; i++ {
		p, err := c.Perception.Perceive(data[i*size : (i+1)*size])
		if err != nil {
			return err
		}
		label := -1
		if i < len(labels) {
			label = labels[i]
		}
		err = c.conf.OutputEncoder.Encode(Frame{
			Image:      data[i*size : (i+1)*size],
			Width:      c.conf.NNConf.Width,
			Height:     c.conf.NNConf.Height,
			Label:      label,
			Predicted:  p.Class,
			Magnitudes: p.Magnitudes,
			Epoch:      epoch,
			Index:      i,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// prepareExamples augments, shuffles and packs examples into training
// tensors, dropping the ragged tail that cannot fill a batch.
func (c *Cognition) prepareExamples(examples []Example) (xs, ys *tensor.Dense, batches int, err error) {
	if aug := c.conf.Augmenter; aug != nil {
		var widened []Example
		for _, ex := range examples {
			widened = append(widened, aug(ex)...)
		}
		examples = widened
	}
	shuffleExamples(examples)

	conf := c.conf.NNConf
	batches = len(examples) / conf.BatchSize
	total := batches * conf.BatchSize
	if total == 0 {
		return nil, nil, 0, errors.Errorf("%d examples cannot fill a single batch of %d", len(examples), conf.BatchSize)
	}

	imageSize := conf.Channels * conf.Height * conf.Width
	xsBacking := make([]float32, 0, total*imageSize)
	ysBacking := make([]float32, total*conf.Classes)
	for i, ex := range examples {
		if i >= total {
			break
		}
		if len(ex.Image) != imageSize {
			return nil, nil, 0, errors.Errorf("example %d has %d pixels, the %d×%d×%d input wants %d",
				i, len(ex.Image), conf.Channels, conf.Height, conf.Width, imageSize)
		}
		if ex.Label < 0 || ex.Label >= conf.Classes {
			return nil, nil, 0, errors.Errorf("example %d has label %d, outside [0, %d)", i, ex.Label, conf.Classes)
		}
		xsBacking = append(xsBacking, ex.Image...)
		ysBacking[i*conf.Classes+ex.Label] = 1
	}

	xs = tensor.New(tensor.WithBacking(xsBacking), tensor.WithShape(total, conf.Channels, conf.Height, conf.Width))
	ys = tensor.New(tensor.WithBacking(ysBacking), tensor.WithShape(total, conf.Classes))
	return xs, ys, batches, nil
}

// MakeExamples pairs an image tensor with its labels.
func MakeExamples(xs *tensor.Dense, labels []int) ([]Example, error) {
	count := xs.Shape()[0]
	if count > len(labels) {
		return nil, errors.Errorf("%d images but %d labels", count, len(labels))
	}
	size := xs.Shape().TotalSize() / count
	data := xs.Data().([]float32)

	examples := make([]Example, count)
	for i := range examples {
		examples[i] = Example{
			Image: data[i*size : (i+1)*size],
			Label: labels[i],
		}
	}
	return examples, nil
}

// Save writes the network's weights into filename.
func (c *Cognition) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0544)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return enc.Encode(c.Perception.NN)
}

// Load reads weights saved by Save and switches perception over to them.
func (c *Cognition) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	nn := capsnet.New(c.conf.NNConf)
	dec := gob.NewDecoder(f)
	if err = dec.Decode(nn); err != nil {
		return errors.WithStack(err)
	}

	c.Perception.NN = nn
	if err = c.Perception.SwitchToInference(); err != nil {
		return err
	}
	c.useDummy = false
	return nil
}

// Close releases the inference pool.
func (c *Cognition) Close() error { return c.Perception.Close() }

func shuffleExamples(examples []Example) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range examples {
		j := r.Intn(i + 1)
		examples[i], examples[j] = examples[j], examples[i]
	}
}
