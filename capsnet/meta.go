package capsnet

import (
	"bytes"
	"log"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// adamRate is the solver's learning rate. Margin loss trains stably at
// this rate without a schedule.
const adamRate = 1e-3

// Train is a basic trainer. Xs are the images, Ys the one-hot labels,
// both leading with the example axis. Each iteration walks the full
// batches then reshuffles. If costs is non-nil the mean batch cost of
// every iteration is sent down it; the channel is never closed here.
func Train(n *CapsNet, xs, ys *tensor.Dense, batches, iterations int, costs chan<- float32) error {
	model := G.NodesToValueGrads(n.Model())
	solver := G.NewAdamSolver(G.WithLearnRate(adamRate))
	m := G.NewTapeMachine(n.g, G.BindDualValues(n.Model()...))
	defer m.Close()

	var s slicer
	for i := 0; i < iterations; i++ {
		var total float32
		for bat := 0; bat < batches; bat++ {
			batchStart := bat * n.Config.BatchSize
			batchEnd := batchStart + n.Config.BatchSize

			xs2 := s.Slice(xs, sli(batchStart, batchEnd))
			ys2 := s.Slice(ys, sli(batchStart, batchEnd))
			if s.err != nil {
				return s.err
			}

			G.Let(n.input, xs2)
			G.Let(n.Y, ys2)
			if err := m.RunAll(); err != nil {
				return err
			}
			if err := solver.Step(model); err != nil {
				return err
			}
			total += n.cost.Data().(float32)
			m.Reset()
			tensor.ReturnTensor(xs2)
			tensor.ReturnTensor(ys2)
		}
		if costs != nil {
			costs <- total / float32(batches)
		}
		if err := shuffleBatch(xs, ys); err != nil {
			return err
		}
	}
	return nil
}

// shuffleBatch shuffles the examples, keeping images and labels aligned.
func shuffleBatch(xs, ys *tensor.Dense) (err error) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	oriXs := xs.Shape().Clone()
	oriYs := ys.Shape().Clone()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("%v %v", xs.Shape(), ys.Shape())
			panic(r)
		}
	}()
	xs.Reshape(as2D(xs.Shape())...)
	ys.Reshape(as2D(ys.Shape())...)

	var matXs, matYs [][]float32
	if matXs, err = native.MatrixF32(xs); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - xs")
	}
	if matYs, err = native.MatrixF32(ys); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - ys")
	}

	// an image row is always at least as wide as a label row
	tmp := make([]float32, xs.Shape()[1])
	for i := range matXs {
		j := r.Intn(i + 1)

		rowI := matXs[i]
		rowJ := matXs[j]
		copy(tmp, rowI)
		copy(rowI, rowJ)
		copy(rowJ, tmp)

		yI := matYs[i]
		yJ := matYs[j]
		copy(tmp, yI)
		copy(yI, yJ)
		copy(yJ, tmp[:len(yI)])
	}
	xs.Reshape(oriXs...)
	ys.Reshape(oriYs...)

	return nil
}

func as2D(s tensor.Shape) tensor.Shape {
	retVal := tensor.BorrowInts(2)
	retVal[0] = s[0]
	retVal[1] = s[1]
	for i := 2; i < len(s); i++ {
		retVal[1] *= s[i]
	}
	return retVal
}

// Inferencer holds the state for a *CapsNet and a VM. By using an Inferencer,
// there is no longer a need to create a VM every time an inference needs to be done.
type Inferencer struct {
	n *CapsNet
	m G.VM

	input *tensor.Dense
	buf   *bytes.Buffer
}

// Infer takes a trained *CapsNet and creates an inference data structure
// around a single-example fwd-only clone of it.
func Infer(n *CapsNet, toLog bool) (*Inferencer, error) {
	conf := n.Config
	conf.FwdOnly = true
	conf.BatchSize = 1
	retVal := &Inferencer{
		n:     New(conf),
		input: tensor.New(tensor.WithShape(1, conf.Channels, conf.Height, conf.Width), tensor.Of(Float)),
	}
	if err := retVal.n.Init(); err != nil {
		return nil, err
	}

	infModel := retVal.n.Model()
	for i, node := range n.Model() {
		original := node.Value().Data().([]float32)
		cloned := infModel[i].Value().Data().([]float32)
		copy(cloned, original)
	}

	retVal.buf = new(bytes.Buffer)
	if toLog {
		logger := log.New(retVal.buf, "", 0)
		retVal.m = G.NewTapeMachine(retVal.n.g,
			G.WithLogger(logger),
			G.WithWatchlist(),
			G.TraceExec(),
			G.WithValueFmt("%+1.1v"),
			G.WithNaNWatch(),
		)
	} else {
		retVal.m = G.NewTapeMachine(retVal.n.g)
	}
	return retVal, nil
}

// Network implements Networker
func (m *Inferencer) Network() *CapsNet { return m.n }

// Classify runs one image, in the form of a []float32 laid out
// channel-major, through the network. It returns the per-class
// activation magnitudes and the flattened class pose vectors.
func (m *Inferencer) Classify(image []float32) (lengths, poses []float32, err error) {
	if expected := m.input.Shape().TotalSize(); len(image) != expected {
		return nil, nil, errors.Errorf("capsnet: image has %d pixels, the %v input wants %d",
			len(image), m.input.Shape(), expected)
	}

	// copy image to the provided preallocated input tensor
	m.input.Zero()
	data := m.input.Data().([]float32)
	copy(data, image)

	m.m.Reset()
	m.buf.Reset()
	G.Let(m.n.input, m.input)
	if err = m.m.RunAll(); err != nil {
		return nil, nil, err
	}
	lengths = m.n.lengths.Data().([]float32)
	poses = m.n.poses.Data().([]float32)
	return lengths[:m.n.Classes], poses, nil
}

// Couplings returns the final-round coupling coefficients of the last
// Classify call, flattened from [N, C]. Row i holds how much primary
// capsule i's vote went to each class; every row sums to 1.
func (m *Inferencer) Couplings() []float32 {
	if m.n.couplings == nil {
		return nil
	}
	return m.n.couplings.Data().([]float32)
}

// ExecLog returns the execution log. If Infer was called with toLog = false, then it will return an empty string
func (m *Inferencer) ExecLog() string { return m.buf.String() }

// Close implements a closer, because well, a gorgonia VM is a resource.
func (m *Inferencer) Close() error { return m.m.Close() }

// Accuracy runs every image through the inferencer and returns the
// fraction whose strongest class capsule matches the label.
func Accuracy(inf *Inferencer, xs *tensor.Dense, labels []int) (float32, error) {
	count := xs.Shape()[0]
	if count == 0 {
		return 0, nil
	}
	if count > len(labels) {
		return 0, errors.Errorf("capsnet: %d images but %d labels", count, len(labels))
	}
	size := xs.Shape().TotalSize() / count
	data := xs.Data().([]float32)

	var hits int
	for i := 0; i < count; i++ {
		lengths, _, err := inf.Classify(data[i*size : (i+1)*size])
		if err != nil {
			return 0, err
		}
		if argmax(lengths) == labels[i] {
			hits++
		}
	}
	return float32(hits) / float32(count), nil
}
