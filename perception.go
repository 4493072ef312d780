package titans

import (
	"bytes"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/chewxy/math32"
	"github.com/titans-ml/titans/capsnet"
)

var numCPU = runtime.NumCPU()

// Perception is M1: the capsule network behind a pool of inferencers,
// so concurrent traces never contend on a single VM.
type Perception struct {
	NN *capsnet.CapsNet
	sync.Mutex

	classes, poseDim int
	inferer          chan Inferer
	inferers         []Inferer
}

func newPerception(nn *capsnet.CapsNet) *Perception {
	return &Perception{
		NN:      nn,
		classes: nn.Classes,
		poseDim: nn.ClassDim,
	}
}

// SwitchToInference rebuilds the pool from the network's current
// weights. Call it after every training pass (and after Load); until
// then Perceive keeps answering from the previous pool.
func (p *Perception) SwitchToInference() error {
	p.Lock()
	defer p.Unlock()

	if err := p.drain(); err != nil {
		return err
	}
	p.inferer = make(chan Inferer, numCPU)
	for i := 0; i < numCPU; i++ {
		inf, err := capsnet.Infer(p.NN, false)
		if err != nil {
			return err
		}
		p.inferers = append(p.inferers, inf)
		p.inferer <- inf
	}
	return nil
}

// useDummy fills the pool with uniform inferers, so traces can run
// before any training has happened.
func (p *Perception) useDummy() {
	p.Lock()
	p.inferer = make(chan Inferer, numCPU)
	for i := 0; i < numCPU; i++ {
		p.inferer <- dummyInferer{classes: p.classes, poseDim: p.poseDim}
	}
	p.Unlock()
}

// Perceive runs one image through the network and reads off a Percept.
// The activation and pose slices are copied out: inferencers reuse
// their buffers across calls.
func (p *Perception) Perceive(image []float32) (Percept, error) {
	inf := <-p.inferer
	lengths, poses, err := inf.Classify(image)
	if err != nil {
		if el, ok := inf.(ExecLogger); ok {
			log.Println(el.ExecLog())
		}
		p.inferer <- inf
		return Percept{}, err
	}
	p.inferer <- inf

	mags := make([]float32, len(lengths))
	copy(mags, lengths)
	ps := make([]float32, len(poses))
	copy(ps, poses)

	class := argmax(mags)
	return Percept{
		Magnitudes: mags,
		Poses:      ps,
		Class:      class,
		Confidence: mags[class],
	}, nil
}

func (p *Perception) Close() error {
	p.Lock()
	defer p.Unlock()
	return p.drain()
}

func (p *Perception) drain() error {
	if p.inferer != nil {
		close(p.inferer)
		p.inferer = nil
	}
	var allErrs manyErr
	for _, inferer := range p.inferers {
		if err := inferer.Close(); err != nil {
			allErrs = append(allErrs, err)
		}
	}
	p.inferers = p.inferers[:0]
	if len(allErrs) > 0 {
		return allErrs
	}
	return nil
}

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}

func argmax(a []float32) int {
	var retVal int
	var max float32 = math32.Inf(-1)
	for i := range a {
		if a[i] > max {
			max = a[i]
			retVal = i
		}
	}
	return retVal
}
