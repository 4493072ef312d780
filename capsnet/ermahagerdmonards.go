package capsnet

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	nnops "gorgonia.org/gorgonia/ops/nn"
	"gorgonia.org/tensor"
)

type maebe struct {
	err error
}

// generic monad... may be useful
func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// conv is a biased convolution with valid padding. Capsule stacks never
// pad: every reduction shrinks the grid.
func (m *maebe) conv(input *G.Node, filterCount, size, stride int, name string) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	featureCount := input.Shape()[1]
	filter := G.NewTensor(input.Graph(), Float, 4, G.WithShape(filterCount, featureCount, size, size), G.WithName("Filter"+name), G.WithInit(G.GlorotU(1.0)))

	if retVal, m.err = nnops.Conv2d(input, filter, []int{size, size}, []int{0, 0}, []int{stride, stride}, []int{1, 1}); m.err != nil {
		m.err = errors.WithStack(m.err)
		return
	}
	bias := G.NewTensor(input.Graph(), Float, 4, G.WithShape(1, filterCount, 1, 1), G.WithName("Bias"+name), G.WithInit(G.Zeroes()))
	return m.do(func() (*G.Node, error) { return G.BroadcastAdd(retVal, bias, nil, []byte{0, 2, 3}) })
}

func (m *maebe) rectify(input *G.Node) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = nnops.Rectify(input); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) reshape(input *G.Node, to tensor.Shape) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = G.Reshape(input, to); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// scalar lifts a constant into the graph at the working precision.
func scalar(v float64) *G.Node {
	switch Float {
	case G.Float32:
		return G.NewConstant(float32(v))
	default:
		return G.NewConstant(v)
	}
}
