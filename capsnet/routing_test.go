package capsnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// TestRoutingAgreement runs three rounds over two primary capsules and
// two classes with hand-picked transforms. Both capsules' predictions
// agree on class 1 ([0,1] and [0,1]) and cancel on class 0 ([1,0] and
// [-1,0]), so routing must shift the couplings toward class 1 and leave
// class 0's pose at zero. The expected numbers are worked through the
// softmax/squash recurrence by hand.
func TestRoutingAgreement(t *testing.T) {
	assert := assert.New(t)
	g := G.NewGraph()
	u := G.NewTensor(g, Float, 3, G.WithShape(1, 2, 2), G.WithName("u"))
	w := G.NewTensor(g, Float, 4, G.WithShape(2, 2, 2, 2), G.WithName("w"), G.WithInit(G.Zeroes()))

	var m maebe
	poses, couplings := m.routing(u, w, 3)
	if m.err != nil {
		t.Fatalf("%+v", m.err)
	}
	assert.Equal(tensor.Shape{1, 2, 2}, poses.Shape())
	assert.Equal(tensor.Shape{1, 2, 2}, couplings.Shape())

	// capsule 0: identity to class 0, 90° rotation to class 1
	// capsule 1: 90° rotation to class 0, identity to class 1
	G.Let(w, tensor.New(tensor.WithShape(2, 2, 2, 2), tensor.WithBacking([]float32{
		1, 0, 0, 1,
		0, -1, 1, 0,
		0, -1, 1, 0,
		1, 0, 0, 1,
	})))
	G.Let(u, tensor.New(tensor.WithShape(1, 2, 2), tensor.WithBacking([]float32{
		1, 0,
		0, 1,
	})))

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}

	cc := couplings.Value().Data().([]float32)
	vv := poses.Value().Data().([]float32)

	// both capsules agree: class 1 wins the same way for each
	for i := 0; i < 2; i++ {
		assert.InDelta(0.248278, cc[i*2+0], 1e-4, "capsule %d -> class 0", i)
		assert.InDelta(0.751722, cc[i*2+1], 1e-4, "capsule %d -> class 1", i)
		assert.InDelta(1.0, float64(cc[i*2+0])+float64(cc[i*2+1]), 1e-5, "capsule %d rows must sum to 1", i)
	}

	// class 0's votes cancelled
	assert.InDelta(0, vv[0], 1e-5)
	assert.InDelta(0, vv[1], 1e-5)

	// class 1 collects 2·0.751722 worth of [0,1], squashed
	assert.InDelta(0, vv[2], 1e-5)
	assert.InDelta(0.693284, vv[3], 1e-4)
}

// The routing logits start as a graph-less zero constant; unless it is
// created with G.In, the first SoftMax over it dies with "No Graph
// Supplied" and no network ever compiles.
func TestRoutingNodesShareInputGraph(t *testing.T) {
	assert := assert.New(t)
	g := G.NewGraph()
	u := G.NewTensor(g, Float, 3, G.WithShape(1, 2, 2), G.WithName("u"))
	w := G.NewTensor(g, Float, 4, G.WithShape(2, 2, 2, 2), G.WithName("w"), G.WithInit(G.Zeroes()))

	var m maebe
	poses, couplings := m.routing(u, w, 3)
	if m.err != nil {
		t.Fatalf("%+v", m.err)
	}
	assert.Equal(g, poses.Graph())
	assert.Equal(g, couplings.Graph())
}

func TestRoutingDeterminism(t *testing.T) {
	assert := assert.New(t)
	g := G.NewGraph()
	u := G.NewTensor(g, Float, 3, G.WithShape(2, 6, 3), G.WithName("u"))
	w := G.NewTensor(g, Float, 4, G.WithShape(6, 4, 2, 3), G.WithName("w"), G.WithInit(G.Gaussian(0, 0.01)))

	var m maebe
	poses, couplings := m.routing(u, w, 3)
	lengths := m.length(poses)
	if m.err != nil {
		t.Fatalf("%+v", m.err)
	}

	G.Let(u, tensor.New(tensor.WithShape(2, 6, 3), tensor.WithBacking(tensor.Random(Float, 2*6*3))))

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}
	first := append([]float32{}, poses.Value().Data().([]float32)...)

	// same weights, same input, same graph: the second pass must agree
	// bit for bit
	vm.Reset()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(first, poses.Value().Data().([]float32))

	// rows of the coupling matrix are softmax outputs; they sum to 1
	// whatever the weights
	cc := couplings.Value().Data().([]float32)
	for b := 0; b < 2; b++ {
		for i := 0; i < 6; i++ {
			var sum float64
			for j := 0; j < 4; j++ {
				sum += float64(cc[(b*6+i)*4+j])
			}
			assert.InDelta(1.0, sum, 1e-5, "batch %d capsule %d", b, i)
		}
	}

	// activations are lengths of squashed vectors: inside [0, 1)
	for i, l := range lengths.Value().Data().([]float32) {
		assert.True(l >= 0 && l < 1, "length %d = %v", i, l)
	}
}
