package capsnet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func squash64(v []float64) []float64 {
	var ss float64
	for _, x := range v {
		ss += x * x
	}
	norm := math.Sqrt(ss + epsilon)
	scale := (norm * norm) / (1 + norm*norm)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = scale * x / (norm + epsilon)
	}
	return out
}

// TestPrimaryCapsOrder pins the capsule enumeration contract. With a 1×1
// identity filter the convolution passes channels through untouched, so
// every capsule's pose can be predicted by hand: capsule (h·W'+w)·K + k
// must hold channels [k·D, (k+1)·D) at position (h, w), squashed.
func TestPrimaryCapsOrder(t *testing.T) {
	assert := assert.New(t)
	types, dim := 2, 2
	g := G.NewGraph()
	input := G.NewTensor(g, Float, 4, G.WithShape(1, types*dim, 2, 2), G.WithName("Input"))

	var m maebe
	poses := m.primaryCaps(input, types, dim, 1, 1, "Primary")
	if m.err != nil {
		t.Fatalf("%+v", m.err)
	}
	assert.Equal(tensor.Shape{1, 8, 2}, poses.Shape())

	var filter *G.Node
	for _, node := range g.AllNodes() {
		if node.Name() == "FilterPrimary" {
			filter = node
		}
	}
	if filter == nil {
		t.Fatal("no FilterPrimary node in the graph")
	}
	identity := make([]float32, 16)
	for i := 0; i < 4; i++ {
		identity[i*4+i] = 1
	}
	G.Let(filter, tensor.New(tensor.WithShape(4, 4, 1, 1), tensor.WithBacking(identity)))

	in := make([]float32, 16)
	for ic := 0; ic < 4; ic++ {
		for h := 0; h < 2; h++ {
			for w := 0; w < 2; w++ {
				in[ic*4+h*2+w] = float32(ic+1)*0.1 + float32(h)*0.02 + float32(w)*0.01
			}
		}
	}
	G.Let(input, tensor.New(tensor.WithShape(1, 4, 2, 2), tensor.WithBacking(in)))

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}

	out := poses.Value().Data().([]float32)
	for h := 0; h < 2; h++ {
		for w := 0; w < 2; w++ {
			for k := 0; k < types; k++ {
				i := (h*2+w)*types + k
				raw := []float64{
					float64(in[(k*dim)*4+h*2+w]),
					float64(in[(k*dim+1)*4+h*2+w]),
				}
				want := squash64(raw)
				for d := 0; d < dim; d++ {
					assert.InDelta(want[d], out[i*dim+d], 1e-5,
						"capsule %d (pos %d,%d type %d) dim %d", i, h, w, k, d)
				}
			}
		}
	}
}

func TestPrimaryCapsShapes(t *testing.T) {
	assert := assert.New(t)
	g := G.NewGraph()
	input := G.NewTensor(g, Float, 4, G.WithShape(2, 3, 8, 8), G.WithName("Input"))

	var m maebe
	poses := m.primaryCaps(input, 4, 2, 3, 2, "Primary")
	if m.err != nil {
		t.Fatalf("%+v", m.err)
	}
	// (8-3)/2+1 = 3 a side, 3·3·4 capsules of 2
	assert.Equal(tensor.Shape{2, 36, 2}, poses.Shape())

	G.Let(input, tensor.New(tensor.WithShape(2, 3, 8, 8), tensor.WithBacking(tensor.Random(Float, 2*3*8*8))))
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}

	out := poses.Value().Data().([]float32)
	for i := 0; i < 2*36; i++ {
		var ss float64
		for d := 0; d < 2; d++ {
			ss += float64(out[i*2+d]) * float64(out[i*2+d])
		}
		assert.True(math.Sqrt(ss) < 1, "capsule %d has length %v", i, math.Sqrt(ss))
	}
}
