package capsnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestSquash(t *testing.T) {
	assert := assert.New(t)
	g := G.NewGraph()
	s := G.NewMatrix(g, Float, G.WithShape(3, 2), G.WithName("s"))

	var m maebe
	squashed := m.squash(s)
	lengths := m.length(squashed)
	if m.err != nil {
		t.Fatalf("%+v", m.err)
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	G.Let(s, tensor.New(tensor.WithShape(3, 2), tensor.WithBacking([]float32{
		3, 4, // length 5, nearly saturated
		0, 0, // the degenerate case
		0.06, 0.08, // length 0.1, nearly annihilated
	})))
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}

	out := squashed.Value().Data().([]float32)
	lens := lengths.Value().Data().([]float32)

	// 25/26 scaling of the unit vector [0.6, 0.8]
	assert.InDelta(0.576923, out[0], 1e-5)
	assert.InDelta(0.769231, out[1], 1e-5)
	assert.InDelta(0.961538, lens[0], 1e-5)

	// zero in, zero out, no NaNs
	assert.Equal(float32(0), out[2])
	assert.Equal(float32(0), out[3])
	assert.Equal(float32(0), lens[1])

	// 0.01/1.01 scaling
	assert.InDelta(0.00594059, out[4], 1e-6)
	assert.InDelta(0.00792079, out[5], 1e-6)
	assert.InDelta(0.00990099, lens[2], 1e-6)

	// direction is preserved and the length stays under 1
	for i := 0; i < 3; i++ {
		assert.True(lens[i] >= 0 && lens[i] < 1, "length %d = %v", i, lens[i])
	}
	assert.InDelta(float64(out[1])/float64(out[0]), 4.0/3.0, 1e-5)
}

func TestSquashLeadingAxes(t *testing.T) {
	// the same vector must squash identically wherever it sits in a
	// [B, N, D] block
	assert := assert.New(t)
	g := G.NewGraph()
	s := G.NewTensor(g, Float, 3, G.WithShape(2, 2, 3), G.WithName("s"))

	var m maebe
	squashed := m.squash(s)
	if m.err != nil {
		t.Fatalf("%+v", m.err)
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	// four copies of the same length-3 vector
	backing := []float32{
		1, 2, 2,
		1, 2, 2,
		1, 2, 2,
		1, 2, 2,
	}
	G.Let(s, tensor.New(tensor.WithShape(2, 2, 3), tensor.WithBacking(backing)))
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}

	out := squashed.Value().Data().([]float32)
	// scale = 9/10, unit = row/3
	want := []float32{0.3, 0.6, 0.6}
	for cap := 0; cap < 4; cap++ {
		for d := 0; d < 3; d++ {
			assert.InDelta(want[d], out[cap*3+d], 1e-5, "capsule %d dim %d", cap, d)
		}
	}
}
