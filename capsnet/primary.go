package capsnet

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// primaryCaps reduces a feature map into squashed pose vectors: a
// strided convolution down to types*dim channels, regrouped so that
// every grid position contributes one capsule per type.
//
// The capsule order is part of the layer's contract: position first
// (row major over the reduced grid), then type. Pose components stay
// contiguous. Downstream weights are indexed by this order, so it must
// never change between calls.
func (m *maebe) primaryCaps(input *G.Node, types, dim, kernel, stride int, name string) *G.Node {
	if m.err != nil {
		return nil
	}
	convolved := m.conv(input, types*dim, kernel, stride, name)
	if m.err != nil {
		return nil
	}
	b := convolved.Shape()[0]
	h := convolved.Shape()[2]
	w := convolved.Shape()[3]

	// [B, K·D, H', W'] -> [B, H'·W', K·D] -> [B, H'·W'·K, D]
	grouped := m.reshape(convolved, tensor.Shape{b, types * dim, h * w})
	grouped = m.do(func() (*G.Node, error) { return G.Transpose(grouped, 0, 2, 1) })
	poses := m.reshape(grouped, tensor.Shape{b, h * w * types, dim})

	return m.squash(poses)
}
