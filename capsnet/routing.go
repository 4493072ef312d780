package capsnet

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// routing runs dynamic routing by agreement between the primary capsules
// u ([B, N, Din]) and the class capsules, through the transform w
// ([N, C, Dout, Din]). It returns the class poses ([B, C, Dout]) and the
// coupling coefficients of the final round ([B, N, C]).
//
// The transform is the layer's only learnable. Coupling logits start
// from a zero constant on every pass, so routing state never survives a
// call; each round is a strict data dependency of the next. The logit
// update is skipped on the last round since nothing would consume it.
func (m *maebe) routing(u, w *G.Node, rounds int) (poses, couplings *G.Node) {
	if m.err != nil {
		return nil, nil
	}
	b, n, din := u.Shape()[0], u.Shape()[1], u.Shape()[2]
	c, dout := w.Shape()[1], w.Shape()[2]

	// prediction vectors û[b,i,j,·] = W[i,j]·u[b,i,·], computed once and
	// reused by every round
	u5 := m.reshape(u, tensor.Shape{b, n, 1, 1, din})
	w5 := m.reshape(w, tensor.Shape{1, n, c, dout, din})
	uhat := m.do(func() (*G.Node, error) { return G.BroadcastHadamardProd(u5, w5, []byte{2, 3}, []byte{0}) })
	uhat = m.do(func() (*G.Node, error) { return G.Sum(uhat, 4) }) // [B, N, C, Dout]

	logits := G.NewConstant(tensor.New(tensor.Of(Float), tensor.WithShape(b, n, c)), G.WithName("RoutingLogits"), G.In(u.Graph()))
	for r := 0; r < rounds; r++ {
		cc := m.do(func() (*G.Node, error) { return G.SoftMax(logits, 2) }) // [B, N, C], rows sum to 1 over C

		weights := m.reshape(cc, tensor.Shape{b, n, c, 1})
		s := m.do(func() (*G.Node, error) { return G.BroadcastHadamardProd(uhat, weights, nil, []byte{3}) })
		s = m.do(func() (*G.Node, error) { return G.Sum(s, 1) }) // [B, C, Dout]
		poses = m.squash(s)

		if r == rounds-1 {
			couplings = cc
			break
		}

		// agreement b += û·v
		v4 := m.reshape(poses, tensor.Shape{b, 1, c, dout})
		agree := m.do(func() (*G.Node, error) { return G.BroadcastHadamardProd(uhat, v4, nil, []byte{1}) })
		agree = m.do(func() (*G.Node, error) { return G.Sum(agree, 3) }) // [B, N, C]
		logits = m.do(func() (*G.Node, error) { return G.Add(logits, agree) })
	}
	return poses, couplings
}
