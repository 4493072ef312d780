package capsnet

import (
	G "gorgonia.org/gorgonia"
)

// marginLoss penalizes each class capsule separately: present classes
// for falling short of posMargin, absent ones for exceeding negMargin,
// the latter scaled by lambda so early training doesn't shrink every
// capsule at once. lengths and target are both [B, C], target one-hot.
// Per-example penalties are summed over classes, then averaged over the
// batch.
func (m *maebe) marginLoss(lengths, target *G.Node, posMargin, negMargin, lambda float64) *G.Node {
	if m.err != nil {
		return nil
	}

	pos := m.do(func() (*G.Node, error) { return G.Sub(scalar(posMargin), lengths) })
	pos = m.rectify(pos)
	pos = m.do(func() (*G.Node, error) { return G.Square(pos) })
	pos = m.do(func() (*G.Node, error) { return G.HadamardProd(target, pos) })

	neg := m.do(func() (*G.Node, error) { return G.Sub(lengths, scalar(negMargin)) })
	neg = m.rectify(neg)
	neg = m.do(func() (*G.Node, error) { return G.Square(neg) })
	absent := m.do(func() (*G.Node, error) { return G.Sub(scalar(1), target) })
	neg = m.do(func() (*G.Node, error) { return G.HadamardProd(absent, neg) })
	neg = m.do(func() (*G.Node, error) { return G.HadamardProd(neg, scalar(lambda)) })

	loss := m.do(func() (*G.Node, error) { return G.Add(pos, neg) })
	loss = m.do(func() (*G.Node, error) { return G.Sum(loss, 1) })
	return m.do(func() (*G.Node, error) { return G.Mean(loss) })
}
