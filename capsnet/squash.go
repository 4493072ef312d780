package capsnet

import (
	G "gorgonia.org/gorgonia"
)

// epsilon keeps the squash denominators away from zero. It sits inside
// the sqrt as well, so the gradient at the origin stays finite.
const epsilon = 1e-8

// squash shrinks the capsule vectors along the trailing axis to length
// ‖s‖²/(1+‖s‖²), preserving direction. Long vectors approach unit
// length, short ones collapse toward zero; the zero vector maps to the
// zero vector. All leading axes are carried through untouched.
func (m *maebe) squash(s *G.Node) *G.Node {
	if m.err != nil {
		return nil
	}
	last := s.Shape().Dims() - 1
	keep := s.Shape().Clone()
	keep[last] = 1

	sq := m.do(func() (*G.Node, error) { return G.Square(s) })
	ss := m.do(func() (*G.Node, error) { return G.Sum(sq, last) })
	ss = m.reshape(ss, keep)

	norm := m.do(func() (*G.Node, error) { return G.Add(ss, scalar(epsilon)) })
	norm = m.do(func() (*G.Node, error) { return G.Sqrt(norm) })
	norm2 := m.do(func() (*G.Node, error) { return G.Square(norm) })

	scale := m.do(func() (*G.Node, error) { return G.Add(norm2, scalar(1)) })
	scale = m.do(func() (*G.Node, error) { return G.HadamardDiv(norm2, scale) })

	unit := m.do(func() (*G.Node, error) { return G.Add(norm, scalar(epsilon)) })
	unit = m.do(func() (*G.Node, error) { return G.BroadcastHadamardDiv(s, unit, nil, []byte{byte(last)}) })
	return m.do(func() (*G.Node, error) { return G.BroadcastHadamardProd(unit, scale, nil, []byte{byte(last)}) })
}

// length returns the plain L2 norms of the capsule vectors along the
// trailing axis. Class activations are read off as lengths.
func (m *maebe) length(v *G.Node) *G.Node {
	if m.err != nil {
		return nil
	}
	last := v.Shape().Dims() - 1
	sq := m.do(func() (*G.Node, error) { return G.Square(v) })
	ss := m.do(func() (*G.Node, error) { return G.Sum(sq, last) })
	return m.do(func() (*G.Node, error) { return G.Sqrt(ss) })
}
