package capsnet

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

var Float = G.Float32

// CapsNet is the whole capsule network: a convolutional feature stem, a
// primary capsule layer, and one routed layer of class capsules.
//
// Class activations are read off as pose vector lengths.
type CapsNet struct {
	Config

	g *G.ExprGraph
	Y *G.Node // one-hot labels, a matrix of 1s and 0s

	input     *G.Node
	transform *G.Node // routing transform, N×C×Dout×Din

	lengthsOut *G.Node
	posesOut   *G.Node

	lengths   G.Value // per-class activation magnitudes
	poses     G.Value // class pose vectors
	couplings G.Value // final-round coupling coefficients
	cost      G.Value // cost, for training recording
}

// New returns a new, uninitialized *CapsNet.
func New(conf Config) *CapsNet {
	retVal := &CapsNet{
		Config: conf,
	}

	return retVal
}

func (n *CapsNet) Init() error {
	if !n.Config.IsValid() {
		return errors.Errorf("capsnet: configuration %#v is invalid", n.Config)
	}
	if gh, gw := n.gridDims(); gh < 1 || gw < 1 {
		return errors.Errorf("capsnet: %d×%d input with stem kernel %d and reduction kernel %d (stride %d) leaves a %d×%d capsule grid",
			n.Height, n.Width, n.StemKernel, n.PrimaryKernel, n.PrimaryStride, gh, gw)
	}

	n.reset()
	n.g = G.NewGraph()
	lengths, err := n.fwd()
	if err != nil {
		return err
	}
	return n.bwd(lengths)
}

func (n *CapsNet) fwd() (lengths *G.Node, err error) {
	// note, the data should be arranged like so:
	//	BatchSize, Channels, Height, Width
	// because Gorgonia only supports doing convolutions on BCHW format
	n.input = G.NewTensor(n.g, Float, 4, G.WithShape(n.BatchSize, n.Channels, n.Height, n.Width), G.WithName("Input"))

	var m maebe
	stem := m.conv(n.input, n.StemFilters, n.StemKernel, 1, "Stem")
	stem = m.rectify(stem)

	primary := m.primaryCaps(stem, n.PrimaryTypes, n.PrimaryDim, n.PrimaryKernel, n.PrimaryStride, "Primary")

	n.transform = G.NewTensor(n.g, Float, 4,
		G.WithShape(n.NumPrimary(), n.Classes, n.ClassDim, n.PrimaryDim),
		G.WithName("RoutingTransform"),
		G.WithInit(G.Gaussian(0, 0.01)))
	poses, couplings := m.routing(primary, n.transform, n.Rounds)

	n.posesOut = poses
	G.Read(n.posesOut, &n.poses)
	G.Read(couplings, &n.couplings)

	lengths = m.length(poses)
	n.lengthsOut = lengths
	G.Read(n.lengthsOut, &n.lengths)

	return lengths, m.err
}

func (n *CapsNet) bwd(lengths *G.Node) error {
	if n.FwdOnly {
		return nil
	}
	n.Y = G.NewMatrix(n.g, Float, G.WithShape(n.BatchSize, n.Classes), G.WithName("Y"))

	var m maebe
	cost := m.marginLoss(lengths, n.Y, n.PosMargin, n.NegMargin, n.Lambda)
	if m.err != nil {
		return m.err
	}
	G.Read(cost, &n.cost)

	if _, err := G.Grad(cost, n.Model()...); err != nil {
		return err
	}
	return nil
}

func (n *CapsNet) Model() G.Nodes {
	retVal := make(G.Nodes, 0, n.g.Nodes().Len())
	for _, node := range n.g.AllNodes() {
		if node.IsVar() && node != n.input && node != n.Y {
			retVal = append(retVal, node)
		}
	}
	return retVal
}

func (n *CapsNet) Clone() (*CapsNet, error) {
	n2 := New(n.Config)
	if err := n2.Init(); err != nil {
		return nil, err
	}

	model := n.Model()
	model2 := n2.Model()
	for i, node := range model {
		if err := G.Let(model2[i], node.Value()); err != nil {
			return nil, err
		}
	}

	return n2, nil
}

// CapsNet implements Networker
func (n *CapsNet) Network() *CapsNet { return n }

func (n *CapsNet) reset() {
	n.g = nil
	n.Y = nil

	n.input = nil
	n.transform = nil
	n.lengthsOut = nil
	n.posesOut = nil
}

func (n *CapsNet) GobEncode() (retVal []byte, err error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, node := range n.Model() {
		v := node.Value()
		if err = enc.Encode(&v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (n *CapsNet) GobDecode(p []byte) error {
	n.reset()
	if err := n.Init(); err != nil {
		return err
	}

	buf := bytes.NewBuffer(p)
	dec := gob.NewDecoder(buf)
	for _, node := range n.Model() {
		var v G.Value
		if err := dec.Decode(&v); err != nil {
			return err
		}
		G.Let(node, v)
	}
	return nil
}
