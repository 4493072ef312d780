// Package mnist reads the IDX-format files the MNIST digit corpus
// ships in, producing tensors shaped for the capsule network.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

const (
	labelMagic = 0x00000801
	imageMagic = 0x00000803

	// headers are read straight off disk; refuse sizes no digit corpus
	// reaches before allocating n*rows*cols bytes
	maxImageDim = 4096
	maxItems    = 1 << 24
)

// Load reads one split ("train" or "t10k") from dir. Images come back as a
// [n, 1, h, w] float32 tensor scaled into [0, 1], labels both as plain ints
// and as a [n, classes] one-hot matrix ready for the margin loss.
func Load(dir, split string, classes int) (xs *tensor.Dense, labels []int, ys *tensor.Dense, err error) {
	var imf, lbf io.ReadCloser
	if imf, err = open(filepath.Join(dir, split+"-images-idx3-ubyte")); err != nil {
		return nil, nil, nil, err
	}
	defer imf.Close()
	if lbf, err = open(filepath.Join(dir, split+"-labels-idx1-ubyte")); err != nil {
		return nil, nil, nil, err
	}
	defer lbf.Close()

	if xs, err = ReadImages(imf); err != nil {
		return nil, nil, nil, errors.WithMessagef(err, "mnist: reading %q images", split)
	}
	if labels, err = ReadLabels(lbf); err != nil {
		return nil, nil, nil, errors.WithMessagef(err, "mnist: reading %q labels", split)
	}
	if xs.Shape()[0] != len(labels) {
		return nil, nil, nil, errors.Errorf("mnist: %d images but %d labels in split %q", xs.Shape()[0], len(labels), split)
	}
	if ys, err = OneHot(labels, classes); err != nil {
		return nil, nil, nil, err
	}
	return xs, labels, ys, nil
}

// open opens path, or path+".gz" behind a gzip reader when the plain
// file is absent.
func open(path string) (io.ReadCloser, error) {
	if f, err := os.Open(path); err == nil {
		return f, nil
	}
	f, err := os.Open(path + ".gz")
	if err != nil {
		return nil, errors.Wrapf(err, "mnist: no readable %q (plain or .gz)", path)
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mnist: %q is not a gzip file", path+".gz")
	}
	return &gzipFile{zr, f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	if err := g.Reader.Close(); err != nil {
		g.f.Close()
		return err
	}
	return g.f.Close()
}

// ReadImages decodes an IDX3 image stream into a [n, 1, rows, cols]
// float32 tensor with pixels scaled into [0, 1].
func ReadImages(r io.Reader) (*tensor.Dense, error) {
	var hdr [4]int32
	for i := range hdr {
		if err := binary.Read(r, binary.BigEndian, &hdr[i]); err != nil {
			return nil, errors.Wrap(err, "short IDX3 header")
		}
	}
	if hdr[0] != imageMagic {
		return nil, errors.Errorf("IDX3 magic 0x%x, want 0x%x", hdr[0], imageMagic)
	}
	n, rows, cols := int(hdr[1]), int(hdr[2]), int(hdr[3])
	if n < 1 || rows < 1 || cols < 1 {
		return nil, errors.Errorf("degenerate IDX3 dims %d×%d×%d", n, rows, cols)
	}
	if rows > maxImageDim || cols > maxImageDim || n > maxItems {
		return nil, errors.Errorf("IDX3 claims %d images of %d×%d, refusing past %d of %d×%d", n, rows, cols, maxItems, maxImageDim, maxImageDim)
	}

	raw := make([]byte, n*rows*cols)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrapf(err, "IDX3 promises %d pixels", len(raw))
	}
	backing := make([]float32, len(raw))
	for i, px := range raw {
		backing[i] = float32(px)
	}
	vecf32.Scale(backing, 1.0/255.0)

	return tensor.New(tensor.WithShape(n, 1, rows, cols), tensor.WithBacking(backing)), nil
}

// ReadLabels decodes an IDX1 label stream.
func ReadLabels(r io.Reader) ([]int, error) {
	var hdr [2]int32
	for i := range hdr {
		if err := binary.Read(r, binary.BigEndian, &hdr[i]); err != nil {
			return nil, errors.Wrap(err, "short IDX1 header")
		}
	}
	if hdr[0] != labelMagic {
		return nil, errors.Errorf("IDX1 magic 0x%x, want 0x%x", hdr[0], labelMagic)
	}
	n := int(hdr[1])
	if n < 1 {
		return nil, errors.Errorf("degenerate IDX1 count %d", n)
	}
	if n > maxItems {
		return nil, errors.Errorf("IDX1 claims %d labels, refusing past %d", n, maxItems)
	}

	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrapf(err, "IDX1 promises %d labels", n)
	}
	labels := make([]int, n)
	for i, l := range raw {
		labels[i] = int(l)
	}
	return labels, nil
}

// OneHot expands integer labels into a [n, classes] matrix of 1s and 0s.
func OneHot(labels []int, classes int) (*tensor.Dense, error) {
	if classes < 2 {
		return nil, errors.Errorf("mnist: one-hot over %d classes makes no sense", classes)
	}
	backing := make([]float32, len(labels)*classes)
	for i, l := range labels {
		if l < 0 || l >= classes {
			return nil, errors.Errorf("mnist: label %d at index %d is outside [0, %d)", l, i, classes)
		}
		backing[i*classes+l] = 1
	}
	return tensor.New(tensor.WithShape(len(labels), classes), tensor.WithBacking(backing)), nil
}

// Trim cuts both tensors and the label slice down to the largest multiple
// of batchSize examples, so trainers never see a ragged final batch.
func Trim(xs, ys *tensor.Dense, labels []int, batchSize int) (*tensor.Dense, *tensor.Dense, []int, int, error) {
	n := xs.Shape()[0]
	batches := n / batchSize
	keep := batches * batchSize
	if keep == 0 {
		return nil, nil, nil, 0, errors.Errorf("mnist: %d examples cannot fill a single batch of %d", n, batchSize)
	}
	if keep == n {
		return xs, ys, labels, batches, nil
	}

	xv, err := xs.Slice(makeRS(0, keep))
	if err != nil {
		return nil, nil, nil, 0, errors.Wrap(err, "trimming images")
	}
	yv, err := ys.Slice(makeRS(0, keep))
	if err != nil {
		return nil, nil, nil, 0, errors.Wrap(err, "trimming labels")
	}
	return xv.(*tensor.Dense), yv.(*tensor.Dense), labels[:keep], batches, nil
}

// Head returns views of the first n examples.
func Head(xs *tensor.Dense, labels []int, n int) (*tensor.Dense, []int, error) {
	if n >= xs.Shape()[0] {
		return xs, labels, nil
	}
	if n < 1 {
		return nil, nil, errors.Errorf("mnist: cannot take the first %d examples", n)
	}
	xv, err := xs.Slice(makeRS(0, n))
	if err != nil {
		return nil, nil, errors.Wrap(err, "slicing images")
	}
	return xv.(*tensor.Dense), labels[:n], nil
}

type rs struct{ start, end int }

func (s rs) Start() int { return s.start }
func (s rs) End() int   { return s.end }
func (s rs) Step() int  { return 1 }

func makeRS(start, end int) rs { return rs{start, end} }

// SplitName maps the conventional split nicknames onto the IDX file
// prefixes ("test" is the t10k files).
func SplitName(s string) (string, error) {
	switch strings.ToLower(s) {
	case "train", "training":
		return "train", nil
	case "test", "t10k":
		return "t10k", nil
	}
	return "", errors.Errorf("mnist: unknown split %q", s)
}
