package mnist

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idx3(n, rows, cols int, pixels []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int32(imageMagic))
	binary.Write(&buf, binary.BigEndian, int32(n))
	binary.Write(&buf, binary.BigEndian, int32(rows))
	binary.Write(&buf, binary.BigEndian, int32(cols))
	buf.Write(pixels)
	return buf.Bytes()
}

func idx1(labels []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int32(labelMagic))
	binary.Write(&buf, binary.BigEndian, int32(len(labels)))
	buf.Write(labels)
	return buf.Bytes()
}

func TestReadImages(t *testing.T) {
	assert := assert.New(t)
	pixels := []byte{0, 51, 102, 153, 204, 255, 255, 0}
	xs, err := ReadImages(bytes.NewReader(idx3(2, 2, 2, pixels)))
	require.NoError(t, err)

	assert.Equal([]int{2, 1, 2, 2}, []int(xs.Shape()))
	data := xs.Data().([]float32)
	assert.Equal(float32(0), data[0])
	assert.InDelta(0.2, data[1], 1e-6)
	assert.Equal(float32(1), data[5])
}

func TestReadImagesBadMagic(t *testing.T) {
	raw := idx3(1, 1, 1, []byte{7})
	raw[3] = 0x01 // clobber the magic
	_, err := ReadImages(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestReadImagesTruncated(t *testing.T) {
	raw := idx3(2, 2, 2, make([]byte, 8))
	_, err := ReadImages(bytes.NewReader(raw[:len(raw)-3]))
	assert.Error(t, err)
}

// A hostile header can claim dimensions whose product overflows, or is
// huge enough to allocate gigabytes before ReadFull notices the stream
// is short. Such headers must be rejected before any allocation.
func TestReadImagesHostileHeader(t *testing.T) {
	for _, raw := range [][]byte{
		idx3(1, 1<<30, 1<<30, nil),        // rows·cols alone overflows int32
		idx3(2147483647, 4096, 4096, nil), // n·rows·cols past int64 territory
		idx3(1, 1, maxImageDim+1, nil),    // one oversized dimension
		idx3(maxItems+1, 2, 2, nil),       // absurd image count
	} {
		_, err := ReadImages(bytes.NewReader(raw))
		assert.Error(t, err)
	}
}

func TestReadLabelsHostileCount(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int32(labelMagic))
	binary.Write(&buf, binary.BigEndian, int32(maxItems+1))
	_, err := ReadLabels(bytes.NewReader(buf.Bytes()))
	assert.Error(t, err)
}

func TestReadLabels(t *testing.T) {
	labels, err := ReadLabels(bytes.NewReader(idx1([]byte{3, 1, 4, 1, 5})))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 4, 1, 5}, labels)
}

func TestOneHot(t *testing.T) {
	assert := assert.New(t)
	ys, err := OneHot([]int{1, 0, 2}, 3)
	require.NoError(t, err)

	assert.Equal([]int{3, 3}, []int(ys.Shape()))
	assert.Equal([]float32{
		0, 1, 0,
		1, 0, 0,
		0, 0, 1,
	}, ys.Data().([]float32))

	_, err = OneHot([]int{3}, 3)
	assert.Error(err, "out-of-range labels must be rejected")
}

func TestTrim(t *testing.T) {
	assert := assert.New(t)
	pixels := make([]byte, 5*4)
	xs, err := ReadImages(bytes.NewReader(idx3(5, 2, 2, pixels)))
	require.NoError(t, err)
	labels := []int{0, 1, 0, 1, 0}
	ys, err := OneHot(labels, 2)
	require.NoError(t, err)

	xs2, ys2, labels2, batches, err := Trim(xs, ys, labels, 2)
	require.NoError(t, err)
	assert.Equal(2, batches)
	assert.Equal(4, xs2.Shape()[0])
	assert.Equal(4, ys2.Shape()[0])
	assert.Len(labels2, 4)

	_, _, _, _, err = Trim(xs, ys, labels, 6)
	assert.Error(err, "a batch larger than the split must be rejected")
}

func TestHead(t *testing.T) {
	xs, err := ReadImages(bytes.NewReader(idx3(5, 2, 2, make([]byte, 5*4))))
	require.NoError(t, err)
	labels := []int{0, 1, 2, 3, 4}

	xs2, labels2, err := Head(xs, labels, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, xs2.Shape()[0])
	assert.Equal(t, []int{0, 1, 2}, labels2)

	xs3, labels3, err := Head(xs, labels, 9)
	require.NoError(t, err)
	assert.Equal(t, 5, xs3.Shape()[0])
	assert.Len(t, labels3, 5)

	_, _, err = Head(xs, labels, 0)
	assert.Error(t, err)
}

func TestSplitName(t *testing.T) {
	for in, want := range map[string]string{"train": "train", "test": "t10k", "T10K": "t10k"} {
		got, err := SplitName(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := SplitName("validation")
	assert.Error(t, err)
}
