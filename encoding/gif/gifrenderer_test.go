package gif

import (
	"bytes"
	"image/gif"
	"strings"
	"testing"

	"github.com/titans-ml/titans"
)

func testFrame(epoch, index int) titans.Frame {
	image := make([]float32, 4*4)
	image[5] = 1
	return titans.Frame{
		Image:      image,
		Width:      4,
		Height:     4,
		Label:      1,
		Predicted:  1,
		Magnitudes: []float32{0.1, 0.9, 0.3},
		Epoch:      epoch,
		Index:      index,
	}
}

func TestRenderFrame(t *testing.T) {
	repr := renderFrame(testFrame(0, 0))
	lines := strings.Split(repr, "\n")
	if len(lines) != 4+3 {
		t.Fatalf("want 4 image rows and 3 bar rows, got %d lines:\n%s", len(lines), repr)
	}
	if lines[1][1] != '@' {
		t.Errorf("the lit pixel should render at full intensity, got %q", lines[1])
	}
	if !strings.Contains(lines[5], "###########") {
		t.Errorf("class 1 at 0.9 should fill most of its bar, got %q", lines[5])
	}
}

func TestEncodeFlush(t *testing.T) {
	var buf bytes.Buffer
	enc := NewGifEncoder(600, 600)
	enc.Writer = &buf

	for i := 0; i < 3; i++ {
		if err := enc.Encode(testFrame(0, i)); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("%+v", err)
	}

	out, err := gif.DecodeAll(&buf)
	if err != nil {
		t.Fatalf("the flushed stream is not a gif: %v", err)
	}
	if len(out.Image) != 3 {
		t.Errorf("want 3 frames, got %d", len(out.Image))
	}
}
