package titans

import (
	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
)

// EncodeImage scales raw 8-bit pixels into floats in [0, 1].
func EncodeImage(raw []byte, prealloc []float32) []float32 {
	if len(prealloc) != len(raw) {
		prealloc = make([]float32, len(raw))
	}
	for i := range raw {
		prealloc[i] = float32(raw[i])
	}
	vecf32.Scale(prealloc, 1.0/255.0)
	return prealloc
}

// ShiftImage translates a single-channel h×w image by dy rows and dx
// columns, zero-filling the vacated pixels.
func ShiftImage(image []float32, h, w, dy, dx int) ([]float32, error) {
	if len(image) != h*w {
		return nil, errors.Errorf("cannot shift %d pixels as a %d×%d image", len(image), h, w)
	}
	copied := make([]float32, len(image))
	src := MakeIterator(image, h, w)
	dst := MakeIterator(copied, h, w)
	for y := 0; y < h; y++ {
		sy := y - dy
		if sy < 0 || sy >= h {
			continue
		}
		for x := 0; x < w; x++ {
			sx := x - dx
			if sx < 0 || sx >= w {
				continue
			}
			dst[y][x] = src[sy][sx]
		}
	}
	ReturnIterator(h, w, src)
	ReturnIterator(h, w, dst)
	return copied, nil
}

// ShiftAugmenter widens each example with its four unit translations.
// Digits aren't rotation invariant, so shifts are the only safe
// augmentation here.
func ShiftAugmenter(h, w int) Augmenter {
	offsets := [4][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}
	return func(ex Example) []Example {
		retVal := make([]Example, 1, len(offsets)+1)
		retVal[0] = ex
		for _, d := range offsets {
			shifted, err := ShiftImage(ex.Image, h, w, d[0], d[1])
			if err != nil {
				return retVal[:1]
			}
			retVal = append(retVal, Example{Image: shifted, Label: ex.Label})
		}
		return retVal
	}
}
