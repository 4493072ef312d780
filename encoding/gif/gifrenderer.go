package gif

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"
	"strings"

	"github.com/golang/freetype/truetype"
	"github.com/titans-ml/titans"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi             = 144.0
	fontsize        = 12.0
	lineheight      = 1.2
	dummyLongString = `Epoch 100000, Image Number: 10000`
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var globPalette = color.Palette{
	color.Gray{0},
	color.Gray{253},
}

// Encoder renders classification frames into an animated GIF, one
// frame per image, according to the titans.OutputEncoder interface.
type Encoder struct {
	H, W int
	font.Drawer

	out *gif.GIF
	io.Writer
	face font.Face

	maxH, maxW  int // maxHeight and maxWidth
	padH, padW  int // padding so everything don't start at the topleft
	initialized bool
}

// NewGifEncoder with height and width
func NewGifEncoder(h, w int) *Encoder {
	return &Encoder{
		H:    -1,
		W:    -1,
		maxH: h,
		maxW: w,
		padH: 10,
		padW: 10,

		Drawer: font.Drawer{
			Src: image.Black,
		},
		out: &gif.GIF{LoopCount: -1},
	}
}

// Encode a frame
func (enc *Encoder) Encode(f titans.Frame) error {
	repr := renderFrame(f)

	if !enc.initialized {
		// lazy init of specifications
		enc.face = truetype.NewFace(regular, &truetype.Options{
			Size:    fontsize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		enc.Drawer.Src = image.Black
		enc.Drawer.Face = enc.face

		// first calculate how long the max length will be
		splits := strings.Split(repr, "\n")
		oneline := splits[0]
		maxW := maxInt(font.MeasureString(enc.Face, oneline).Ceil(), font.MeasureString(enc.Face, dummyLongString).Ceil())
		dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
		w := maxW + 2*enc.padW
		h := (len(splits)+2)*dy + 2*enc.padH // + 2 is for the 2 extra lines: verdict, and epoch/index

		w = minInt(w, enc.maxW)
		h = minInt(h, enc.maxH)

		if w == enc.maxW {
			enc.padW = 0
		}
		if h == enc.maxH {
			enc.padH = 0
		}

		enc.H = h
		enc.W = w
		enc.initialized = true
	}

	y := 0

	bg := image.White
	im := image.NewPaletted(image.Rect(0, 0, enc.W, enc.H), globPalette)
	draw.Draw(im, im.Bounds(), bg, image.ZP, draw.Src)
	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	y += dy
	text := strings.Split(repr, "\n")
	enc.Dst = im
	for _, s := range text {
		enc.Dot = fixed.P(0+enc.padW, y)
		enc.DrawString(s)
		y += dy
	}
	enc.Dot = fixed.P(0+enc.padW, y)
	enc.DrawString(verdict(f))
	y += dy

	enc.Dot = fixed.P(0+enc.padW, y)
	enc.DrawString(fmt.Sprintf("Epoch %d, Image Number: %d ", f.Epoch, f.Index))

	var delay int
	if f.Index == 0 {
		// hold the first frame of every epoch so the eye can catch up
		delay = 100
	}
	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, delay)
	return nil
}

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error { return gif.EncodeAll(enc.Writer, enc.out) }

const ramp = " .:-=+*#%@"

// renderFrame turns a frame into monospaced text: the image as an
// intensity ramp, then one magnitude bar per class.
func renderFrame(f titans.Frame) string {
	var buf strings.Builder
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			px := f.Image[y*f.Width+x]
			i := int(px * float32(len(ramp)))
			if i >= len(ramp) {
				i = len(ramp) - 1
			}
			if i < 0 {
				i = 0
			}
			buf.WriteByte(ramp[i])
		}
		buf.WriteByte('\n')
	}
	for j, mag := range f.Magnitudes {
		bar := int(mag*12 + 0.5)
		if bar > 12 {
			bar = 12
		}
		fmt.Fprintf(&buf, "%d %-12s %.2f\n", j, strings.Repeat("#", bar), mag)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func verdict(f titans.Frame) string {
	if f.Label < 0 {
		return fmt.Sprintf("Predicted: %d", f.Predicted)
	}
	if f.Label == f.Predicted {
		return fmt.Sprintf("Predicted: %d, Label: %d (match)", f.Predicted, f.Label)
	}
	return fmt.Sprintf("Predicted: %d, Label: %d (MISS)", f.Predicted, f.Label)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
