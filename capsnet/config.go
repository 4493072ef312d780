package capsnet

// Config configures the capsule network
type Config struct {
	StemFilters int // feature stem filter count
	StemKernel  int // feature stem kernel size

	PrimaryTypes  int // capsule types per grid position
	PrimaryDim    int // primary pose vector length
	PrimaryKernel int // reduction kernel size
	PrimaryStride int // reduction stride

	Classes   int // class capsule count
	ClassDim  int // class pose vector length
	Rounds    int // routing iterations
	PosMargin float64
	NegMargin float64
	Lambda    float64 // down-weights the loss of absent classes

	BatchSize     int
	Width, Height int // input image size
	Channels      int // input image channels

	FwdOnly bool // is this a fwd only graph?
}

func DefaultConf(h, w, classes int) Config {
	return Config{
		StemFilters: 256,
		StemKernel:  9,

		PrimaryTypes:  32,
		PrimaryDim:    8,
		PrimaryKernel: 9,
		PrimaryStride: 2,

		Classes:   classes,
		ClassDim:  16,
		Rounds:    3,
		PosMargin: 0.9,
		NegMargin: 0.1,
		Lambda:    0.5,

		BatchSize: 128,
		Width:     w,
		Height:    h,
		Channels:  1,
	}
}

func (conf Config) IsValid() bool {
	return conf.StemFilters >= 1 &&
		conf.StemKernel >= 1 &&
		conf.PrimaryTypes >= 1 &&
		conf.PrimaryDim >= 1 &&
		conf.PrimaryKernel >= 1 &&
		conf.PrimaryStride >= 1 &&
		conf.Classes >= 2 &&
		conf.ClassDim >= 1 &&
		conf.Rounds >= 1 &&
		conf.PosMargin > conf.NegMargin &&
		conf.NegMargin >= 0 &&
		conf.Lambda > 0 &&
		conf.BatchSize >= 1 &&
		conf.Width >= 1 &&
		conf.Height >= 1 &&
		conf.Channels >= 1
}

// gridDims returns the spatial size of the primary capsule grid.
func (conf Config) gridDims() (h, w int) {
	h = convOutDim(conf.Height, conf.StemKernel, 1)
	w = convOutDim(conf.Width, conf.StemKernel, 1)
	h = convOutDim(h, conf.PrimaryKernel, conf.PrimaryStride)
	w = convOutDim(w, conf.PrimaryKernel, conf.PrimaryStride)
	return h, w
}

// NumPrimary returns the total primary capsule count: one capsule per
// type per position of the reduced grid.
func (conf Config) NumPrimary() int {
	h, w := conf.gridDims()
	return h * w * conf.PrimaryTypes
}
