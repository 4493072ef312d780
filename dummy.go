package titans

// dummyInferer spreads its confidence evenly over the classes. It
// stands in for the capsule network when no weights exist yet.
type dummyInferer struct {
	classes int
	poseDim int
}

func (d dummyInferer) Classify(image []float32) (lengths, poses []float32, err error) {
	lengths = make([]float32, d.classes)
	for i := range lengths {
		lengths[i] = 1 / float32(d.classes)
	}
	poses = make([]float32, d.classes*d.poseDim)
	return lengths, poses, nil
}

func (d dummyInferer) Close() error { return nil }
