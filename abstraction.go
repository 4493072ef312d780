package titans

import "fmt"

// Concept names produced by M3 and consumed by M4.
const (
	ConceptDigitPrefix = "CONCEPT_DIGIT_"
	ConceptAmbiguous   = "CONCEPT_AMBIGUOUS_INPUT"
	ConceptNoise       = "CONCEPT_BACKGROUND_NOISE"
)

// Abstraction is M3: it lifts a percept into a symbolic concept. A
// confident winner names its digit; an activation vector that is quiet
// everywhere is noise; anything in between is ambiguous.
type Abstraction struct {
	ConfidenceThreshold float32
	NoiseFloor          float32
}

func (a Abstraction) Conceptualize(p Percept) string {
	if p.Confidence >= a.ConfidenceThreshold {
		return fmt.Sprintf("%s%d", ConceptDigitPrefix, p.Class)
	}
	for _, mag := range p.Magnitudes {
		if mag >= a.NoiseFloor {
			return ConceptAmbiguous
		}
	}
	return ConceptNoise
}
