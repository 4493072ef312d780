package titans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/titans-ml/titans/steplog"
)

// TraceResult collects everything one input produced on its way
// through M1..M5.
type TraceResult struct {
	ID string

	Percept  Percept
	Surprise float32
	Stored   bool
	Concept  string
	Related  []string
	Decision Decision

	Took time.Duration
}

// RunTrace pushes one image through all five modules, logging each
// stage and appending a hash-chained step per stage to the step log
// (when one is attached).
func (c *Cognition) RunTrace(ctx context.Context, image []float32) (*TraceResult, error) {
	res := &TraceResult{ID: uuid.New().String()}
	logger := c.log.With().Str("trace", res.ID).Logger()
	begin := time.Now()

	// M1: perception
	start := time.Now()
	percept, err := c.Perception.Perceive(image)
	if err != nil {
		return nil, err
	}
	took := time.Since(start)
	res.Percept = percept
	logger.Info().Int("class", percept.Class).Float32("confidence", percept.Confidence).Dur("took", took).Msg("M1 percept")
	if err := c.appendStep(ctx, res.ID, "M1", "PERCEPT", map[string]interface{}{
		"class":      percept.Class,
		"confidence": float64(percept.Confidence),
		"magnitudes": f64s(percept.Magnitudes),
	}, took); err != nil {
		return nil, err
	}

	// M2: memory
	start = time.Now()
	res.Stored, res.Surprise = c.Memory.Observe(percept)
	took = time.Since(start)
	logger.Info().Bool("stored", res.Stored).Float32("surprise", res.Surprise).Int("stm", c.Memory.Len()).Dur("took", took).Msg("M2 memory")
	if err := c.appendStep(ctx, res.ID, "M2", "MEMORY", map[string]interface{}{
		"stored":   res.Stored,
		"surprise": float64(res.Surprise),
	}, took); err != nil {
		return nil, err
	}

	// M3: abstraction
	start = time.Now()
	res.Concept = c.Abstraction.Conceptualize(percept)
	took = time.Since(start)
	logger.Info().Str("concept", res.Concept).Dur("took", took).Msg("M3 abstraction")
	if err := c.appendStep(ctx, res.ID, "M3", "ABSTRACT", map[string]interface{}{
		"concept": res.Concept,
	}, took); err != nil {
		return nil, err
	}

	// M4: reasoning
	start = time.Now()
	res.Related = c.Reasoning.Related(res.Concept)
	took = time.Since(start)
	logger.Info().Strs("related", res.Related).Dur("took", took).Msg("M4 reasoning")
	if err := c.appendStep(ctx, res.ID, "M4", "REASON", map[string]interface{}{
		"concept": res.Concept,
		"related": res.Related,
	}, took); err != nil {
		return nil, err
	}

	// M5: agency
	start = time.Now()
	res.Decision = c.Agency.Decide(res.Related)
	took = time.Since(start)
	logger.Info().Str("decision", res.Decision.String()).Dur("took", took).Msg("M5 agency")
	if err := c.appendStep(ctx, res.ID, "M5", "ACT", map[string]interface{}{
		"action":   res.Decision.Action,
		"fallback": res.Decision.Fallback,
		"decision": res.Decision.String(),
	}, took); err != nil {
		return nil, err
	}

	res.Took = time.Since(begin)
	return res, nil
}

func (c *Cognition) appendStep(ctx context.Context, trace, source, event string, payload map[string]interface{}, took time.Duration) error {
	if c.steps == nil {
		return nil
	}
	return c.steps.Append(ctx, &steplog.Step{
		TS:      float64(time.Now().UnixNano()) / 1e9,
		TraceID: trace,
		Source:  source,
		Event:   event,
		Payload: payload,
		Metrics: map[string]float64{"dt_ms": float64(took) / float64(time.Millisecond)},
	})
}

func f64s(a []float32) []interface{} {
	retVal := make([]interface{}, len(a))
	for i, v := range a {
		retVal[i] = float64(v)
	}
	return retVal
}
