package titans

import (
	"fmt"
	"strings"
)

// Decision is M5's verdict on a set of candidate actions.
type Decision struct {
	Action   string
	Fallback bool
}

func (d Decision) String() string {
	switch {
	case d.Action == "":
		return "Decision: No action required."
	case d.Fallback:
		return fmt.Sprintf("Decision: Fallback to '%s'.", d.Action)
	default:
		return fmt.Sprintf("Decision: Execute '%s'.", d.Action)
	}
}

// Agency is M5: a priority scheme over candidate actions. The first
// explicit ACTION_ candidate wins; failing that the first candidate of
// any kind; failing that, nothing.
type Agency struct{}

func (Agency) Decide(candidates []string) Decision {
	for _, c := range candidates {
		if strings.Contains(c, "ACTION_") {
			return Decision{Action: c}
		}
	}
	if len(candidates) > 0 {
		return Decision{Action: candidates[0], Fallback: true}
	}
	return Decision{}
}
