package titans

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"text/template"

	"github.com/awalterschulze/gographviz"
)

// NoRelatedConcepts is the sentinel M4 answers with when a concept has
// no outgoing edges. M5 treats it as a (poor) fallback candidate.
const NoRelatedConcepts = "No related concepts found."

// Reasoning is M4: lookups over a small directed knowledge graph of
// concepts and actions.
type Reasoning struct {
	mu    sync.RWMutex
	graph map[string][]string
}

// NewReasoning seeds the graph with one entry per digit concept plus
// the two degenerate concepts, and the follow-on for recording.
func NewReasoning(classes int) *Reasoning {
	graph := map[string][]string{
		ConceptAmbiguous:      {"ACTION_REQUEST_RESCAN", "NOTIFY_OPERATOR"},
		ConceptNoise:          {"DISCARD_FRAME"},
		"ACTION_RECORD_DIGIT": {"SAVE_RESULTS"},
	}
	for k := 0; k < classes; k++ {
		concept := fmt.Sprintf("%s%d", ConceptDigitPrefix, k)
		graph[concept] = []string{"ACTION_RECORD_DIGIT", "UPDATE_RUNNING_TOTAL"}
	}
	return &Reasoning{graph: graph}
}

// Related returns the concepts and actions reachable from concept in
// one hop, or the NoRelatedConcepts sentinel.
func (r *Reasoning) Related(concept string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	related, ok := r.graph[concept]
	if !ok {
		return []string{NoRelatedConcepts}
	}
	retVal := make([]string, len(related))
	copy(retVal, related)
	return retVal
}

// AddFact records that concept relates to the given concepts/actions,
// appending to whatever is already known.
func (r *Reasoning) AddFact(concept string, related ...string) {
	r.mu.Lock()
	r.graph[concept] = append(r.graph[concept], related...)
	r.mu.Unlock()
}

type conceptNode struct {
	Name   string
	Degree int
}

// ToDot renders the knowledge graph in graphviz dot form.
func (r *Reasoning) ToDot() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	// every node mentioned anywhere, sorted so the output is stable
	seen := make(map[string]struct{})
	for concept, related := range r.graph {
		seen[concept] = struct{}{}
		for _, rel := range related {
			seen[rel] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		tmpl.Execute(&buf, conceptNode{Name: name, Degree: len(r.graph[name])})
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    "none",
			"label":    buf.String(),
		}
		g.AddNode("G", fmt.Sprintf("%q", name), attrs)
		buf.Reset()
	}
	for _, concept := range names {
		for _, rel := range r.graph[concept] {
			g.AddEdge(fmt.Sprintf("%q", concept), fmt.Sprintf("%q", rel), true, nil)
		}
	}
	return g.String()
}

const tmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Concept</TD><TD>{{.Name}}</TD></TR>
<TR><TD>Out Degree</TD><TD>{{.Degree}}</TD></TR>
</TABLE>
>
`

var tmpl *template.Template

func init() {
	tmpl = template.Must(template.New("concept").Parse(tmplRaw))
}
