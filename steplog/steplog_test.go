package steplog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tstep(trace, source, event string) *Step {
	return &Step{
		TS:      float64(time.Now().UnixNano()) / 1e9,
		TraceID: trace,
		Source:  source,
		Event:   event,
		Payload: map[string]interface{}{"concept": "CONCEPT_DIGIT_7"},
		Metrics: map[string]float64{"dt_ms": 1.25},
	}
}

func TestAppendChains(t *testing.T) {
	assert := assert.New(t)
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()
	ctx := context.Background()

	s1 := tstep("demo-001", "M1", "PERCEPT")
	require.NoError(t, l.Append(ctx, s1))
	assert.Empty(s1.PrevHash, "the first step of a trace chains to nothing")
	assert.NotEmpty(s1.Hash)

	s2 := tstep("demo-001", "M3", "ABSTRACT")
	require.NoError(t, l.Append(ctx, s2))
	assert.Equal(s1.Hash, s2.PrevHash)

	// a second trace starts its own chain
	o1 := tstep("demo-002", "M1", "PERCEPT")
	require.NoError(t, l.Append(ctx, o1))
	assert.Empty(o1.PrevHash)

	latest, err := l.LatestHash(ctx, "demo-001")
	require.NoError(t, err)
	assert.Equal(s2.Hash, latest)

	latest, err = l.LatestHash(ctx, "no-such-trace")
	require.NoError(t, err)
	assert.Empty(latest)
}

func TestReadTraceRoundTrip(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()
	ctx := context.Background()

	var want []Step
	for _, ev := range []string{"PERCEPT", "MEMORY", "ABSTRACT", "REASON", "ACT"} {
		s := tstep("demo-001", "M1", ev)
		require.NoError(t, l.Append(ctx, s))
		want = append(want, *s)
	}
	// interleave another trace; it must not show up
	require.NoError(t, l.Append(ctx, tstep("demo-002", "M1", "PERCEPT")))

	got, err := l.ReadTrace(ctx, "demo-001")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trace read back differently (-want +got):\n%s", diff)
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()

	for _, ev := range []string{"PERCEPT", "ABSTRACT", "ACT"} {
		require.NoError(t, l.Append(ctx, tstep("demo-001", "M1", ev)))
	}
	bad, err := l.Verify(ctx, "demo-001")
	require.NoError(t, err)
	assert.Equal(t, -1, bad)
	require.NoError(t, l.Close())

	// tamper with the middle step's payload, keeping its recorded hash
	raw, err := os.ReadFile(filepath.Join(dir, "steps.jsonl"))
	require.NoError(t, err)
	lines := splitLines(raw)
	var s Step
	require.NoError(t, json.Unmarshal(lines[1], &s))
	s.Payload["concept"] = "CONCEPT_DIGIT_1"
	tampered, err := json.Marshal(&s)
	require.NoError(t, err)
	lines[1] = tampered
	require.NoError(t, os.WriteFile(filepath.Join(dir, "steps.jsonl"), joinLines(lines), 0644))

	l, err = Open(dir)
	require.NoError(t, err)
	defer l.Close()
	bad, err = l.Verify(ctx, "demo-001")
	assert.Error(t, err)
	assert.Equal(t, 1, bad, "the tampered step must be named")
}

func TestHashCoversPrevHash(t *testing.T) {
	s := *tstep("demo-001", "M5", "ACT")
	h1, err := HashOf(s)
	require.NoError(t, err)
	s.PrevHash = "deadbeef"
	h2, err := HashOf(s)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestTraces(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, tstep("b-trace", "M1", "PERCEPT")))
	require.NoError(t, l.Append(ctx, tstep("a-trace", "M1", "PERCEPT")))
	require.NoError(t, l.Append(ctx, tstep("b-trace", "M3", "ABSTRACT")))

	ids, err := l.Traces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-trace", "a-trace"}, ids, "traces list in first-seen order")
}

func splitLines(raw []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range raw {
		if b == '\n' {
			lines = append(lines, append([]byte(nil), raw[start:i]...))
			start = i + 1
		}
	}
	return lines
}

func joinLines(lines [][]byte) []byte {
	var out []byte
	for _, l := range lines {
		out = append(out, l...)
		out = append(out, '\n')
	}
	return out
}
