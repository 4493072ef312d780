// Package steplog records cognitive steps in an append-only JSONL file
// with a per-trace SHA-256 hash chain, indexed for lookup in SQLite.
package steplog

import (
	"bufio"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Step is one logged cognitive event. Hash covers every field but
// itself; PrevHash chains it to the previous step of the same trace.
type Step struct {
	TS       float64                `json:"ts"`
	TraceID  string                 `json:"trace_id"`
	Source   string                 `json:"source"`
	Event    string                 `json:"event"`
	Payload  map[string]interface{} `json:"payload"`
	Metrics  map[string]float64     `json:"metrics"`
	PrevHash string                 `json:"prev_hash"`
	Hash     string                 `json:"hash"`
}

// HashOf computes the step's chain hash: SHA-256 over the canonical JSON
// of everything except the hash itself. encoding/json writes map keys in
// sorted order, so the encoding is stable.
func HashOf(s Step) (string, error) {
	b, err := json.Marshal(map[string]interface{}{
		"ts":        s.TS,
		"trace_id":  s.TraceID,
		"source":    s.Source,
		"event":     s.Event,
		"payload":   s.Payload,
		"metrics":   s.Metrics,
		"prev_hash": s.PrevHash,
	})
	if err != nil {
		return "", errors.Wrap(err, "steplog: canonicalizing step")
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

const schema = `CREATE TABLE IF NOT EXISTS steps(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts REAL, trace_id TEXT, source TEXT, event TEXT,
	hash TEXT UNIQUE, prev_hash TEXT, byte_offset INTEGER
);
CREATE INDEX IF NOT EXISTS idx_trace ON steps(trace_id);`

// Log is a single-process step log: steps.jsonl plus index.sqlite in
// one directory. Appends are serialized; the JSONL file is the record,
// the database only an index into it.
type Log struct {
	mu  sync.Mutex
	f   *os.File
	db  *sqlx.DB
	dir string
}

// Open creates dir if needed and opens (or creates) the log inside it.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "steplog: creating %q", dir)
	}
	f, err := os.OpenFile(filepath.Join(dir, "steps.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "steplog: opening steps.jsonl")
	}
	db, err := sqlx.Open("sqlite", filepath.Join(dir, "index.sqlite"))
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "steplog: opening index.sqlite")
	}
	if _, err := db.Exec(schema); err != nil {
		f.Close()
		db.Close()
		return nil, errors.Wrap(err, "steplog: ensuring schema")
	}
	return &Log{f: f, db: db, dir: dir}, nil
}

// Append chains, hashes and records one step. If s.PrevHash is empty it
// is filled in from the trace's latest recorded hash; s.Hash is always
// computed here. The JSONL write happens before the index insert, so a
// crash can leave an unindexed line but never an index entry without
// its line.
func (l *Log) Append(ctx context.Context, s *Step) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.PrevHash == "" {
		prev, err := l.latestHash(ctx, s.TraceID)
		if err != nil {
			return err
		}
		s.PrevHash = prev
	}
	h, err := HashOf(*s)
	if err != nil {
		return err
	}
	s.Hash = h

	line, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "steplog: marshaling step")
	}
	off, err := l.f.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.Wrap(err, "steplog: seeking log end")
	}
	if _, err := l.f.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "steplog: appending step")
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO steps(ts, trace_id, source, event, hash, prev_hash, byte_offset) VALUES(?,?,?,?,?,?,?)`,
		s.TS, s.TraceID, s.Source, s.Event, s.Hash, s.PrevHash, off)
	return errors.Wrap(err, "steplog: indexing step")
}

// LatestHash returns the newest hash recorded for the trace, or "" when
// the trace has no steps yet.
func (l *Log) LatestHash(ctx context.Context, traceID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latestHash(ctx, traceID)
}

func (l *Log) latestHash(ctx context.Context, traceID string) (string, error) {
	var hash string
	err := l.db.GetContext(ctx, &hash,
		`SELECT hash FROM steps WHERE trace_id=? ORDER BY id DESC LIMIT 1`, traceID)
	if err == nil {
		return hash, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return "", errors.Wrapf(err, "steplog: latest hash of trace %q", traceID)
}

// ReadTrace returns the trace's steps in append order, read back from
// the JSONL file at the indexed byte offsets.
func (l *Log) ReadTrace(ctx context.Context, traceID string) ([]Step, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var offsets []int64
	if err := l.db.SelectContext(ctx, &offsets,
		`SELECT byte_offset FROM steps WHERE trace_id=? ORDER BY id`, traceID); err != nil {
		return nil, errors.Wrapf(err, "steplog: offsets of trace %q", traceID)
	}

	f, err := os.Open(filepath.Join(l.dir, "steps.jsonl"))
	if err != nil {
		return nil, errors.Wrap(err, "steplog: opening steps.jsonl for reading")
	}
	defer f.Close()

	steps := make([]Step, 0, len(offsets))
	for _, off := range offsets {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return nil, errors.Wrapf(err, "steplog: seeking offset %d", off)
		}
		line, err := bufio.NewReader(f).ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "steplog: reading step at offset %d", off)
		}
		var s Step
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, errors.Wrapf(err, "steplog: decoding step at offset %d", off)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// Verify rereads the trace's chain from the JSONL file, recomputing
// every hash. It returns the index of the first divergent step, or -1
// when the chain is intact.
func (l *Log) Verify(ctx context.Context, traceID string) (int, error) {
	steps, err := l.ReadTrace(ctx, traceID)
	if err != nil {
		return -1, err
	}
	var prev string
	for i, s := range steps {
		if s.PrevHash != prev {
			return i, errors.Errorf("steplog: step %d of trace %q chains to %q, the log says %q", i, traceID, s.PrevHash, prev)
		}
		h, err := HashOf(s)
		if err != nil {
			return i, err
		}
		if h != s.Hash {
			return i, errors.Errorf("steplog: step %d of trace %q hashes to %q, the log says %q", i, traceID, h, s.Hash)
		}
		prev = s.Hash
	}
	return -1, nil
}

// Traces lists every trace ID in first-seen order.
func (l *Log) Traces(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []string
	err := l.db.SelectContext(ctx, &ids,
		`SELECT trace_id FROM steps GROUP BY trace_id ORDER BY MIN(id)`)
	return ids, errors.Wrap(err, "steplog: listing traces")
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ferr := l.f.Close()
	derr := l.db.Close()
	if ferr != nil {
		return ferr
	}
	return derr
}
