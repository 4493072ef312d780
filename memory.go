package titans

import (
	"sync"

	"github.com/chewxy/math32"
)

// Memory is M2: a surprise-gated short-term memory. A percept is worth
// keeping when its activation vector is long, meaning the network saw
// something decisively; dull percepts are dropped on the floor. The
// buffer is bounded and evicts oldest first.
type Memory struct {
	sync.Mutex
	threshold float32
	capacity  int
	buf       []Percept
}

func NewMemory(threshold float32, capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{
		threshold: threshold,
		capacity:  capacity,
		buf:       make([]Percept, 0, capacity),
	}
}

// Observe scores the percept's surprise, the Euclidean norm of its
// activation magnitudes, and stores it when the surprise clears the
// threshold.
func (m *Memory) Observe(p Percept) (stored bool, surprise float32) {
	var ss float32
	for _, v := range p.Magnitudes {
		ss += v * v
	}
	surprise = math32.Sqrt(ss)
	if surprise <= m.threshold {
		return false, surprise
	}

	m.Lock()
	if len(m.buf) == m.capacity {
		copy(m.buf, m.buf[1:])
		m.buf = m.buf[:m.capacity-1]
	}
	m.buf = append(m.buf, p)
	m.Unlock()
	return true, surprise
}

func (m *Memory) Len() int {
	m.Lock()
	defer m.Unlock()
	return len(m.buf)
}

// Recent returns up to n stored percepts, newest last.
func (m *Memory) Recent(n int) []Percept {
	m.Lock()
	defer m.Unlock()
	if n > len(m.buf) {
		n = len(m.buf)
	}
	retVal := make([]Percept, n)
	copy(retVal, m.buf[len(m.buf)-n:])
	return retVal
}
