package shmem

import "fmt"

const (
	// MapSize is the default coverage map size.
	MapSize = 1 << 16
	// CoverageMapEnv names the variable AFL instrumentation attaches through.
	CoverageMapEnv = "__AFL_SHM_ID"
	// MapSizeEnv advertises the map size to the instrumentation.
	MapSizeEnv = "AFL_MAP_SIZE"
)

// CoverageMap is the edge hit-count map written by the instrumented target.
type CoverageMap struct {
	mem  []byte
	size int
}

func NewCoverageMap(mem []byte) *CoverageMap {
	return &CoverageMap{mem, len(mem)}
}

// Truncate shrinks the active map to the size the target advertised.
func (m *CoverageMap) Truncate(n int) error {
	if n <= 0 || n > len(m.mem) {
		return fmt.Errorf("coverage map size %d out of range (0, %d]", n, len(m.mem))
	}
	m.size = n
	return nil
}

func (m *CoverageMap) Len() int {
	return m.size
}

func (m *CoverageMap) Bytes() []byte {
	return m.mem[:m.size]
}

func (m *CoverageMap) Reset() {
	clear(m.mem[:m.size])
}

// Hits counts the non-zero entries of the active map.
func (m *CoverageMap) Hits() int {
	n := 0
	for _, b := range m.mem[:m.size] {
		if b != 0 {
			n++
		}
	}
	return n
}
