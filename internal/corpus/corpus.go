// Package corpus keeps a worker's test cases in memory and mirrors them to
// the shared on-disk queue directory.
package corpus

import (
	"crypto/md5"
	"fmt"
	"path/filepath"

	"desockfuzz/internal/input"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Corpus is owned by a single worker goroutine and is not safe for
// concurrent use.
type Corpus[P input.Packet[P]] struct {
	queueDir string
	factory  input.PacketFactory[P]
	logger   *zap.Logger

	entries []*input.Input[P]
	current int
	started bool

	// digests of every document held, to drop duplicate imports
	seen map[[md5.Size]byte]struct{}
	// file names this corpus wrote or already imported
	names map[string]struct{}
}

func New[P input.Packet[P]](queueDir string, factory input.PacketFactory[P], logger *zap.Logger) *Corpus[P] {
	return &Corpus[P]{
		queueDir: queueDir,
		factory:  factory,
		logger:   logger,
		seen:     make(map[[md5.Size]byte]struct{}),
		names:    make(map[string]struct{}),
	}
}

func (c *Corpus[P]) Count() int {
	return len(c.entries)
}

// Current is the entry most recently handed out by Next.
func (c *Corpus[P]) Current() (int, bool) {
	return c.current, c.started
}

func (c *Corpus[P]) Get(id int) (*input.Input[P], error) {
	if id < 0 || id >= len(c.entries) {
		return nil, fmt.Errorf("corpus entry %d out of range [0, %d)", id, len(c.entries))
	}
	return c.entries[id], nil
}

// Next selects entries in queue order, wrapping around at the end.
func (c *Corpus[P]) Next() (int, *input.Input[P], bool) {
	if len(c.entries) == 0 {
		return 0, nil, false
	}
	if c.started {
		c.current = (c.current + 1) % len(c.entries)
	} else {
		c.current, c.started = 0, true
	}
	return c.current, c.entries[c.current], true
}

// Add keeps in and writes it to the queue directory under a fresh name.
// Inputs already present are ignored and reported as not added.
func (c *Corpus[P]) Add(in *input.Input[P]) (bool, error) {
	doc, err := in.Encode()
	if err != nil {
		return false, fmt.Errorf("failed to encode corpus entry: %w", err)
	}
	if !c.remember(doc) {
		return false, nil
	}
	name := uuid.NewString()
	c.names[name] = struct{}{}
	if err := input.WriteAtomic(filepath.Join(c.queueDir, name), doc); err != nil {
		return false, fmt.Errorf("failed to store corpus entry: %w", err)
	}
	c.entries = append(c.entries, in)
	return true, nil
}

// Import loads a queue file written by another worker.
func (c *Corpus[P]) Import(path string) (bool, error) {
	name := filepath.Base(path)
	if _, ok := c.names[name]; ok {
		return false, nil
	}
	c.names[name] = struct{}{}
	in, err := input.Load(c.factory, path)
	if err != nil {
		return false, err
	}
	return c.keep(in)
}

// keep adds in to memory only, skipping duplicates.
func (c *Corpus[P]) keep(in *input.Input[P]) (bool, error) {
	doc, err := in.Encode()
	if err != nil {
		return false, fmt.Errorf("failed to encode corpus entry: %w", err)
	}
	if !c.remember(doc) {
		return false, nil
	}
	c.entries = append(c.entries, in)
	return true, nil
}

func (c *Corpus[P]) remember(doc []byte) bool {
	sum := md5.Sum(doc)
	if _, ok := c.seen[sum]; ok {
		return false
	}
	c.seen[sum] = struct{}{}
	return true
}
