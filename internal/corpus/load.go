package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"desockfuzz/internal/input"
	"desockfuzz/internal/utils"
	"desockfuzz/pkg/telemetry"

	"go.uber.org/zap"
)

// Shard selects this worker's share of a directory listing.
type Shard struct {
	Position int // index of the worker's core in the core list
	Count    int // number of cores in the campaign
}

func (s Shard) owns(i int) bool {
	if s.Count <= 1 {
		return true
	}
	return i%s.Count == s.Position
}

// LoadSeeds reads the seed corpus, a directory or a tar.gz blob, and adds
// this worker's share of it to the queue.
func (c *Corpus[P]) LoadSeeds(ctx context.Context, path string, shard Shard) (int, error) {
	dir := path
	if info, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("failed to stat seed corpus: %w", err)
	} else if !info.IsDir() && utils.IsTarGz(path) {
		tmp, err := os.MkdirTemp("", "desockfuzz-seeds-*")
		if err != nil {
			return 0, fmt.Errorf("failed to create seed directory: %w", err)
		}
		defer os.RemoveAll(tmp)
		if err := utils.UnpackTarGz(path, tmp); err != nil {
			return 0, err
		}
		dir = tmp
	}
	return c.load(ctx, dir, shard, true)
}

// LoadQueue reads this worker's share of the existing queue directory,
// resuming a previous campaign.
func (c *Corpus[P]) LoadQueue(ctx context.Context, shard Shard) (int, error) {
	return c.load(ctx, c.queueDir, shard, false)
}

func (c *Corpus[P]) load(ctx context.Context, dir string, shard Shard, store bool) (int, error) {
	tracer := telemetry.FromContext(ctx).Spawn("loading corpus")
	tracer.Start()
	defer tracer.End()

	files, err := listFiles(dir)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for i, path := range files {
		if !shard.owns(i) {
			continue
		}
		if !store {
			// queue files keep their names so the watcher skips them later
			c.names[filepath.Base(path)] = struct{}{}
		}
		in, err := input.Load(c.factory, path)
		if err != nil {
			c.logger.Warn("skipping unreadable corpus file", zap.String("path", path), zap.Error(err))
			continue
		}
		var added bool
		if store {
			added, err = c.Add(in)
		} else {
			added, err = c.keep(in)
		}
		if err != nil {
			return loaded, err
		}
		if added {
			loaded++
		}
	}

	c.logger.Info("loaded corpus",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Int("loaded", loaded),
		zap.Int("position", shard.Position))
	tracer.WithAttributes(telemetry.EmptySpanAttributes().WithCorpusSize(len(c.entries)))
	return loaded, nil
}

// listFiles returns the regular, non-hidden files of dir in name order.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}
