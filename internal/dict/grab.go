package dict

import (
	"context"
	"fmt"

	"desockfuzz/internal/tokens"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DictRedisKey is a set of dictionary file paths shared by all workers.
const DictRedisKey = "desockfuzz:dicts"

type DictGrabber struct {
	logger      *zap.Logger
	redisClient *redis.Client
}

type DictGrabberParams struct {
	fx.In

	Logger      *zap.Logger
	RedisClient *redis.Client `optional:"true"`
}

func NewDictGrabber(params DictGrabberParams) *DictGrabber {
	return &DictGrabber{
		params.Logger,
		params.RedisClient,
	}
}

// GrabDict loads the dictionary at path, if any, and merges in every
// dictionary listed in Redis. Entries are de-duplicated in first-seen
// order. Unreadable files listed in Redis are skipped; an unreadable path
// is an error.
func (d *DictGrabber) GrabDict(ctx context.Context, path string) (tokens.Dictionary, error) {
	var merged tokens.Dictionary
	if path != "" {
		local, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		merged = local
	}

	if d.redisClient == nil {
		return merged, nil
	}
	dictPaths, err := d.redisClient.SMembers(ctx, DictRedisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get dict set from redis: %w", err)
	}
	d.logger.Info("Got dicts from Redis", zap.Int("numDicts", len(dictPaths)))

	for _, p := range dictPaths {
		if p == path {
			continue
		}
		extra, err := ParseFile(p)
		if err != nil {
			d.logger.Warn("skipping shared dictionary", zap.String("path", p), zap.Error(err))
			continue
		}
		merged = Merge(merged, extra)
	}
	return merged, nil
}

// Merge appends the entries of b missing from a.
func Merge(a, b tokens.Dictionary) tokens.Dictionary {
	seen := make(map[string]struct{}, len(a))
	for _, e := range a {
		seen[string(e)] = struct{}{}
	}
	for _, e := range b {
		if _, ok := seen[string(e)]; ok {
			continue
		}
		seen[string(e)] = struct{}{}
		a = append(a, e)
	}
	return a
}
