package crash

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"desockfuzz/internal/types"
	"desockfuzz/pkg/database"
	"desockfuzz/pkg/mq"
	"desockfuzz/pkg/telemetry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// CrashQueue receives a types.CrashNotification per new crash.
	CrashQueue = "desockfuzz_crashes"
	// crashRedisKey marks a crash hash as seen by some worker on some host.
	crashRedisKey = "desockfuzz:crash:%s"
	crashKeyTTL   = 30 * 24 * time.Hour
)

// CrashManager stores crash artifacts and fans out notifications. Every
// backend except the crash folder is optional.
type CrashManager struct {
	db     *gorm.DB
	redis  *redis.Client
	mq     mq.RabbitMQ
	logger *zap.Logger

	crashFolder string
	crashChan   chan types.CrashMessage
	wg          sync.WaitGroup
	done        chan struct{}

	mu     sync.Mutex
	stored int
}

type CrashManagerParams struct {
	fx.In

	DB          *gorm.DB      `optional:"true"`
	RedisClient *redis.Client `optional:"true"`
	RabbitMQ    mq.RabbitMQ   `optional:"true"`
	Logger      *zap.Logger
}

// NewManager creates a manager writing into crashFolder. Call Start before
// registering channels and Stop to drain them.
func NewManager(p CrashManagerParams, crashFolder string) (*CrashManager, error) {
	if err := os.MkdirAll(crashFolder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create crash folder: %w", err)
	}
	return &CrashManager{
		db:          p.DB,
		redis:       p.RedisClient,
		mq:          p.RabbitMQ,
		logger:      p.Logger,
		crashFolder: crashFolder,
		crashChan:   make(chan types.CrashMessage, 1024),
		done:        make(chan struct{}),
	}, nil
}

func (c *CrashManager) Start() {
	c.logger.Debug("starting crash manager")
	go c.start()
}

// Stop waits for registered channels to close, then for every queued crash
// to be processed.
func (c *CrashManager) Stop() {
	c.logger.Info("stopping crash manager")
	c.wg.Wait()
	close(c.crashChan)
	<-c.done
}

// Stored is the number of distinct artifacts written so far.
func (c *CrashManager) Stored() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored
}

func (c *CrashManager) RegisterCrashChan(ctx context.Context, rCh <-chan types.CrashMessage) {
	c.wg.Add(1)
	crashTracer := telemetry.FromContext(ctx).Spawn("crash manager")
	crashTracer.Start()
	go func() {
		defer c.wg.Done()
		defer crashTracer.End()

		crashCounter := 0
		for crash := range rCh {
			crashCounter++
			crashTracer.AddEvent("crash_found", telemetry.NewEventAttributes(map[string]string{
				"kind":   crash.Kind,
				"binary": crash.Binary,
			}))
			c.crashChan <- crash
		}
		c.logger.Debug("crash channel closed")

		crashTracer.WithAttributes(telemetry.EmptySpanAttributes().WithCrashes(crashCounter))
	}()
	c.logger.Debug("new crash channel registered")
}

func (c *CrashManager) start() {
	defer close(c.done)
	for crash := range c.crashChan {
		if err := c.processCrash(context.Background(), crash); err != nil {
			c.logger.Error("failed to process crash", zap.Error(err))
		}
	}
}

// processCrash stores one artifact, named by the MD5 of the bytes the
// target received, unless the same crash was already seen.
func (c *CrashManager) processCrash(ctx context.Context, msg types.CrashMessage) error {
	sum := md5.Sum(msg.Wire)
	hash := hex.EncodeToString(sum[:])
	crashPath := filepath.Join(c.crashFolder, msg.Kind+"-"+hash)

	if _, err := os.Stat(crashPath); err == nil {
		return nil
	}
	if c.redis != nil {
		fresh, err := c.redis.SetNX(ctx, fmt.Sprintf(crashRedisKey, hash), msg.Binary, crashKeyTTL).Result()
		if err != nil {
			c.logger.Warn("failed to check crash hash in redis", zap.Error(err))
		} else if !fresh {
			c.logger.Debug("crash already reported elsewhere", zap.String("hash", hash))
			return nil
		}
	}

	if err := os.WriteFile(crashPath, msg.Document, 0644); err != nil {
		return fmt.Errorf("failed to write crash file: %w", err)
	}
	c.mu.Lock()
	c.stored++
	c.mu.Unlock()
	c.logger.Info("new crash stored",
		zap.String("kind", msg.Kind),
		zap.String("path", crashPath),
		zap.Int("core", msg.Core),
		zap.String("binary", msg.Binary))

	var errs []error
	if c.db != nil {
		crash := database.NewCrash(hash, database.CrashKind(msg.Kind), crashPath, msg.Binary, msg.Core, len(msg.Wire), database.Metric{
			"found": msg.Found.Format(time.RFC3339),
		})
		if err := database.AddCrashes(ctx, c.db, []*database.Crash{crash}); err != nil {
			errs = append(errs, fmt.Errorf("failed to add crash: %w", err))
		}
	}
	if c.mq != nil {
		host, _ := os.Hostname()
		body, err := json.Marshal(types.CrashNotification{
			Hash:   hash,
			Kind:   msg.Kind,
			Path:   crashPath,
			Binary: msg.Binary,
			Core:   msg.Core,
			Size:   len(msg.Wire),
			Host:   host,
			Found:  msg.Found,
		})
		if err == nil {
			err = c.mq.Publish(ctx, CrashQueue, body)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to publish crash: %w", err))
		}
	}
	return errors.Join(errs...)
}
