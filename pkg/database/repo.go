package database

import (
	"context"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddCrashes inserts crash records, ignoring hashes that are already known.
func AddCrashes(ctx context.Context, db *gorm.DB, crashes []*Crash) error {
	if len(crashes) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hash"}}, DoNothing: true}).
		Create(crashes).Error
}

// NewCrash creates a new Crash object with the provided parameters
func NewCrash(
	hash string,
	kind CrashKind,
	path string,
	binary string,
	core int,
	size int,
	metric Metric,
) *Crash {
	host, _ := os.Hostname()
	return &Crash{
		CreatedAt: time.Now(),
		Hash:      hash,
		Kind:      kind,
		Path:      path,
		Binary:    binary,
		Core:      core,
		Size:      size,
		Host:      host,
		Metric:    metric,
	}
}

// CountCrashes returns how many crashes of the given binary are recorded.
func CountCrashes(ctx context.Context, db *gorm.DB, binary string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&Crash{}).Where("target_binary = ?", binary).Count(&n).Error
	return n, err
}
