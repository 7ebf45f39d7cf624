package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// CrashKind mirrors the crash_kind column
type CrashKind string

const (
	KindCrash   CrashKind = "crash"
	KindTimeout CrashKind = "timeout"
)

// Crash represents a record in the public.crashes table
type Crash struct {
	ID        int       `gorm:"primaryKey;column:id"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	Hash      string    `gorm:"column:hash;uniqueIndex;not null"`
	Kind      CrashKind `gorm:"column:crash_kind;not null"`
	Path      string    `gorm:"column:path;not null"`
	Binary    string    `gorm:"column:target_binary;not null"`
	Core      int       `gorm:"column:core"`
	Size      int       `gorm:"column:size"`
	Host      string    `gorm:"column:host"`
	Metric    Metric    `gorm:"column:metric;type:jsonb"`
}

// Metric represents a jsonb column
type Metric map[string]any

// Value implements the driver.Valuer interface for the Metric type
func (m Metric) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for the Metric type
func (m *Metric) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, m)
}
