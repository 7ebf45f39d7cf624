package types

import (
	"encoding/json"
	"time"
)

// CrashMessage is sent by a worker for every run classified as a crash or
// a timeout.
type CrashMessage struct {
	Document json.RawMessage // test case in its on-disk JSON form
	Wire     []byte          // bytes the target was fed
	Kind     string          // "crash" or "timeout"
	Core     int
	Binary   string
	Found    time.Time
}

// CrashNotification is published to the message queue for each new crash.
type CrashNotification struct {
	Hash   string    `json:"hash"`
	Kind   string    `json:"kind"`
	Path   string    `json:"path"`
	Binary string    `json:"binary"`
	Core   int       `json:"core"`
	Size   int       `json:"size"`
	Host   string    `json:"host"`
	Found  time.Time `json:"found"`
}
