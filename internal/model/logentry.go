package model

import "time"

// Log entry severity levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// LogEntry is one append-only activity record. Entries are never mutated
// after creation; the log as a whole is bounded by FIFO eviction.
type LogEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Level     string         `json:"level"`
}
