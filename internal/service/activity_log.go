package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/localink/localink/internal/clock"
	"github.com/localink/localink/internal/metrics"
	"github.com/localink/localink/internal/model"
	"github.com/localink/localink/internal/store"
)

// DefaultMaxLogEntries caps the stored activity log.
const DefaultMaxLogEntries = 1000

// LogFilter narrows a Query. Zero values match everything.
type LogFilter struct {
	Level      string
	SearchText string
}

// ActivityLog is the bounded, append-only activity record. Entries are
// stored oldest-first; the cap is enforced by FIFO eviction atomically
// with each append.
type ActivityLog struct {
	store      store.Store
	clock      clock.Clock
	logger     *slog.Logger
	maxEntries int

	mu   sync.Mutex
	subs []func(model.LogEntry)
}

// NewActivityLog creates an activity log with the given entry cap.
// A cap of zero or less falls back to DefaultMaxLogEntries.
func NewActivityLog(st store.Store, clk clock.Clock, logger *slog.Logger, maxEntries int) *ActivityLog {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxLogEntries
	}
	return &ActivityLog{
		store:      st,
		clock:      clk,
		logger:     logger,
		maxEntries: maxEntries,
	}
}

// Subscribe registers a callback invoked after every successful append.
// Callbacks run synchronously on the appending goroutine; keep them cheap.
func (l *ActivityLog) Subscribe(fn func(model.LogEntry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}

// Append writes a new entry and evicts the oldest entries past the cap.
// The read-evict-write sequence runs under the log lock so a concurrent
// append can never observe a mid-rotation state.
func (l *ActivityLog) Append(ctx context.Context, action, level string, details map[string]any) (*model.LogEntry, error) {
	l.mu.Lock()

	entries := l.load(ctx)
	entry := model.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: l.clock.Now(),
		Action:    action,
		Details:   details,
		Level:     level,
	}
	entries = append(entries, entry)
	if evicted := len(entries) - l.maxEntries; evicted > 0 {
		entries = entries[evicted:]
		metrics.LogEntriesEvicted.Add(float64(evicted))
	}

	if err := l.save(ctx, entries); err != nil {
		l.mu.Unlock()
		l.logger.Error("failed to persist activity log", slog.String("error", err.Error()))
		return nil, err
	}
	subs := make([]func(model.LogEntry), len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	// Notify outside the lock so a subscriber may append in turn.
	for _, fn := range subs {
		fn(entry)
	}
	return &entry, nil
}

// Query returns entries matching the filter, most recent first.
func (l *ActivityLog) Query(ctx context.Context, filter LogFilter) ([]model.LogEntry, error) {
	l.mu.Lock()
	entries := l.load(ctx)
	l.mu.Unlock()

	search := strings.ToLower(filter.SearchText)
	matched := make([]model.LogEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if filter.Level != "" && e.Level != filter.Level {
			continue
		}
		if search != "" && !entryMatches(e, search) {
			continue
		}
		matched = append(matched, e)
	}
	return matched, nil
}

// ExportJSON serializes the full log, oldest first, as parseable JSON.
func (l *ActivityLog) ExportJSON(ctx context.Context) (string, error) {
	l.mu.Lock()
	entries := l.load(ctx)
	l.mu.Unlock()

	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// load reads the stored log collection. A missing key is an empty log; a
// corrupt one is reset to empty rather than blocking the application.
// Callers must hold l.mu.
func (l *ActivityLog) load(ctx context.Context) []model.LogEntry {
	data, err := l.store.Get(ctx, logsKey)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			l.logger.Error("failed to read activity log", slog.String("error", err.Error()))
		}
		return []model.LogEntry{}
	}
	var entries []model.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.logger.Error("corrupt activity log collection, resetting", slog.String("error", err.Error()))
		return []model.LogEntry{
			{
				ID:        uuid.NewString(),
				Timestamp: l.clock.Now(),
				Action:    "log_reset",
				Details:   map[string]any{"reason": "corrupt stored collection"},
				Level:     model.LevelError,
			},
		}
	}
	return entries
}

func (l *ActivityLog) save(ctx context.Context, entries []model.LogEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, logsKey, data)
}

func entryMatches(e model.LogEntry, search string) bool {
	if strings.Contains(strings.ToLower(e.Action), search) {
		return true
	}
	if len(e.Details) == 0 {
		return false
	}
	serialized, err := json.Marshal(e.Details)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(serialized)), search)
}
