package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/localink/localink/internal/clock"
	"github.com/localink/localink/internal/model"
	"github.com/localink/localink/internal/store"
)

func newTestLog(t *testing.T, maxEntries int) (*ActivityLog, *store.Memory, *clock.Fake) {
	t.Helper()
	st := store.NewMemory()
	clk := clock.NewFake(t0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewActivityLog(st, clk, logger, maxEntries), st, clk
}

func TestActivityLog_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id, timestamp and level", func(t *testing.T) {
		l, _, _ := newTestLog(t, 10)

		entry, err := l.Append(ctx, "url_created", model.LevelInfo, map[string]any{"short_code": "abc123"})
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, t0, entry.Timestamp)
		assert.Equal(t, "url_created", entry.Action)
		assert.Equal(t, model.LevelInfo, entry.Level)
	})

	t.Run("evicts oldest entries past the cap", func(t *testing.T) {
		l, _, clk := newTestLog(t, 1000)

		for i := 0; i < 1005; i++ {
			_, err := l.Append(ctx, fmt.Sprintf("action-%04d", i), model.LevelInfo, nil)
			require.NoError(t, err)
			clk.Advance(time.Millisecond)
		}

		entries, err := l.Query(ctx, LogFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 1000)

		// Most-recent-first: the newest survives at the front, the oldest
		// retained entry is action-0005 (0000..0004 were evicted).
		assert.Equal(t, "action-1004", entries[0].Action)
		assert.Equal(t, "action-0005", entries[len(entries)-1].Action)
	})

	t.Run("notifies subscribers on append", func(t *testing.T) {
		l, _, _ := newTestLog(t, 10)

		var seen []model.LogEntry
		l.Subscribe(func(e model.LogEntry) { seen = append(seen, e) })

		_, err := l.Append(ctx, "first", model.LevelInfo, nil)
		require.NoError(t, err)
		_, err = l.Append(ctx, "second", model.LevelWarning, nil)
		require.NoError(t, err)

		require.Len(t, seen, 2)
		assert.Equal(t, "first", seen[0].Action)
		assert.Equal(t, "second", seen[1].Action)
	})
}

func TestActivityLog_Query(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, l *ActivityLog, clk *clock.Fake) {
		t.Helper()
		entries := []struct {
			action  string
			level   string
			details map[string]any
		}{
			{"url_created", model.LevelInfo, map[string]any{"short_code": "abc123"}},
			{"create_rejected", model.LevelWarning, map[string]any{"reason": "invalid url"}},
			{"storage_error", model.LevelError, map[string]any{"operation": "create"}},
			{"click_recorded", model.LevelInfo, map[string]any{"url_id": "xyz"}},
		}
		for _, e := range entries {
			_, err := l.Append(ctx, e.action, e.level, e.details)
			require.NoError(t, err)
			clk.Advance(time.Second)
		}
	}

	t.Run("filters by level", func(t *testing.T) {
		l, _, clk := newTestLog(t, 100)
		seed(t, l, clk)

		entries, err := l.Query(ctx, LogFilter{Level: model.LevelWarning})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "create_rejected", entries[0].Action)
	})

	t.Run("matches search text case-insensitively over action", func(t *testing.T) {
		l, _, clk := newTestLog(t, 100)
		seed(t, l, clk)

		entries, err := l.Query(ctx, LogFilter{SearchText: "URL_CREATED"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "url_created", entries[0].Action)
	})

	t.Run("matches search text over serialized details", func(t *testing.T) {
		l, _, clk := newTestLog(t, 100)
		seed(t, l, clk)

		entries, err := l.Query(ctx, LogFilter{SearchText: "invalid URL"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "create_rejected", entries[0].Action)
	})

	t.Run("combines level and search filters", func(t *testing.T) {
		l, _, clk := newTestLog(t, 100)
		seed(t, l, clk)

		entries, err := l.Query(ctx, LogFilter{Level: model.LevelInfo, SearchText: "recorded"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "click_recorded", entries[0].Action)
	})

	t.Run("returns most recent first", func(t *testing.T) {
		l, _, clk := newTestLog(t, 100)
		seed(t, l, clk)

		entries, err := l.Query(ctx, LogFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 4)
		assert.Equal(t, "click_recorded", entries[0].Action)
		assert.Equal(t, "url_created", entries[3].Action)
	})
}

func TestActivityLog_ExportJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips the full log", func(t *testing.T) {
		l, _, clk := newTestLog(t, 100)

		var want []model.LogEntry
		for i := 0; i < 5; i++ {
			entry, err := l.Append(ctx, fmt.Sprintf("action-%d", i), model.LevelInfo, map[string]any{"index": fmt.Sprint(i)})
			require.NoError(t, err)
			want = append(want, *entry)
			clk.Advance(time.Second)
		}

		exported, err := l.ExportJSON(ctx)
		require.NoError(t, err)

		var got []model.LogEntry
		require.NoError(t, json.Unmarshal([]byte(exported), &got))
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID)
			assert.Equal(t, want[i].Action, got[i].Action)
			assert.Equal(t, want[i].Level, got[i].Level)
			assert.Equal(t, want[i].Details, got[i].Details)
			assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
		}
	})

	t.Run("exports an empty log as a parseable document", func(t *testing.T) {
		l, _, _ := newTestLog(t, 100)

		exported, err := l.ExportJSON(ctx)
		require.NoError(t, err)

		var got []model.LogEntry
		require.NoError(t, json.Unmarshal([]byte(exported), &got))
		assert.Empty(t, got)
	})
}

func TestActivityLog_CorruptCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("resets a corrupt log and records the reset", func(t *testing.T) {
		l, st, _ := newTestLog(t, 100)

		require.NoError(t, st.Set(ctx, logsKey, []byte("][")))

		_, err := l.Append(ctx, "after_corruption", model.LevelInfo, nil)
		require.NoError(t, err)

		entries, err := l.Query(ctx, LogFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "after_corruption", entries[0].Action)
		assert.Equal(t, "log_reset", entries[1].Action)
		assert.Equal(t, model.LevelError, entries[1].Level)
	})
}
