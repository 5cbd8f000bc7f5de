package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/localink/localink/internal/clock"
	"github.com/localink/localink/internal/metrics"
	"github.com/localink/localink/internal/model"
	"github.com/localink/localink/internal/store"
)

// Analytics records click events and computes per-URL and dashboard
// summaries. Analytics rows reference URL records by id only, so a click
// for a concurrently purged record still lands; that is by design, not an
// error.
type Analytics struct {
	store    store.Store
	clock    clock.Clock
	activity *ActivityLog
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewAnalytics wires the click analytics aggregator.
func NewAnalytics(st store.Store, clk clock.Clock, activity *ActivityLog, logger *slog.Logger) *Analytics {
	return &Analytics{
		store:    st,
		clock:    clk,
		activity: activity,
		logger:   logger,
	}
}

// RecordClick appends a click event for urlID, creating the analytics
// record lazily on first click. Geo metadata is optional; its absence
// never fails the record.
func (a *Analytics) RecordClick(ctx context.Context, urlID, referrer, userAgent string, geo *model.GeoInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.load(ctx)
	if err != nil {
		return err
	}

	entry, ok := all[urlID]
	if !ok {
		entry = &model.URLAnalytics{URLID: urlID, Clicks: []model.ClickEvent{}}
		all[urlID] = entry
	}

	now := a.clock.Now()
	entry.Clicks = append(entry.Clicks, model.ClickEvent{
		Timestamp: now,
		Referrer:  referrer,
		UserAgent: userAgent,
		Geo:       geo,
	})
	entry.ClickCount++
	entry.LastClicked = &now

	if err := a.save(ctx, all); err != nil {
		a.logEvent(ctx, "storage_error", model.LevelError, map[string]any{"operation": "record_click", "error": err.Error()})
		return err
	}

	metrics.ClicksRecorded.Inc()
	a.logEvent(ctx, "click_recorded", model.LevelInfo, map[string]any{"url_id": urlID})
	return nil
}

// Summary returns the analytics for urlID, or a zero-valued summary when
// no click has been recorded yet.
func (a *Analytics) Summary(ctx context.Context, urlID string) (*model.URLAnalytics, error) {
	a.mu.Lock()
	all, err := a.load(ctx)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if entry, ok := all[urlID]; ok {
		return entry, nil
	}
	return &model.URLAnalytics{URLID: urlID, Clicks: []model.ClickEvent{}}, nil
}

// Aggregate folds per-URL summaries and active/expired classification into
// dashboard totals.
func (a *Analytics) Aggregate(ctx context.Context, urls []model.ShortenedURL) (*model.DashboardStats, error) {
	a.mu.Lock()
	all, err := a.load(ctx)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()
	stats := &model.DashboardStats{}
	for _, u := range urls {
		if entry, ok := all[u.ID]; ok {
			stats.TotalClicks += entry.ClickCount
		}
		if u.Active(now) {
			stats.ActiveCount++
		} else {
			stats.ExpiredCount++
		}
	}
	return stats, nil
}

// load reads the analytics collection keyed by URL id. Missing key means
// no clicks yet; a corrupt blob is treated as empty with an error-level
// activity entry.
// Callers must hold a.mu for mutating flows.
func (a *Analytics) load(ctx context.Context) (map[string]*model.URLAnalytics, error) {
	data, err := a.store.Get(ctx, analyticsKey)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return map[string]*model.URLAnalytics{}, nil
		}
		a.logEvent(ctx, "storage_error", model.LevelError, map[string]any{"operation": "read", "error": err.Error()})
		return nil, err
	}
	var all map[string]*model.URLAnalytics
	if err := json.Unmarshal(data, &all); err != nil {
		a.logger.Error("corrupt analytics collection, treating as empty", slog.String("error", err.Error()))
		a.logEvent(ctx, "storage_corrupt", model.LevelError, map[string]any{"collection": "analytics", "error": err.Error()})
		return map[string]*model.URLAnalytics{}, nil
	}
	return all, nil
}

func (a *Analytics) save(ctx context.Context, all map[string]*model.URLAnalytics) error {
	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, analyticsKey, data)
}

func (a *Analytics) logEvent(ctx context.Context, action, level string, details map[string]any) {
	if a.activity == nil {
		return
	}
	if _, err := a.activity.Append(ctx, action, level, details); err != nil {
		a.logger.Warn("failed to record activity", slog.String("action", action), slog.String("error", err.Error()))
	}
}
