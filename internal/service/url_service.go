package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/localink/localink/internal/clock"
	"github.com/localink/localink/internal/metrics"
	"github.com/localink/localink/internal/model"
	"github.com/localink/localink/internal/shortcode"
	"github.com/localink/localink/internal/store"
)

// DefaultTTLMinutes applies when a create request carries no TTL.
const DefaultTTLMinutes = 30

// URLManager creates, resolves, lists, deactivates, and purges shortened
// URL records. All mutations are read-modify-write cycles over the URL
// collection, serialized by the manager's lock.
type URLManager struct {
	store    store.Store
	codes    *shortcode.Generator
	clock    clock.Clock
	activity *ActivityLog
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewURLManager wires a URL record manager.
func NewURLManager(st store.Store, codes *shortcode.Generator, clk clock.Clock, activity *ActivityLog, logger *slog.Logger) *URLManager {
	return &URLManager{
		store:    st,
		codes:    codes,
		clock:    clk,
		activity: activity,
		logger:   logger,
	}
}

// Create shortens originalURL. A non-empty customCode is validated against
// the currently live codes; expired and deactivated codes are immediately
// reusable. ttlMinutes must be positive.
func (m *URLManager) Create(ctx context.Context, originalURL, customCode string, ttlMinutes int) (*model.ShortenedURL, error) {
	if err := validateURL(originalURL); err != nil {
		m.logEvent(ctx, "create_rejected", model.LevelWarning, map[string]any{"reason": "invalid url"})
		return nil, err
	}
	if ttlMinutes <= 0 {
		m.logEvent(ctx, "create_rejected", model.LevelWarning, map[string]any{"reason": "invalid ttl", "ttl_minutes": ttlMinutes})
		return nil, ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	live := make(map[string]struct{}, len(records))
	for i := range records {
		if records[i].Active(now) {
			live[records[i].ShortCode] = struct{}{}
		}
	}

	var code string
	if customCode != "" {
		if err := shortcode.ValidateCustom(customCode, live); err != nil {
			m.logEvent(ctx, "create_rejected", model.LevelWarning, map[string]any{"reason": err.Error(), "code": customCode})
			return nil, err
		}
		code = customCode
	} else {
		code, err = m.codes.Generate(live)
		if err != nil {
			m.logEvent(ctx, "generation_exhausted", model.LevelError, map[string]any{"live_codes": len(live)})
			return nil, err
		}
	}

	record := model.ShortenedURL{
		ID:          uuid.NewString(),
		OriginalURL: originalURL,
		ShortCode:   code,
		Custom:      customCode != "",
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttlDuration(ttlMinutes)),
	}
	records = append(records, record)

	if err := m.save(ctx, records); err != nil {
		m.logEvent(ctx, "storage_error", model.LevelError, map[string]any{"operation": "create", "error": err.Error()})
		return nil, err
	}

	metrics.LinksCreated.Inc()
	m.logEvent(ctx, "url_created", model.LevelInfo, map[string]any{
		"id":         record.ID,
		"short_code": record.ShortCode,
		"custom":     record.Custom,
	})
	return &record, nil
}

// Resolve looks up a record by code. Expiry is lazy: an expired or
// deactivated record returns ErrExpired, distinct from ErrNotFound, and
// resolve itself never mutates stored state.
func (m *URLManager) Resolve(ctx context.Context, code string) (*model.ShortenedURL, error) {
	m.mu.Lock()
	records, err := m.load(ctx)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	var stale *model.ShortenedURL
	for i := range records {
		if records[i].ShortCode != code {
			continue
		}
		if records[i].Active(now) {
			return &records[i], nil
		}
		// Expired codes may have been reissued; keep the newest dead match
		// in case no live record carries this code.
		if stale == nil || records[i].CreatedAt.After(stale.CreatedAt) {
			stale = &records[i]
		}
	}
	if stale != nil {
		m.logEvent(ctx, "resolve_expired", model.LevelInfo, map[string]any{"short_code": code})
		return nil, ErrExpired
	}
	m.logEvent(ctx, "resolve_missed", model.LevelInfo, map[string]any{"short_code": code})
	return nil, ErrNotFound
}

// List returns all records, newest first. With activeOnly set, expired and
// deactivated records are excluded.
func (m *URLManager) List(ctx context.Context, activeOnly bool) ([]model.ShortenedURL, error) {
	m.mu.Lock()
	records, err := m.load(ctx)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	out := make([]model.ShortenedURL, 0, len(records))
	for _, r := range records {
		if activeOnly && !r.Active(now) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Deactivate revokes a record ahead of its expiry. Its code returns to the
// available pool immediately.
func (m *URLManager) Deactivate(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.load(ctx)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	for i := range records {
		if records[i].ShortCode != code || !records[i].Active(now) {
			continue
		}
		records[i].Deactivated = true
		if err := m.save(ctx, records); err != nil {
			m.logEvent(ctx, "storage_error", model.LevelError, map[string]any{"operation": "deactivate", "error": err.Error()})
			return err
		}
		m.logEvent(ctx, "url_deactivated", model.LevelInfo, map[string]any{"id": records[i].ID, "short_code": code})
		return nil
	}
	return ErrNotFound
}

// PurgeExpired removes records whose lifetime has passed and returns the
// number removed. Idempotent; a purge that removes nothing writes nothing.
func (m *URLManager) PurgeExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.load(ctx)
	if err != nil {
		return 0, err
	}

	now := m.clock.Now()
	kept := records[:0]
	for _, r := range records {
		if !r.Expired(now) {
			kept = append(kept, r)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := m.save(ctx, kept); err != nil {
		m.logEvent(ctx, "storage_error", model.LevelError, map[string]any{"operation": "purge", "error": err.Error()})
		return 0, err
	}
	metrics.RecordsPurged.Add(float64(removed))
	m.logEvent(ctx, "urls_purged", model.LevelInfo, map[string]any{"removed": removed})
	return removed, nil
}

// load reads the URL collection. A missing key is an empty collection; a
// corrupt one is treated as empty with an error-level activity entry so a
// bad blob never blocks the whole application.
// Callers must hold m.mu.
func (m *URLManager) load(ctx context.Context) ([]model.ShortenedURL, error) {
	data, err := m.store.Get(ctx, urlsKey)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return []model.ShortenedURL{}, nil
		}
		m.logEvent(ctx, "storage_error", model.LevelError, map[string]any{"operation": "read", "error": err.Error()})
		return nil, err
	}
	var records []model.ShortenedURL
	if err := json.Unmarshal(data, &records); err != nil {
		m.logger.Error("corrupt URL collection, treating as empty", slog.String("error", err.Error()))
		m.logEvent(ctx, "storage_corrupt", model.LevelError, map[string]any{"collection": "urls", "error": err.Error()})
		return []model.ShortenedURL{}, nil
	}
	return records, nil
}

func (m *URLManager) save(ctx context.Context, records []model.ShortenedURL) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, urlsKey, data)
}

// logEvent appends to the activity log, best-effort. A failing log write
// must never fail the operation that triggered it.
func (m *URLManager) logEvent(ctx context.Context, action, level string, details map[string]any) {
	if m.activity == nil {
		return
	}
	if _, err := m.activity.Append(ctx, action, level, details); err != nil {
		m.logger.Warn("failed to record activity", slog.String("action", action), slog.String("error", err.Error()))
	}
}

func ttlDuration(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if !u.IsAbs() || u.Host == "" {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	return nil
}
