package model

import "time"

// GeoInfo holds optional location metadata attached to a click.
// All fields may be empty; absence never fails a click record.
type GeoInfo struct {
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// ClickEvent represents a single recorded visit to a short code.
type ClickEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Geo       *GeoInfo  `json:"geo,omitempty"`
}

// URLAnalytics aggregates all clicks for one shortened URL.
// Invariant: ClickCount == len(Clicks), clicks in insertion order.
// The URLID is a weak reference: analytics may outlive a purged record.
type URLAnalytics struct {
	URLID       string       `json:"url_id"`
	ClickCount  int64        `json:"click_count"`
	LastClicked *time.Time   `json:"last_clicked,omitempty"`
	Clicks      []ClickEvent `json:"clicks"`
}

// DashboardStats is the fold over all records used for dashboard totals.
type DashboardStats struct {
	TotalClicks  int64 `json:"total_clicks"`
	ActiveCount  int   `json:"active_count"`
	ExpiredCount int   `json:"expired_count"`
}
