package model

import "time"

// ShortenedURL represents one shortened link record.
type ShortenedURL struct {
	ID          string    `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	Custom      bool      `json:"custom,omitempty"` // true when the code was user-supplied
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Deactivated bool      `json:"deactivated,omitempty"`
}

// Expired reports whether the record's lifetime has passed at the given instant.
func (u *ShortenedURL) Expired(now time.Time) bool {
	return !now.Before(u.ExpiresAt)
}

// Active reports whether the record still resolves: not expired and not
// manually revoked. Derived on read so it can never go stale.
func (u *ShortenedURL) Active(now time.Time) bool {
	return !u.Deactivated && !u.Expired(now)
}

// CreateURLRequest represents the request body for creating a short URL
type CreateURLRequest struct {
	URL        string `json:"url" binding:"required"`
	CustomCode string `json:"custom_code,omitempty"`
	TTLMinutes int    `json:"ttl_minutes,omitempty"` // defaults server-side when omitted
}

// URLResponse represents the full URL metadata response
type URLResponse struct {
	ID          string `json:"id"`
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
	ShortURL    string `json:"short_url"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
	IsActive    bool   `json:"is_active"`
	ClickCount  int64  `json:"click_count"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
