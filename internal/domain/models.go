package domain

import (
	"time"
)

const (
	// DefaultValidityMinutes is used when a create request omits the validity
	DefaultValidityMinutes = 30

	// SourceDirect is the click source recorded when the caller supplies none
	SourceDirect = "direct_link"
)

// ShortLink represents a shortened URL with its click history
type ShortLink struct {
	ID              string       `json:"id"`
	OriginalURL     string       `json:"originalUrl"`
	ShortCode       string       `json:"shortCode"`
	CreatedAt       time.Time    `json:"createdAt"`
	ValidityMinutes int          `json:"validityMinutes"`
	ExpiresAt       time.Time    `json:"expiresAt"`
	IsExpired       bool         `json:"isExpired"`
	Clicks          []ClickEvent `json:"clicks"`
}

// ClickEvent is a single recorded access to a short link
type ClickEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Location    string    `json:"location"`
	AgentString string    `json:"agentString"`
}

// Clone returns a deep copy of the link, including its clicks
func (l *ShortLink) Clone() *ShortLink {
	if l == nil {
		return nil
	}

	clone := *l
	clone.Clicks = make([]ClickEvent, len(l.Clicks))
	copy(clone.Clicks, l.Clicks)
	return &clone
}

// ExpiredAt reports whether the link's validity window has elapsed at now
func (l *ShortLink) ExpiredAt(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// CreateLinkRequest represents the request to create a short link
type CreateLinkRequest struct {
	OriginalURL     string `json:"originalUrl"`
	ValidityMinutes *int   `json:"validityMinutes,omitempty"`
	CustomShortCode string `json:"customShortCode,omitempty"`
}

// CreateLinkResponse represents the response when creating a short link
type CreateLinkResponse struct {
	*ShortLink
	ShortURL string `json:"shortUrl"`
}

// PurgeResponse reports how many expired links a purge removed
type PurgeResponse struct {
	Removed int `json:"removed"`
}

// RefreshResponse reports how many links had their expiry flag flipped
type RefreshResponse struct {
	Expired int `json:"expired"`
}

// LogEntry is a captured log record served to the log viewer
type LogEntry struct {
	Time    time.Time         `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}
