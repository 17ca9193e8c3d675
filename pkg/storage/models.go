package storage

import (
	"time"

	"github.com/google/uuid"
)

// ShortLink maps a short code to its target URL. The code is immutable once
// assigned; target and expiry are owner-mutable. Expired records persist
// until explicitly deleted.
type ShortLink struct {
	Code       string    `json:"shortcode" db:"code"`
	Target     string    `json:"originalURL" db:"target"`
	OwnerID    uuid.UUID `json:"-" db:"owner_id"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt  time.Time `json:"expiryDate" db:"expires_at"`
	ClickCount int64     `json:"clickCount" db:"click_count"`
}

// Expired reports whether the link has lapsed at the given instant.
func (l *ShortLink) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// ClickEvent records one successful resolution of a code. Events are
// append-only; they are never mutated or removed individually.
type ClickEvent struct {
	Timestamp time.Time `json:"timestamp" db:"ts"`
	Referrer  string    `json:"referrer" db:"referrer"`
	Location  string    `json:"location" db:"location"`
}
