// Package entity defines the entities and errors used in the application.
// It includes the ShortLink struct, which represents a shortened URL with its
// click analytics, the transient cache projection and the aggregates served
// by the metrics and health endpoints.
package entity

import (
	"errors"
	"net/url"
	"time"
)

var (
	// ErrInvalidURL is returned when the URL to shorten is empty or is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrLinkNotFound is returned when a link with the specified short id cannot be found.
	ErrLinkNotFound = errors.New("link not found")
	// ErrShortIDExists is returned when attempting to create a link with a short id that already exists.
	ErrShortIDExists = errors.New("short id exists")
	// ErrIdentifierSpaceExhausted is returned when no free short id was found within the attempt budget.
	ErrIdentifierSpaceExhausted = errors.New("identifier space exhausted")
)

// ShortLink represents a shortened URL and its analytics.
type ShortLink struct {
	ID           int64      // ID is the unique identifier of the link in the database.
	ShortID      string     // ShortID is the generated identifier used in short URLs.
	OriginalURL  string     // OriginalURL is the full URL that the short id redirects to.
	Clicks       int64      // Clicks is the number of redirects served for the link.
	CreatedAt    time.Time  // CreatedAt is the timestamp when the link was created.
	LastAccessed *time.Time // LastAccessed is the timestamp of the latest redirect, nil before the first one.
	ExpiresAt    time.Time  // ExpiresAt is the moment after which the link is eligible for removal.
}

// Expired reports whether the link is past its expiration at the given moment.
func (l *ShortLink) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// CacheEntry is the projection of a ShortLink kept in the lookup cache.
type CacheEntry struct {
	OriginalURL string `json:"originalUrl"`
}

// Click is a single analytics update for a link.
type Click struct {
	ShortID string
	Count   int64
	At      time.Time
	// ExtendUntil, when not zero, pushes the link expiration forward to at least this moment.
	ExtendUntil time.Time
}

// IsValidURL reports whether raw is an absolute URL with an http or https scheme and a host.
func IsValidURL(raw string) bool {
	if raw == "" {
		return false
	}

	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != ""
}
