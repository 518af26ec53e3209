package domain

import (
	"net/http"
	"time"
)

// ItemDetails is the structured record extracted from an item's detail page
type ItemDetails struct {
	ID          string
	Author      string
	Title       string
	Description string
	PublishedAt int64
	// LastUpdated is zero when the page shows no "updated" stat
	LastUpdated int64
	FromCache   bool
}

// RemoteTimestamp returns the timestamp the ledger compares against:
// LastUpdated when present, PublishedAt otherwise.
func (d *ItemDetails) RemoteTimestamp() int64 {
	if d.LastUpdated > 0 {
		return d.LastUpdated
	}
	return d.PublishedAt
}

// Response represents an HTTP response
type Response struct {
	StatusCode  int
	Body        []byte
	Headers     http.Header
	ContentType string
	URL         string
	FromCache   bool
}

// CatalogPage is one parsed page of the catalog browse listing
type CatalogPage struct {
	URL     string
	IDs     []string
	NextURL string
}

// CacheEntry represents a cached HTTP response
type CacheEntry struct {
	URL         string    `json:"url"`
	Content     []byte    `json:"content"`
	ContentType string    `json:"content_type"`
	FetchedAt   time.Time `json:"fetched_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Account is a downloader login. String never reveals the password.
type Account struct {
	User     string
	Password string
}

func (a Account) String() string {
	return a.User + ":***"
}
