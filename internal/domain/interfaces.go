package domain

//go:generate mockgen -source=interfaces.go -destination=../mocks/domain.go -package=mocks

import (
	"context"
	"net/http"
	"time"
)

// Fetcher defines the interface for HTTP fetching with stealth capabilities
type Fetcher interface {
	// Get fetches content from a URL
	Get(ctx context.Context, url string) (*Response, error)
	// GetWithHeaders fetches content with custom headers
	GetWithHeaders(ctx context.Context, url string, headers map[string]string) (*Response, error)
	// GetCookies returns cookies for a URL (for sharing with renderer)
	GetCookies(url string) []*http.Cookie
	// Close releases resources
	Close() error
}

// Renderer defines the interface for browser-driven page retrieval
type Renderer interface {
	// Render fetches and renders a page with JavaScript
	Render(ctx context.Context, url string, opts RenderOptions) (string, error)
	// Close releases browser resources
	Close() error
}

// RenderOptions contains options for page rendering
type RenderOptions struct {
	Timeout    time.Duration
	WaitFor    string        // CSS selector that must be present before the page counts as loaded
	WaitStable time.Duration // Wait for network idle
	Cookies    []*http.Cookie
}

// Cache defines the interface for TTL-bounded response caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Has checks if a key exists in cache
	Has(ctx context.Context, key string) bool
	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error
	// Close releases cache resources
	Close() error
}

// PageCache is a generation-scoped store of raw page bytes keyed by item id.
// Get never falls back to the network; absence is reported as ErrCacheMiss.
type PageCache interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
	Generation() int64
}

// CatalogLister enumerates the item ids currently listed by the remote catalog
type CatalogLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// DetailSource produces the structured detail record for one item
type DetailSource interface {
	Details(ctx context.Context, id string) (*ItemDetails, error)
}

// ArtifactFetcher retrieves an item's artifact into targetDir and returns the
// local file path. It returns an error wrapping ErrFetchUnavailable when the
// artifact cannot be obtained this run.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, id, targetDir string) (string, error)
}
