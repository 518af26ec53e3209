package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/utils"
)

var _ domain.Fetcher = (*Client)(nil)

// Client is a stealth HTTP client using tls-client. Successful responses
// are optionally kept in a domain.Cache.
type Client struct {
	tlsClient    tls_client.HttpClient
	userAgent    string
	retrier      *Retrier
	cache        domain.Cache
	cacheEnabled bool
	cacheTTL     time.Duration
	logger       *utils.Logger
}

// ClientOptions contains options for creating a Client
type ClientOptions struct {
	Timeout     time.Duration
	MaxRetries  int
	EnableCache bool
	CacheTTL    time.Duration
	Cache       domain.Cache
	UserAgent   string
	ProxyURL    string
	Logger      *utils.Logger
}

// DefaultClientOptions returns default client options
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		EnableCache: true,
		CacheTTL:    time.Hour,
	}
}

// NewClient creates a new stealth HTTP client
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	tlsOpts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(opts.Timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_131),
		tls_client.WithRandomTLSExtensionOrder(),
		tls_client.WithNotFollowRedirects(),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
	}

	if opts.ProxyURL != "" {
		tlsOpts = append(tlsOpts, tls_client.WithProxyUrl(opts.ProxyURL))
	}

	tlsClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), tlsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tls client: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	return &Client{
		tlsClient: tlsClient,
		userAgent: opts.UserAgent,
		retrier: NewRetrier(RetrierOptions{
			MaxRetries:      opts.MaxRetries,
			InitialInterval: 1 * time.Second,
			MaxInterval:     30 * time.Second,
			Multiplier:      2.0,
		}),
		cache:        opts.Cache,
		cacheEnabled: opts.EnableCache,
		cacheTTL:     opts.CacheTTL,
		logger:       logger.WithComponent("fetcher"),
	}, nil
}

// Get fetches content from a URL
func (c *Client) Get(ctx context.Context, url string) (*domain.Response, error) {
	return c.GetWithHeaders(ctx, url, nil)
}

// GetWithHeaders fetches content with custom headers
func (c *Client) GetWithHeaders(ctx context.Context, url string, extraHeaders map[string]string) (*domain.Response, error) {
	if c.cacheEnabled && c.cache != nil {
		if cached, err := c.getFromCache(ctx, url); err == nil {
			c.logger.Debug().Str("url", url).Msg("Response cache hit")
			return cached, nil
		}
	}

	resp, err := RetryWithValue(ctx, c.retrier, func() (*domain.Response, error) {
		return c.doRequest(ctx, url, extraHeaders)
	})
	if err != nil {
		return nil, err
	}

	if c.cacheEnabled && c.cache != nil {
		if err := c.saveToCache(ctx, resp); err != nil {
			c.logger.Warn().Err(err).Str("url", url).Msg("Failed to cache response")
		}
	}

	c.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Int("bytes", len(resp.Body)).Msg("Fetched")
	return resp, nil
}

// doRequest performs the actual HTTP request
func (c *Client) doRequest(ctx context.Context, targetURL string, extraHeaders map[string]string) (*domain.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range StealthHeaders(c.userAgent) {
		req.Header.Set(k, v)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.tlsClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{
			URL: targetURL,
			Err: fmt.Errorf("request failed: %w", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		fetchErr := &domain.FetchError{URL: targetURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		if ShouldRetryStatus(resp.StatusCode) {
			return nil, &domain.RetryableError{
				Err:        fetchErr,
				RetryAfter: int(ParseRetryAfter(resp.Header.Get("Retry-After")).Seconds()),
			}
		}
		if resp.StatusCode == http.StatusNotFound {
			fetchErr.Err = domain.ErrNotFound
		}
		return nil, fetchErr
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RetryableError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	body, err := DecodeBody(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, &domain.FetchError{URL: targetURL, StatusCode: resp.StatusCode, Err: err}
	}

	httpHeaders := make(http.Header, len(resp.Header))
	for k, v := range resp.Header {
		httpHeaders[k] = v
	}
	httpHeaders.Del("Content-Encoding")

	return &domain.Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		Headers:     httpHeaders,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         targetURL,
	}, nil
}

// GetCookies returns cookies for a URL (for sharing with renderer)
func (c *Client) GetCookies(rawURL string) []*http.Cookie {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	cookies := c.tlsClient.GetCookies(parsedURL)
	result := make([]*http.Cookie, len(cookies))
	for i, cookie := range cookies {
		result[i] = &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     cookie.Path,
			Domain:   cookie.Domain,
			Expires:  cookie.Expires,
			Secure:   cookie.Secure,
			HttpOnly: cookie.HttpOnly,
		}
	}
	return result
}

// Close releases client resources
func (c *Client) Close() error {
	// tls-client has no Close; kept for domain.Fetcher
	return nil
}

// getFromCache decodes a cached domain.CacheEntry. Undecodable entries
// count as misses.
func (c *Client) getFromCache(ctx context.Context, url string) (*domain.Response, error) {
	data, err := c.cache.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, domain.ErrCacheMiss
	}

	return &domain.Response{
		StatusCode:  http.StatusOK,
		Body:        entry.Content,
		Headers:     http.Header{},
		ContentType: entry.ContentType,
		URL:         url,
		FromCache:   true,
	}, nil
}

// saveToCache stores a response as a domain.CacheEntry
func (c *Client) saveToCache(ctx context.Context, resp *domain.Response) error {
	now := time.Now()
	data, err := json.Marshal(domain.CacheEntry{
		URL:         resp.URL,
		Content:     resp.Body,
		ContentType: resp.ContentType,
		FetchedAt:   now,
		ExpiresAt:   now.Add(c.cacheTTL),
	})
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, resp.URL, data, c.cacheTTL)
}

// SetCache sets the cache implementation
func (c *Client) SetCache(cache domain.Cache) {
	c.cache = cache
}

// SetCacheEnabled enables or disables caching
func (c *Client) SetCacheEnabled(enabled bool) {
	c.cacheEnabled = enabled
}
