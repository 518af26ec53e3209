package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	data map[string][]byte
	ttl  time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	m.ttl = ttl
	return nil
}

func (m *memoryCache) Has(ctx context.Context, key string) bool {
	_, ok := m.data[key]
	return ok
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memoryCache) Close() error { return nil }

func TestDefaultClientOptions(t *testing.T) {
	opts := DefaultClientOptions()

	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.True(t, opts.EnableCache)
	assert.Equal(t, time.Hour, opts.CacheTTL)
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(ClientOptions{UserAgent: "TestAgent/1.0"})
	require.NoError(t, err)
	defer client.Close()

	assert.NotNil(t, client.tlsClient)
	assert.NotNil(t, client.retrier)
	assert.Equal(t, "TestAgent/1.0", client.userAgent)
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TestAgent/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>listing</html>"))
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{UserAgent: "TestAgent/1.0"})
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "<html>listing</html>", string(resp.Body))
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	assert.False(t, resp.FromCache)
}

func TestClient_Get_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{})
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), server.URL)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 404, fetchErr.StatusCode)
}

func TestClient_Get_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{MaxRetries: 2})
	require.NoError(t, err)
	client.retrier = NewRetrier(RetrierOptions{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})

	resp, err := client.Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Get_DecodesGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte("compressed page"))
	require.NoError(t, gz.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{})
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "compressed page", string(resp.Body))
	assert.Empty(t, resp.Headers.Get("Content-Encoding"))
}

func TestClient_Cache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("fresh"))
	}))
	defer server.Close()

	cache := newMemoryCache()
	client, err := NewClient(ClientOptions{EnableCache: true, Cache: cache, CacheTTL: time.Hour})
	require.NoError(t, err)

	first, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, time.Hour, cache.ttl)

	var entry domain.CacheEntry
	require.NoError(t, json.Unmarshal(cache.data[server.URL], &entry))
	assert.Equal(t, "fresh", string(entry.Content))
	assert.Equal(t, "text/html", entry.ContentType)

	second, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "fresh", string(second.Body))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Cache_UndecodableEntryIsMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh"))
	}))
	defer server.Close()

	cache := newMemoryCache()
	cache.data[server.URL] = []byte("not json")
	client, err := NewClient(ClientOptions{EnableCache: true, Cache: cache})
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.False(t, resp.FromCache)
	assert.Equal(t, "fresh", string(resp.Body))
}

func TestClient_CacheDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh"))
	}))
	defer server.Close()

	cache := newMemoryCache()
	client, err := NewClient(ClientOptions{Cache: cache})
	require.NoError(t, err)
	client.SetCacheEnabled(false)

	_, err = client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Empty(t, cache.data)

	other := newMemoryCache()
	client.SetCache(other)
	client.SetCacheEnabled(true)
	_, err = client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, other.data, 1)
}

func TestClient_GetWithHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Custom") != "test-value" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte("custom header received"))
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{})
	require.NoError(t, err)

	resp, err := client.GetWithHeaders(context.Background(), server.URL, map[string]string{"X-Custom": "test-value"})

	require.NoError(t, err)
	assert.Equal(t, "custom header received", string(resp.Body))
}

func TestClient_Get_CancelledContext(t *testing.T) {
	client, err := NewClient(ClientOptions{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Get(ctx, "http://127.0.0.1:1/")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_GetCookies(t *testing.T) {
	client, err := NewClient(DefaultClientOptions())
	require.NoError(t, err)

	assert.NotNil(t, client.GetCookies("https://steamcommunity.com"))
	assert.Nil(t, client.GetCookies("://bad"))
	assert.NoError(t, client.Close())
}

func TestDecodeBody(t *testing.T) {
	payload := []byte("<html>payload</html>")

	var gzBuf bytes.Buffer
	gz := gzip.NewWriter(&gzBuf)
	_, _ = gz.Write(payload)
	require.NoError(t, gz.Close())

	var zlBuf bytes.Buffer
	zl := zlib.NewWriter(&zlBuf)
	_, _ = zl.Write(payload)
	require.NoError(t, zl.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zstdBody := enc.EncodeAll(payload, nil)
	require.NoError(t, enc.Close())

	tests := []struct {
		name     string
		body     []byte
		encoding string
	}{
		{"gzip", gzBuf.Bytes(), "gzip"},
		{"gzip header case", gzBuf.Bytes(), " GZIP "},
		{"deflate", zlBuf.Bytes(), "deflate"},
		{"zstd", zstdBody, "zstd"},
		{"already decoded", payload, "gzip"},
		{"identity", payload, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBody(tt.body, tt.encoding)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestDecodeBody_Corrupt(t *testing.T) {
	_, err := DecodeBody([]byte{0x1f, 0x8b, 0x00, 0x01}, "gzip")
	assert.Error(t, err)

	empty, err := DecodeBody(nil, "gzip")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
