package renderer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want error
	}{
		{
			name: "detail page",
			html: `<html><body><div id="rightContents"><div class="workshopItemTitle">DM-Deck</div></div></body></html>`,
			want: nil,
		},
		{
			name: "missing item",
			html: `<div class="error_ctn"><h3>There was a problem accessing the item.  Please try again.</h3></div>`,
			want: domain.ErrNotFound,
		},
		{
			name: "rate limited",
			html: `<html><body><h1>Too Many Requests</h1></body></html>`,
			want: domain.ErrBlocked,
		},
		{
			name: "captcha",
			html: `<html><body><div class="g-recaptcha"></div></body></html>`,
			want: domain.ErrBlocked,
		},
		{
			name: "long page quoting a block phrase",
			html: `<html><body><p>access denied</p>` + string(make([]byte, blockedPageMaxLength)) + `</body></html>`,
			want: nil,
		},
		{
			name: "empty",
			html: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyPage(tt.html)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDefaultRendererOptions(t *testing.T) {
	opts := DefaultRendererOptions()

	assert.Equal(t, 60*time.Second, opts.Timeout)
	assert.Equal(t, 1, opts.MaxTabs)
	assert.True(t, opts.Stealth)
	assert.True(t, opts.Headless)
}

func TestDefaultRenderOptions(t *testing.T) {
	opts := DefaultRenderOptions("#rightContents")

	assert.Equal(t, "#rightContents", opts.WaitFor)
	assert.Equal(t, 60*time.Second, opts.Timeout)
	assert.Equal(t, 2*time.Second, opts.WaitStable)
}

func TestNewRenderer_MissingBrowserPath(t *testing.T) {
	opts := DefaultRendererOptions()
	opts.BrowserPath = "/nonexistent/chromium"

	r, err := NewRenderer(opts)

	assert.Nil(t, r)
	assert.ErrorIs(t, err, domain.ErrBrowserNotFound)
}

func TestTabPool_Defaults(t *testing.T) {
	pool := NewTabPool(nil, 0)

	assert.Equal(t, 1, pool.maxTabs)
	assert.Equal(t, 1, cap(pool.slots))
	assert.Empty(t, pool.idle)
}

func TestTabPool_AcquireAfterClose(t *testing.T) {
	pool := NewTabPool(nil, 2)
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	page, err := pool.Acquire(context.Background())

	assert.Nil(t, page)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestTabPool_AcquireBlocksWhenExhausted(t *testing.T) {
	pool := NewTabPool(nil, 1)
	pool.slots <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	page, err := pool.Acquire(ctx)

	assert.Nil(t, page)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTabPool_ReleaseNil(t *testing.T) {
	pool := NewTabPool(nil, 1)

	assert.NotPanics(t, func() { pool.Release(nil) })
}

func skipWithoutBrowser(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser-dependent test in short mode")
	}
	if path, ok := GetBrowserPath(); !ok || path == "" {
		t.Skip("no local browser")
	}
}

func TestRenderer_Render(t *testing.T) {
	skipWithoutBrowser(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := "none"
		if c, err := r.Cookie("sessionid"); err == nil {
			session = c.Value
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><div id="rightContents"><div class="workshopItemTitle">DM-Deck</div>` +
			`<span id="session">` + session + `</span></div></body></html>`))
	}))
	defer server.Close()

	opts := DefaultRendererOptions()
	opts.Timeout = 30 * time.Second
	r, err := NewRenderer(opts)
	require.NoError(t, err)
	defer r.Close()

	renderOpts := DefaultRenderOptions("#rightContents")
	renderOpts.Cookies = []*http.Cookie{{Name: "sessionid", Value: "abc"}}
	html, err := r.Render(context.Background(), server.URL, renderOpts)
	require.NoError(t, err)
	assert.Contains(t, html, "DM-Deck")
	assert.Contains(t, html, `<span id="session">abc</span>`)
	assert.Len(t, r.pool.idle, 1)

	_, err = r.Render(context.Background(), server.URL, domain.RenderOptions{
		WaitFor: "#missing",
		Timeout: 2 * time.Second,
	})
	assert.ErrorIs(t, err, domain.ErrRenderFailed)
}
