package renderer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/utils"
)

var _ domain.Renderer = (*Renderer)(nil)

// Renderer retrieves pages through headless Chrome
type Renderer struct {
	browser *rod.Browser
	pool    *TabPool
	timeout time.Duration
	stealth bool
	logger  *utils.Logger
}

// RendererOptions contains options for creating a Renderer
type RendererOptions struct {
	Timeout     time.Duration
	MaxTabs     int
	Stealth     bool
	Headless    bool
	BrowserPath string
	NoSandbox   bool // Required for running in CI/Docker environments
	Logger      *utils.Logger
}

// DefaultRendererOptions returns default renderer options
func DefaultRendererOptions() RendererOptions {
	return RendererOptions{
		Timeout:   60 * time.Second,
		MaxTabs:   1,
		Stealth:   true,
		Headless:  true,
		NoSandbox: isCI(),
	}
}

// isCI returns true if running in a CI environment
func isCI() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != ""
}

// NewRenderer launches the browser. An explicit BrowserPath must exist.
func NewRenderer(opts RendererOptions) (*Renderer, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	l := launcher.New().Headless(opts.Headless)

	if opts.BrowserPath != "" {
		if _, err := os.Stat(opts.BrowserPath); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrBrowserNotFound, opts.BrowserPath)
		}
		l = l.Bin(opts.BrowserPath)
	}
	if opts.Stealth {
		l = l.Set("disable-blink-features", "AutomationControlled")
	}
	if opts.NoSandbox {
		l = l.NoSandbox(true)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBrowserNotFound, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger.Debug().Str("control_url", controlURL).Int("max_tabs", opts.MaxTabs).Msg("Browser launched")

	return &Renderer{
		browser: browser,
		pool:    NewTabPool(browser, opts.MaxTabs),
		timeout: opts.Timeout,
		stealth: opts.Stealth,
		logger:  logger.WithComponent("renderer"),
	}, nil
}

// Render navigates to pageURL and returns the DOM once it has loaded.
// When opts.WaitFor is set the selector must appear within the timeout,
// otherwise the render fails with domain.ErrRenderFailed.
func (r *Renderer) Render(ctx context.Context, pageURL string, opts domain.RenderOptions) (string, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = r.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	page, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire page: %w", err)
	}
	defer r.pool.Release(page)

	page = page.Context(ctx)

	if r.stealth {
		if err := ApplyStealthMode(page); err != nil {
			return "", fmt.Errorf("failed to apply stealth mode: %w", err)
		}
	}

	if len(opts.Cookies) > 0 {
		if err := setCookies(page, pageURL, opts.Cookies); err != nil {
			return "", fmt.Errorf("failed to set cookies: %w", err)
		}
	}

	if err := page.Navigate(pageURL); err != nil {
		return "", domain.NewFetchError(pageURL, 0, fmt.Errorf("navigation failed: %w", err))
	}
	if err := page.WaitLoad(); err != nil {
		return "", domain.NewFetchError(pageURL, 0, fmt.Errorf("%w: waiting for load: %v", domain.ErrRenderFailed, err))
	}

	if opts.WaitFor != "" {
		if _, err := page.Element(opts.WaitFor); err != nil {
			return "", domain.NewFetchError(pageURL, 0, fmt.Errorf("%w: %s never appeared: %v", domain.ErrRenderFailed, opts.WaitFor, err))
		}
	}

	if opts.WaitStable > 0 {
		// best effort; some pages keep polling forever
		page.Timeout(5*opts.WaitStable).WaitRequestIdle(opts.WaitStable, nil, nil, nil)()
	}

	html, err := page.HTML()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.NewFetchError(pageURL, 0, domain.ErrTimeout)
		}
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}

	if err := ClassifyPage(html); err != nil {
		return "", domain.NewFetchError(pageURL, 0, err)
	}

	r.logger.Debug().Str("url", pageURL).Int("bytes", len(html)).Msg("Rendered")
	return html, nil
}

// setCookies copies fetcher cookies into the page, defaulting the domain
// to the page host and the path to "/".
func setCookies(page *rod.Page, pageURL string, cookies []*http.Cookie) error {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL for cookies: %w", err)
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, cookie := range cookies {
		cookieDomain := cookie.Domain
		if cookieDomain == "" {
			cookieDomain = parsedURL.Hostname()
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookieDomain,
			Path:     path,
			Secure:   cookie.Secure,
			HTTPOnly: cookie.HttpOnly,
		})
	}
	return page.SetCookies(params)
}

// DefaultRenderOptions returns render options for item detail pages
func DefaultRenderOptions(waitFor string) domain.RenderOptions {
	return domain.RenderOptions{
		Timeout:    60 * time.Second,
		WaitFor:    waitFor,
		WaitStable: 2 * time.Second,
	}
}

// Close releases browser resources
func (r *Renderer) Close() error {
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
	if r.browser != nil {
		browser := r.browser
		r.browser = nil
		return browser.Close()
	}
	return nil
}

// GetBrowserPath returns the detected browser path
func GetBrowserPath() (string, bool) {
	return launcher.LookPath()
}
