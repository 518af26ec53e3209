package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantmind-br/workshopsync/internal/cache"
	"github.com/quantmind-br/workshopsync/internal/catalog"
	"github.com/quantmind-br/workshopsync/internal/config"
	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/downloader"
	"github.com/quantmind-br/workshopsync/internal/fetcher"
	"github.com/quantmind-br/workshopsync/internal/renderer"
	"github.com/quantmind-br/workshopsync/internal/utils"
)

// Dependencies holds the concrete collaborators of a sync run
type Dependencies struct {
	Fetcher    *fetcher.Client
	Cache      domain.Cache
	Renderer   *LazyRenderer
	Pages      *cache.GenerationCache
	Scraper    *catalog.Scraper
	Downloader *downloader.Downloader
	Logger     *utils.Logger
}

// DependencyOptions contains options for creating dependencies
type DependencyOptions struct {
	Config       *config.Config
	Logger       *utils.Logger
	ShowProgress bool
}

// NewDependencies builds the HTTP client, response cache, page cache,
// browser renderer, scraper and downloader from cfg. The browser is only
// launched when a detail page is not cached.
func NewDependencies(opts DependencyOptions) (*Dependencies, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	accounts, err := config.ParseAccounts(cfg.Downloader.Accounts)
	if err != nil {
		return nil, err
	}

	fetcherClient, err := fetcher.NewClient(fetcher.ClientOptions{
		Timeout:     cfg.Catalog.RequestTimeout,
		MaxRetries:  cfg.Catalog.MaxRetries,
		EnableCache: cfg.Cache.ResponseCacheEnabled,
		CacheTTL:    cfg.Cache.ResponseTTL,
		UserAgent:   cfg.Catalog.UserAgent,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	var cacheImpl domain.Cache
	if cfg.Cache.ResponseCacheEnabled {
		cacheImpl, err = cache.NewBadgerCache(cache.Options{
			Directory: utils.ExpandPath(cfg.Paths.ResponseCacheDir),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open response cache: %w", err)
		}
		fetcherClient.SetCache(cacheImpl)
	}

	pages, err := cache.OpenGenerations(cache.GenerationOptions{
		Root:   utils.ExpandPath(cfg.Paths.PageCacheDir),
		MaxAge: cfg.Cache.MaxAge,
		Logger: logger,
	})
	if err != nil {
		if cacheImpl != nil {
			cacheImpl.Close()
		}
		return nil, fmt.Errorf("failed to open page cache: %w", err)
	}

	rendererOpts := renderer.DefaultRendererOptions()
	rendererOpts.Timeout = cfg.Rendering.Timeout
	rendererOpts.MaxTabs = cfg.Rendering.MaxTabs
	rendererOpts.Headless = cfg.Rendering.Headless
	rendererOpts.Stealth = cfg.Rendering.Stealth
	rendererOpts.BrowserPath = cfg.Rendering.BrowserPath
	rendererOpts.Logger = logger
	lazy := NewLazyRenderer(rendererOpts, logger)

	scraper := catalog.NewScraper(fetcherClient, lazy, pages, catalog.ScraperOptions{
		BrowseURL:     cfg.Catalog.BrowseStartURL(),
		DetailsURL:    cfg.Catalog.DetailsURL,
		WaitSelector:  cfg.Catalog.WaitSelector,
		MaxPages:      cfg.Catalog.MaxPages,
		PageDelay:     cfg.Catalog.PageDelay,
		RenderTimeout: cfg.Rendering.Timeout,
		Location:      cfg.Catalog.Location(),
		ShowProgress:  opts.ShowProgress,
		Logger:        logger,
	})

	dl := downloader.New(downloader.Options{
		Command:         cfg.Downloader.Command,
		Args:            cfg.Downloader.Args,
		AppID:           cfg.Catalog.AppID,
		Accounts:        accounts,
		Extensions:      cfg.Downloader.ArtifactExtensions,
		RateLimitMarker: cfg.Downloader.RateLimitMarker,
		Timeout:         cfg.Downloader.Timeout,
		Retries:         cfg.Downloader.Retries,
		Logger:          logger,
	})

	return &Dependencies{
		Fetcher:    fetcherClient,
		Cache:      cacheImpl,
		Renderer:   lazy,
		Pages:      pages,
		Scraper:    scraper,
		Downloader: dl,
		Logger:     logger,
	}, nil
}

// Close releases all resources
func (d *Dependencies) Close() error {
	if d.Fetcher != nil {
		d.Fetcher.Close()
	}
	if d.Renderer != nil {
		d.Renderer.Close()
	}
	if d.Cache != nil {
		d.Cache.Close()
	}
	return nil
}

// LazyRenderer launches the browser on the first Render call
type LazyRenderer struct {
	opts   renderer.RendererOptions
	logger *utils.Logger
	create func(renderer.RendererOptions) (domain.Renderer, error)

	once     sync.Once
	mu       sync.Mutex
	renderer domain.Renderer
	err      error
}

var _ domain.Renderer = (*LazyRenderer)(nil)

// NewLazyRenderer creates a LazyRenderer
func NewLazyRenderer(opts renderer.RendererOptions, logger *utils.Logger) *LazyRenderer {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &LazyRenderer{
		opts:   opts,
		logger: logger,
		create: func(o renderer.RendererOptions) (domain.Renderer, error) {
			return renderer.NewRenderer(o)
		},
	}
}

func (l *LazyRenderer) get() (domain.Renderer, error) {
	l.once.Do(func() {
		r, err := l.create(l.opts)
		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.err = err
			l.logger.Error().Err(err).Msg("Failed to launch browser")
			return
		}
		l.renderer = r
		l.logger.Info().Msg("Browser renderer initialized on demand")
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renderer, l.err
}

// Render launches the browser if needed and renders the page
func (l *LazyRenderer) Render(ctx context.Context, url string, opts domain.RenderOptions) (string, error) {
	r, err := l.get()
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("%w: renderer closed", domain.ErrRenderFailed)
	}
	return r.Render(ctx, url, opts)
}

// Started reports whether the browser has been launched
func (l *LazyRenderer) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renderer != nil
}

// Close shuts the browser down if it was launched
func (l *LazyRenderer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.renderer == nil {
		return nil
	}
	r := l.renderer
	l.renderer = nil
	return r.Close()
}
