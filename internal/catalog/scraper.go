package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/fetcher"
	"github.com/quantmind-br/workshopsync/internal/renderer"
	"github.com/quantmind-br/workshopsync/internal/utils"
	"github.com/schollz/progressbar/v3"
)

var (
	_ domain.CatalogLister = (*Scraper)(nil)
	_ domain.DetailSource  = (*Scraper)(nil)
)

// Scraper reads the remote catalog. Listing pages go through the HTTP
// fetcher; detail pages are rendered in the browser and kept in the page
// cache for the lifetime of its generation.
type Scraper struct {
	fetcher  domain.Fetcher
	renderer domain.Renderer
	pages    domain.PageCache
	opts     ScraperOptions
	logger   *utils.Logger
}

// ScraperOptions configures a Scraper
type ScraperOptions struct {
	// BrowseURL is the first listing page
	BrowseURL string
	// DetailsURL is the detail page template; {id} is replaced by the item id
	DetailsURL    string
	WaitSelector  string
	MaxPages      int
	PageDelay     time.Duration
	RenderTimeout time.Duration
	Location      *time.Location
	Now           func() time.Time
	ShowProgress  bool
	// ProgressOutput receives the listing spinner; nil means stderr
	ProgressOutput io.Writer
	Logger         *utils.Logger
}

// NewScraper creates a Scraper
func NewScraper(f domain.Fetcher, r domain.Renderer, pages domain.PageCache, opts ScraperOptions) *Scraper {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	return &Scraper{
		fetcher:  f,
		renderer: r,
		pages:    pages,
		opts:     opts,
		logger:   logger.WithComponent("catalog"),
	}
}

// ListIDs walks the browse listing from BrowseURL following next-page
// links. Ids are returned once each, in first-seen order.
func (s *Scraper) ListIDs(ctx context.Context) ([]string, error) {
	var spinner *progressbar.ProgressBar
	if s.opts.ShowProgress {
		spinner = utils.NewProgressBarTo(s.opts.ProgressOutput, -1, utils.DescListing)
		defer spinner.Finish()
	}

	var ids []string
	seen := make(map[string]bool)
	visited := make(map[string]bool)

	pageURL := s.opts.BrowseURL
	for pages := 0; pageURL != ""; pages++ {
		if s.opts.MaxPages > 0 && pages >= s.opts.MaxPages {
			s.logger.Debug().Int("max_pages", s.opts.MaxPages).Msg("Listing page limit reached")
			break
		}
		if visited[pageURL] {
			s.logger.Warn().Str("url", pageURL).Msg("Listing links back to a visited page")
			break
		}
		visited[pageURL] = true

		if pages > 0 && s.opts.PageDelay > 0 {
			if err := sleep(ctx, fetcher.RandomDelay(s.opts.PageDelay, 2*s.opts.PageDelay)); err != nil {
				return nil, err
			}
		}

		page, err := s.fetchListing(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		added := 0
		for _, id := range page.IDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			added++
		}
		s.logger.Info().Str("url", pageURL).Int("ids", added).Int("total", len(ids)).Msg("Listing page read")
		if spinner != nil {
			_ = spinner.Add(1)
		}

		pageURL = page.NextURL
	}

	return ids, nil
}

func (s *Scraper) fetchListing(ctx context.Context, pageURL string) (*domain.CatalogPage, error) {
	resp, err := s.fetcher.Get(ctx, pageURL)
	if err != nil {
		s.logger.WithURL(pageURL).Debug().Err(err).Msg("Listing page fetch failed")
		return nil, fmt.Errorf("listing page %s: %w", pageURL, err)
	}

	body, err := ToUTF8(resp.Body, resp.ContentType)
	if err != nil {
		return nil, fmt.Errorf("listing page %s: %w", pageURL, err)
	}

	page, err := ParseBrowsePage(body, pageURL)
	if err != nil {
		if blocked := renderer.ClassifyPage(string(body)); blocked != nil {
			return nil, domain.NewFetchError(pageURL, resp.StatusCode, blocked)
		}
		return nil, err
	}
	return page, nil
}

// Details returns the item's metadata, rendering its detail page only when
// the current cache generation does not hold it yet.
func (s *Scraper) Details(ctx context.Context, id string) (*domain.ItemDetails, error) {
	page, fromCache, err := s.detailPage(ctx, id)
	if err != nil {
		return nil, err
	}

	details, err := ParseDetailPage(id, page, s.opts.Now(), s.opts.Location)
	if err != nil {
		return nil, err
	}
	details.FromCache = fromCache
	return details, nil
}

func (s *Scraper) detailPage(ctx context.Context, id string) ([]byte, bool, error) {
	logger := s.logger.WithItem(id)

	data, err := s.pages.Get(id)
	if err == nil {
		logger.Debug().Int64("generation", s.pages.Generation()).Msg("Detail page from cache")
		return data, true, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		return nil, false, err
	}

	pageURL := s.DetailsURL(id)
	opts := renderer.DefaultRenderOptions(s.opts.WaitSelector)
	if s.opts.RenderTimeout > 0 {
		opts.Timeout = s.opts.RenderTimeout
	}
	// reuse whatever session the listing fetches established
	opts.Cookies = s.fetcher.GetCookies(pageURL)

	html, err := s.renderer.Render(ctx, pageURL, opts)
	if err != nil {
		logger.WithURL(pageURL).Debug().Err(err).Msg("Detail page render failed")
		return nil, false, err
	}

	data = []byte(html)
	if err := s.pages.Put(id, data); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache detail page")
	}
	return data, false, nil
}

// DetailsURL returns the detail page URL of one item
func (s *Scraper) DetailsURL(id string) string {
	return strings.ReplaceAll(s.opts.DetailsURL, "{id}", id)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
