package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/utils"
)

// Browse page selectors
const (
	browseItemsSelector  = ".workshopBrowseItems"
	browsePagingSelector = ".workshopBrowsePagingControls"
	nextPageLabel        = ">"
)

// ErrUnexpectedLayout is returned when a page lacks the markup the parser
// depends on
var ErrUnexpectedLayout = errors.New("unexpected page layout")

// ParseBrowsePage extracts item ids and the next page link from one browse
// listing page. Ids keep page order with duplicates removed. NextURL is
// empty on the last page.
func ParseBrowsePage(html []byte, pageURL string) (*domain.CatalogPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	items := doc.Find(browseItemsSelector).First()
	if items.Length() == 0 {
		return nil, fmt.Errorf("%w: %s missing from %s", ErrUnexpectedLayout, browseItemsSelector, pageURL)
	}

	page := &domain.CatalogPage{URL: pageURL}
	seen := make(map[string]bool)
	items.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, "filedetails") {
			return
		}
		id := utils.QueryParam(href, "id")
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		page.IDs = append(page.IDs, id)
	})

	doc.Find(browsePagingSelector).First().Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != nextPageLabel {
			return true
		}
		href, _ := a.Attr("href")
		next, err := utils.ResolveURL(pageURL, href)
		if err != nil {
			return true
		}
		page.NextURL = next
		return false
	})

	return page, nil
}
