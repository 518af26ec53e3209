package catalog

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/quantmind-br/workshopsync/internal/domain"
	"golang.org/x/net/html"
)

// Detail page selectors
const (
	authorSelector      = ".friendBlockContent"
	titleSelector       = ".workshopItemTitle"
	descriptionSelector = ".workshopItemDescription#highlightContent"
	statsLabelSelector  = ".detailsStatsContainerLeft"
	statsValueSelector  = ".detailsStatsContainerRight"
)

// Stat labels, compared lowercased and trimmed
const (
	labelPosted  = "posted"
	labelUpdated = "updated"
)

// descriptionStrip is removed from descriptions (strikethrough markup)
const descriptionStrip = "~~"

// ParseDetailPage extracts an item's metadata from its detail page. Dates
// without a year take now's year; all dates are read in loc. Missing
// elements or a missing posted date yield domain.ErrDetailsIncomplete.
func ParseDetailPage(id string, page []byte, now time.Time, loc *time.Location) (*domain.ItemDetails, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	author := doc.Find(authorSelector).First()
	title := doc.Find(titleSelector).First()
	description := doc.Find(descriptionSelector).First()
	labels := doc.Find(statsLabelSelector).First()
	values := doc.Find(statsValueSelector).First()

	required := []struct {
		selector string
		sel      *goquery.Selection
	}{
		{authorSelector, author},
		{titleSelector, title},
		{descriptionSelector, description},
		{statsLabelSelector, labels},
		{statsValueSelector, values},
	}
	for _, r := range required {
		if r.sel.Length() == 0 {
			return nil, fmt.Errorf("%w: %s missing", domain.ErrDetailsIncomplete, r.selector)
		}
	}

	details := &domain.ItemDetails{
		ID:          id,
		Author:      firstText(author),
		Title:       firstText(title),
		Description: strings.ReplaceAll(joinedText(description, "\n"), descriptionStrip, ""),
	}

	valueDivs := values.Find("div")
	labels.Find("div").Each(func(i int, label *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(label.Text()))
		if name != labelPosted && name != labelUpdated {
			return
		}
		if i >= valueDivs.Length() {
			return
		}
		raw := valueDivs.Eq(i).Text()
		if !strings.Contains(raw, "@") {
			return
		}
		ts, err := ParseTimestamp(raw, now, loc)
		if err != nil {
			return
		}
		if name == labelPosted {
			details.PublishedAt = ts
		} else {
			details.LastUpdated = ts
		}
	})

	if details.PublishedAt == 0 {
		return nil, fmt.Errorf("%w: no posted date", domain.ErrDetailsIncomplete)
	}

	return details, nil
}

// firstText returns the element's first child as text with leading
// whitespace removed. Nested markup after it (badges, status lines) is
// ignored.
func firstText(sel *goquery.Selection) string {
	node := sel.Nodes[0].FirstChild
	if node == nil {
		return ""
	}
	if node.Type == html.TextNode {
		return strings.TrimLeftFunc(node.Data, unicode.IsSpace)
	}
	return strings.TrimLeftFunc(goquery.NewDocumentFromNode(node).Text(), unicode.IsSpace)
}

// joinedText concatenates every descendant text node with sep between them
func joinedText(sel *goquery.Selection, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}

// timestampLayouts are tried in order against a normalised date
var timestampLayouts = []string{
	"Jan 2 2006 3:04pm",
	"2 Jan 2006 3:04pm",
}

// ParseTimestamp converts a catalog date such as "Mar 3, 2021 @ 4:05pm" or
// "Mar 3 @ 4:05pm" to Unix seconds. A missing year is taken from now in loc.
func ParseTimestamp(raw string, now time.Time, loc *time.Location) (int64, error) {
	if loc == nil {
		loc = time.UTC
	}

	datePart, clockPart, ok := strings.Cut(raw, "@")
	if !ok {
		return 0, fmt.Errorf("invalid timestamp %q: missing @", raw)
	}

	fields := strings.Split(strings.TrimSpace(datePart), ",")
	if len(fields) == 1 {
		fields = append(fields, fmt.Sprint(now.In(loc).Year()))
	}
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", raw)
	}

	normalised := strings.Join(strings.Fields(strings.Join([]string{
		fields[0], fields[1], strings.ToLower(clockPart),
	}, " ")), " ")

	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, normalised, loc)
		if err == nil {
			return t.Unix(), nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("invalid timestamp %q: %w", raw, lastErr)
}
