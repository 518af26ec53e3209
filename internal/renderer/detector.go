package renderer

import (
	"strings"

	"github.com/quantmind-br/workshopsync/internal/domain"
)

// Markers of the catalog's own error page for an item that is gone or hidden
var missingItemPatterns = []string{
	"there was a problem accessing the item",
	"that item does not exist",
	"this item has been removed",
	"this item is currently unavailable",
}

// Markers of interstitials served instead of the requested page
var blockedPatterns = []string{
	"access denied",
	"too many requests",
	"you've made too many requests recently",
	"g-recaptcha",
	"cf-challenge",
	"challenge-platform",
}

// ClassifyPage inspects a retrieved page and reports whether it is usable.
// It returns domain.ErrNotFound for a missing item page, domain.ErrBlocked
// for a rate limit or challenge page, and nil otherwise.
func ClassifyPage(html string) error {
	htmlLower := strings.ToLower(html)

	for _, pattern := range missingItemPatterns {
		if strings.Contains(htmlLower, pattern) {
			return domain.ErrNotFound
		}
	}

	// a real page quoting one of these phrases is long; interstitials are short
	if len(htmlLower) > blockedPageMaxLength {
		return nil
	}
	for _, pattern := range blockedPatterns {
		if strings.Contains(htmlLower, pattern) {
			return domain.ErrBlocked
		}
	}

	return nil
}

// blockedPageMaxLength bounds the size of pages checked for block markers
const blockedPageMaxLength = 20000
