package utils

import (
	"net/url"
	"path"
	"strings"
)

// ResolveURL resolves ref against base. Directory-like bases without a
// trailing slash are treated as directories.
func ResolveURL(base, ref string) (string, error) {
	if !strings.HasSuffix(base, "/") && !strings.Contains(path.Base(base), ".") {
		if u, err := url.Parse(base); err == nil && u.RawQuery == "" {
			base += "/"
		}
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	return baseURL.ResolveReference(refURL).String(), nil
}

// QueryParam returns the first value of key in rawURL's query string
func QueryParam(rawURL, key string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(key)
}

// IsHTTPURL reports whether rawURL uses the http or https scheme
func IsHTTPURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
