package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/quantmind-br/workshopsync/internal/utils"
)

// PrefixResponse namespaces fetched responses in the response cache
const PrefixResponse = "resp"

// GenerateKey returns the SHA256 of the normalized URL
func GenerateKey(rawURL string) string {
	normalized := normalizeForKey(rawURL)
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

// GenerateKeyWithPrefix generates a cache key with a prefix
func GenerateKeyWithPrefix(prefix, rawURL string) string {
	return prefix + ":" + GenerateKey(rawURL)
}

// ResponseKey is the badger key for a fetched response
func ResponseKey(rawURL string) string {
	return GenerateKeyWithPrefix(PrefixResponse, rawURL)
}

// FileKey maps a page cache key (normally an item id) to a file name
// inside a generation directory.
func FileKey(key string) (string, error) {
	name := utils.SanitizeFilename(key)
	if name == "" || name == "." || name == ".." || strings.Trim(name, ".-") == "" {
		return "", fmt.Errorf("invalid page cache key %q", key)
	}
	return name, nil
}

// normalizeForKey normalizes a URL so equivalent spellings share a key.
// The query is kept: catalog pages differ only by it.
func normalizeForKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)

	if (u.Scheme == "http" && u.Port() == "80") ||
		(u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}

	if u.Path == "" {
		u.Path = "/"
	} else {
		trailing := strings.HasSuffix(u.Path, "/")
		u.Path = path.Clean(u.Path)
		if trailing && u.Path != "/" {
			u.Path += "/"
		}
	}

	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	u.Fragment = ""

	return u.String()
}
