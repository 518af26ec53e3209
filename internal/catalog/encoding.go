package catalog

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DetectEncoding returns the charset of an HTML document, looking at the
// Content-Type header, then BOMs and meta tags. Defaults to utf-8.
func DetectEncoding(content []byte, contentType string) string {
	_, name, _ := charset.DetermineEncoding(content, contentType)
	if name == "" {
		return "utf-8"
	}
	return strings.ToLower(name)
}

// ToUTF8 converts an HTML document to UTF-8. Unknown charsets are
// returned as-is.
func ToUTF8(content []byte, contentType string) ([]byte, error) {
	name := DetectEncoding(content, contentType)
	if name == "utf-8" || name == "utf8" {
		return content, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return content, nil
	}

	return io.ReadAll(transform.NewReader(bytes.NewReader(content), enc.NewDecoder()))
}
