package fetcher

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding lists the encodings DecodeBody understands
const AcceptEncoding = "gzip, deflate, zstd"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DecodeBody undoes a Content-Encoding. The transport may already have
// decompressed the body, so the encoding is only applied when the bytes
// carry the matching magic; anything else is returned unchanged.
func DecodeBody(body []byte, contentEncoding string) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))
	if len(body) == 0 {
		return body, nil
	}

	switch {
	case encoding == "gzip" && bytes.HasPrefix(body, gzipMagic):
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer r.Close()
		return readAll("gzip", r)

	case encoding == "zstd" && bytes.HasPrefix(body, zstdMagic):
		r, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("zstd body: %w", err)
		}
		defer r.Close()
		return readAll("zstd", r)

	case encoding == "deflate" && isZlibHeader(body):
		r, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("deflate body: %w", err)
		}
		defer r.Close()
		return readAll("deflate", r)
	}

	return body, nil
}

func readAll(encoding string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s body: %w", encoding, err)
	}
	return data, nil
}

// isZlibHeader checks the RFC 1950 CMF/FLG pair
func isZlibHeader(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}
