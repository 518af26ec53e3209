// Package hasher fingerprints downloaded artifacts by content.
//
// Digests identify artifacts inside the ledger. They are not a security
// boundary, so md5 remains the default for compatibility with existing
// snapshots.
package hasher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/zeebo/blake3"
)

// Supported algorithms
const (
	AlgorithmMD5    = "md5"
	AlgorithmSHA256 = "sha256"
	AlgorithmBLAKE3 = "blake3"
)

// DefaultAlgorithm is used when none is configured
const DefaultAlgorithm = AlgorithmMD5

// Hasher computes content digests with a fixed algorithm
type Hasher struct {
	algorithm string
	newHash   func() hash.Hash
}

// New creates a Hasher for the named algorithm. An empty name selects
// DefaultAlgorithm.
func New(algorithm string) (*Hasher, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}

	h := &Hasher{algorithm: algorithm}
	switch algorithm {
	case AlgorithmMD5:
		h.newHash = md5.New
	case AlgorithmSHA256:
		h.newHash = sha256.New
	case AlgorithmBLAKE3:
		h.newHash = func() hash.Hash { return blake3.New() }
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
	return h, nil
}

// IsSupported reports whether New accepts algorithm
func IsSupported(algorithm string) bool {
	_, err := New(algorithm)
	return err == nil
}

// Algorithm returns the algorithm name
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// HashFile returns the hex digest of the whole file. A file that shrinks
// while being read is reported as truncated.
func (h *Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", domain.NewIOError("open", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", domain.NewIOError("stat", path, err)
	}

	return h.hashReader(path, file, info.Size())
}

// hashReader digests r, which must yield size bytes. path only labels
// errors.
func (h *Hasher) hashReader(path string, r io.Reader, size int64) (string, error) {
	digest := h.newHash()
	n, err := io.Copy(digest, r)
	if err != nil {
		return "", domain.NewIOError("read", path, err)
	}
	if n < size {
		return "", domain.NewIOError("read", path,
			fmt.Errorf("read %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF))
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// HashSegment fingerprints length bytes starting at offset and prefixes the
// digest with the file size, as "<size>:<hex>". A segment running past the
// end of the file hashes whatever bytes exist.
func (h *Hasher) HashSegment(path string, offset, length int64) (string, error) {
	if offset < 0 || length < 0 {
		return "", fmt.Errorf("invalid segment offset=%d length=%d", offset, length)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", domain.NewIOError("open", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", domain.NewIOError("stat", path, err)
	}

	digest := h.newHash()
	section := io.NewSectionReader(file, offset, length)
	if _, err := io.Copy(digest, section); err != nil {
		return "", domain.NewIOError("read", path, err)
	}

	return fmt.Sprintf("%d:%s", info.Size(), hex.EncodeToString(digest.Sum(nil))), nil
}
