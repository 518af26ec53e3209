package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/utils"
)

// DefaultMaxAge bounds how long a page cache generation is reused
const DefaultMaxAge = 24 * time.Hour

// GenerationOptions configures a GenerationCache
type GenerationOptions struct {
	Root   string
	MaxAge time.Duration
	Now    func() time.Time
	Logger *utils.Logger
}

// GenerationCache stores raw detail pages under <root>/<generation>/<key>.
// The generation is chosen once in OpenGenerations and never changes for
// the lifetime of the value. Old generations are left on disk.
type GenerationCache struct {
	root       string
	generation int64
	dir        string
	logger     *utils.Logger
}

// OpenGenerations picks the active generation. The newest integer-named
// subdirectory of Root is reused when it is at most MaxAge old; otherwise
// a directory named after the current epoch second is created.
func OpenGenerations(opts GenerationOptions) (*GenerationCache, error) {
	if opts.Root == "" {
		return nil, errors.New("page cache root is required")
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	logger = logger.WithComponent("page_cache")

	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, domain.NewIOError("mkdir", opts.Root, err)
	}

	recent, err := mostRecentGeneration(opts.Root)
	if err != nil {
		return nil, err
	}

	now := opts.Now().Unix()
	reuse := recent > 0 && now-recent <= int64(opts.MaxAge/time.Second)
	generation := now
	if reuse {
		generation = recent
	}

	dir := filepath.Join(opts.Root, strconv.FormatInt(generation, 10))
	if reuse {
		logger.Debug().Int64("generation", generation).Int64("age_seconds", now-recent).Msg("Reusing page cache generation")
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, domain.NewIOError("mkdir", dir, err)
		}
		logger.Debug().Int64("generation", generation).Int64("previous", recent).Msg("Created page cache generation")
	}

	return &GenerationCache{
		root:       opts.Root,
		generation: generation,
		dir:        dir,
		logger:     logger,
	}, nil
}

// mostRecentGeneration returns the largest integer directory name under
// root, or 0 when there is none.
func mostRecentGeneration(root string) (int64, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, domain.NewIOError("readdir", root, err)
	}

	var recent int64
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ts, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil {
			continue
		}
		if ts > recent {
			recent = ts
		}
	}
	return recent, nil
}

// Generation returns the active generation timestamp
func (c *GenerationCache) Generation() int64 {
	return c.generation
}

// Dir returns the active generation directory
func (c *GenerationCache) Dir() string {
	return c.dir
}

// Get returns the stored bytes for key, or domain.ErrCacheMiss
func (c *GenerationCache) Get(key string) ([]byte, error) {
	name, err := FileKey(key)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(c.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrCacheMiss
		}
		return nil, domain.NewIOError("read", path, err)
	}
	return data, nil
}

// Put writes data for key, replacing any previous value
func (c *GenerationCache) Put(key string, data []byte) error {
	name, err := FileKey(key)
	if err != nil {
		return err
	}

	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return domain.NewIOError("write", path, err)
	}
	return nil
}

func (c *GenerationCache) String() string {
	return fmt.Sprintf("page cache %s (generation %d)", c.root, c.generation)
}
