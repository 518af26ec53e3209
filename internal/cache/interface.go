package cache

import "github.com/quantmind-br/workshopsync/internal/domain"

var (
	_ domain.Cache     = (*BadgerCache)(nil)
	_ domain.PageCache = (*GenerationCache)(nil)
)

// Options configures the badger response cache
type Options struct {
	Directory string
	InMemory  bool
	Logger    bool
}

// DefaultOptions returns default response cache options
func DefaultOptions() Options {
	return Options{}
}
