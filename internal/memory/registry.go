package memory

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rcliao/turn-memory/internal/model"
)

// DefaultRegistrySize is how many subjects a Registry keeps in memory.
const DefaultRegistrySize = 128

// LoadFunc returns a stored snapshot for subject, or nil when there is none.
type LoadFunc func(ctx context.Context, subject string) (*model.Snapshot, error)

// EvictFunc is called with a memory as it leaves the registry.
type EvictFunc func(m *Memory)

// Registry hands out one Memory per subject, keeping the most recently used
// ones resident. Subjects never share state.
type Registry struct {
	opts  Options
	load  LoadFunc
	evict EvictFunc

	mu    sync.Mutex
	cache *lru.Cache[string, *Memory]
}

// NewRegistry creates a registry holding up to size memories. load and evict
// may be nil.
func NewRegistry(size int, opts Options, load LoadFunc, evict EvictFunc) (*Registry, error) {
	if size <= 0 {
		size = DefaultRegistrySize
	}
	r := &Registry{opts: opts, load: load, evict: evict}
	cache, err := lru.NewWithEvict[string, *Memory](size, r.handleEviction)
	if err != nil {
		return nil, fmt.Errorf("create registry cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

func (r *Registry) handleEviction(_ string, m *Memory) {
	if r.evict != nil {
		r.evict(m)
	}
}

// Get returns the memory for subject, restoring it through the loader the
// first time it is requested.
func (r *Registry) Get(ctx context.Context, subject string) (*Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.cache.Get(subject); ok {
		return m, nil
	}
	m := New(subject, r.opts)
	if r.load != nil {
		snap, err := r.load(ctx, subject)
		if err != nil {
			return nil, fmt.Errorf("load subject %q: %w", subject, err)
		}
		if snap != nil {
			m.Restore(*snap)
		}
	}
	r.cache.Add(subject, m)
	return m, nil
}

// Len returns the number of resident memories.
func (r *Registry) Len() int {
	return r.cache.Len()
}
