package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yndnr/metackpt/internal/core/domain"
	"github.com/yndnr/metackpt/pkg/cmap"
)

// MaxKeyLen bounds the length of a single key.
const MaxKeyLen = 4096

// Catalog maps names to int64 counters.
type Catalog struct {
	name domain.CheckpointName

	// mu guards the live and staged pointers, not the entries.
	mu     sync.RWMutex
	live   *cmap.Map[string, int64]
	staged *cmap.Map[string, int64]
}

// Option configures the Catalog.
type Option func(*Catalog)

// WithName overrides the checkpoint name. The default is CATALOG.
func WithName(name domain.CheckpointName) Option {
	return func(c *Catalog) {
		c.name = name
	}
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		name: domain.CheckpointCatalog,
		live: cmap.New[string, int64](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromMap creates a catalog holding a copy of entries.
func FromMap(entries map[string]int64, opts ...Option) (*Catalog, error) {
	c := New(opts...)
	for k, v := range entries {
		if err := c.Put(k, v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) entries() *cmap.Map[string, int64] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.live
}

func validateKey(key string) error {
	if key == "" {
		return domain.ErrInvalidCatalogKey.WithDetails("key is empty")
	}
	if len(key) > MaxKeyLen {
		return domain.ErrInvalidCatalogKey.WithDetails(fmt.Sprintf("key length %d exceeds %d", len(key), MaxKeyLen))
	}
	return nil
}

// Put stores value under key.
func (c *Catalog) Put(key string, value int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	c.entries().Set(key, value)
	return nil
}

// Add adds delta to the value under key, creating it at zero, and returns
// the new value.
func (c *Catalog) Add(key string, delta int64) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	return c.entries().Update(key, func(v int64, _ bool) int64 { return v + delta }), nil
}

// Get returns the value stored under key.
func (c *Catalog) Get(key string) (int64, bool) {
	return c.entries().Get(key)
}

// Delete removes key and reports whether it was present.
func (c *Catalog) Delete(key string) bool {
	_, ok := c.entries().Pop(key)
	return ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return c.entries().Count()
}

// Keys returns every key in sorted order.
func (c *Catalog) Keys() []string {
	keys := c.entries().Keys()
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of every entry.
func (c *Catalog) Snapshot() map[string]int64 {
	m := c.entries()
	out := make(map[string]int64, m.Count())
	m.Range(func(k string, v int64) bool {
		out[k] = v
		return true
	})
	return out
}

// CheckpointName implements checkpoint.Checkpointed.
func (c *Catalog) CheckpointName() domain.CheckpointName {
	return c.name
}

// CommitRestore makes the last restored state live.
func (c *Catalog) CommitRestore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staged != nil {
		c.live = c.staged
		c.staged = nil
	}
}

// AbortRestore discards the last restored state.
func (c *Catalog) AbortRestore() {
	c.mu.Lock()
	c.staged = nil
	c.mu.Unlock()
}
