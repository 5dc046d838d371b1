/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultMaxKeys is a default maximum number of per-key limiters kept by Keyed.
const DefaultMaxKeys = 10000

// KeyedOpts represents options for the Keyed limiter.
type KeyedOpts struct {
	// MaxKeys is a maximum number of per-key limiters. The least recently used ones are evicted.
	// If zero, DefaultMaxKeys is used.
	MaxKeys int

	// Opts is used for every per-key limiter. The non-empty key is appended to Opts.Name.
	Opts Opts
}

// Keyed maintains an independent adaptive Limiter per key (e.g., per downstream host or per client),
// all of them created lazily with the same configuration.
//
// A limiter evicted from the LRU keeps serving operations that already hold it,
// new operations for the same key get a fresh limiter.
type Keyed[R any] struct {
	resource R
	cfg      Config
	opts     Opts

	mu       sync.Mutex
	limiters *lru.Cache
}

// NewKeyed creates a new Keyed limiter. Every per-key limiter guards the same resource.
func NewKeyed[R any](resource R, cfg Config, opts KeyedOpts) (*Keyed[R], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxKeys < 0 {
		return nil, fmt.Errorf("max keys should not be negative, got %d", opts.MaxKeys)
	}
	if opts.MaxKeys == 0 {
		opts.MaxKeys = DefaultMaxKeys
	}

	k := &Keyed[R]{resource: resource, cfg: cfg, opts: opts.Opts}
	limiters, err := lru.NewWithEvict(opts.MaxKeys, k.onEvicted)
	if err != nil {
		return nil, fmt.Errorf("new LRU cache for limiters: %w", err)
	}
	k.limiters = limiters
	return k, nil
}

// Get returns the limiter for the given key, creating it if needed.
func (k *Keyed[R]) Get(key string) *Limiter[R] {
	k.mu.Lock()
	defer k.mu.Unlock()
	if l, ok := k.limiters.Get(key); ok {
		return l.(*Limiter[R])
	}
	opts := k.opts
	opts.Name = k.limiterName(key)
	l := newLimiter(k.resource, k.cfg, opts)
	k.limiters.Add(key, l)
	return l
}

// Len returns the number of per-key limiters currently kept.
func (k *Keyed[R]) Len() int {
	return k.limiters.Len()
}

func (k *Keyed[R]) limiterName(key string) string {
	switch {
	case k.opts.Name == "":
		return key
	case key == "":
		return k.opts.Name
	}
	return k.opts.Name + "/" + key
}

func (k *Keyed[R]) onEvicted(_, value interface{}) {
	if k.opts.MetricsCollector != nil {
		k.opts.MetricsCollector.deleteLimiter(value.(*Limiter[R]).Name())
	}
}
