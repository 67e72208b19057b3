// Package memo caches the results of expensive functions of a locked flag
// tree. Entries are keyed by the function name, the tree hash and a hash of
// the extra arguments, so two trees with the same content share results.
package memo

import (
	"errors"
	"fmt"
	"io"
	"sync"

	flags "github.com/goliatone/go-flagtree"
	"github.com/mitchellh/copystructure"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Cache is safe for concurrent use, including concurrent first calls on a
// freshly locked tree.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]any
	group   singleflight.Group

	copies   bool
	log      logrus.FieldLogger
	requests *prometheus.CounterVec
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger routes cache diagnostics to logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithCopies returns a deep copy of the cached result on every call, for
// results callers are expected to mutate.
func WithCopies() Option {
	return func(c *Cache) {
		c.copies = true
	}
}

// WithRegisterer counts hits, misses and errors in reg under
// flagtree_memo_requests_total.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Cache) {
		if reg == nil {
			return
		}
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flagtree",
			Subsystem: "memo",
			Name:      "requests_total",
			Help:      "Memoized function calls by result (hit, miss, error).",
		}, []string{"result"})
		if err := reg.Register(counter); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
					counter = existing
				}
			}
		}
		c.requests = counter
	}
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c := &Cache{
		entries: map[string]any{},
		log:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Key derives the cache key for calling name on tree with args. The tree
// must be locked.
func (c *Cache) Key(name string, tree *flags.Tree, args ...any) (string, error) {
	if tree == nil {
		return "", fmt.Errorf("memo: %s: nil tree", name)
	}
	sum, err := tree.Hash()
	if err != nil {
		return "", fmt.Errorf("memo: %s: %w", name, err)
	}
	argSum, err := hashstructure.Hash(args, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("memo: %s: hash arguments: %w", name, err)
	}
	return fmt.Sprintf("%s/%s/%016x", name, sum, argSum), nil
}

// Do returns the cached result of fn for (name, tree, args), calling fn at
// most once per key even under concurrent callers. Errors are not cached.
func Do[R any](c *Cache, name string, tree *flags.Tree, fn func() (R, error), args ...any) (R, error) {
	var zero R
	key, err := c.Key(name, tree, args...)
	if err != nil {
		c.count("error")
		return zero, err
	}

	if value, ok := c.lookup(key); ok {
		c.count("hit")
		return resultAs[R](c, value)
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		if value, ok := c.lookup(key); ok {
			return value, nil
		}
		c.count("miss")
		result, err := fn()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = result
		c.mu.Unlock()
		c.log.WithFields(logrus.Fields{"at": "memo.Do", "key": key}).Debug("result cached")
		return result, nil
	})
	if err != nil {
		c.count("error")
		return zero, err
	}
	return resultAs[R](c, value)
}

// Memoize wraps fn so calls with equal trees and arguments share one result.
func Memoize[R any](c *Cache, name string, fn func(tree *flags.Tree, args ...any) (R, error)) func(*flags.Tree, ...any) (R, error) {
	return func(tree *flags.Tree, args ...any) (R, error) {
		return Do(c, name, tree, func() (R, error) {
			return fn(tree, args...)
		}, args...)
	}
}

// Len reports the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every cached result.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = map[string]any{}
	c.mu.Unlock()
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	value, ok := c.entries[key]
	c.mu.RUnlock()
	return value, ok
}

func resultAs[R any](c *Cache, value any) (R, error) {
	var zero R
	if c.copies {
		copied, err := copystructure.Copy(value)
		if err != nil {
			return zero, fmt.Errorf("memo: copy result: %w", err)
		}
		value = copied
	}
	if value == nil {
		return zero, nil
	}
	typed, ok := value.(R)
	if !ok {
		return zero, fmt.Errorf("memo: cached %T is not %T", value, zero)
	}
	return typed, nil
}

func (c *Cache) count(result string) {
	if c.requests != nil {
		c.requests.WithLabelValues(result).Inc()
	}
}
