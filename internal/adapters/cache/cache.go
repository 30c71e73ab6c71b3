// Package cache holds time-bounded catalog snapshots shared across requests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/okian/admit/internal/domain/resolve"
	"github.com/okian/admit/pkg/logger"
	"github.com/okian/admit/pkg/metrics"
)

// DefaultTTL is how long a snapshot stays fresh.
const DefaultTTL = time.Hour

// ErrNoLoader is returned when a cache is built without a loader.
var ErrNoLoader = errors.New("cache loader is nil")

// Loader fetches every record of one catalog from the store.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Keyer describes how a record is resolved: its id, canonical name and codes.
type Keyer[T any] func(T) resolve.Candidate

// Snapshot is one immutable mapping of a catalog. It is replaced whole on
// refresh and must not be modified by readers.
type Snapshot[T any] struct {
	Catalog    string
	Items      map[string]T
	Candidates []resolve.Candidate
	ByName     map[string]string
	ByCode     map[string]string
	FetchedAt  time.Time
}

// Get returns the record with the given id.
func (s *Snapshot[T]) Get(id string) (T, bool) {
	v, ok := s.Items[id]
	return v, ok
}

// Lookup maps a code or an already normalised name to an id.
func (s *Snapshot[T]) Lookup(nameOrCode string) (string, bool) {
	if id, ok := s.ByCode[strings.ToUpper(strings.TrimSpace(nameOrCode))]; ok {
		return id, true
	}
	id, ok := s.ByName[nameOrCode]
	return id, ok
}

// Len is the number of records.
func (s *Snapshot[T]) Len() int { return len(s.Items) }

type settings struct {
	ttl      time.Duration
	now      func() time.Time
	resolver *resolve.Resolver
	log      logger.Logger
}

// Option applies a configuration option to a Cache.
type Option func(*settings)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithResolver sets the resolver used to normalise candidate names.
func WithResolver(r *resolve.Resolver) Option {
	return func(s *settings) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// Cache holds the snapshot of one catalog. Reads are lock-free; concurrent
// refreshes are allowed and the last one to finish wins.
type Cache[T any] struct {
	name string
	load Loader[T]
	key  Keyer[T]
	settings
	snap atomic.Pointer[Snapshot[T]]
}

// New creates an empty cache for the named catalog.
func New[T any](name string, load Loader[T], key Keyer[T], opts ...Option) (*Cache[T], error) {
	if load == nil || key == nil {
		return nil, ErrNoLoader
	}
	s := settings{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	if s.resolver == nil {
		s.resolver = resolve.New()
	}
	if s.log == nil {
		s.log = logger.Get().Named("cache")
	}
	return &Cache[T]{name: name, load: load, key: key, settings: s}, nil
}

// Name returns the catalog name.
func (c *Cache[T]) Name() string { return c.name }

// TTL returns the freshness window.
func (c *Cache[T]) TTL() time.Duration { return c.ttl }

// IsStale reports whether the next Get will refetch.
func (c *Cache[T]) IsStale() bool {
	s := c.snap.Load()
	return s == nil || c.now().Sub(s.FetchedAt) >= c.ttl
}

// Age is the time since the current snapshot was fetched, or -1 when empty.
func (c *Cache[T]) Age() time.Duration {
	s := c.snap.Load()
	if s == nil {
		return -1
	}
	return c.now().Sub(s.FetchedAt)
}

// Get returns the current snapshot, refetching synchronously when it has
// expired. If the refetch fails and an older snapshot exists, the older one
// is returned.
func (c *Cache[T]) Get(ctx context.Context) (*Snapshot[T], error) {
	if !c.IsStale() {
		metrics.RecordCacheHit(c.name)
		return c.snap.Load(), nil
	}
	metrics.RecordCacheMiss(c.name)
	s, err := c.Refresh(ctx)
	if err != nil {
		if old := c.snap.Load(); old != nil {
			c.log.Warn(ctx, "serving stale catalog snapshot", logger.String("catalog", c.name), logger.Error(err))
			metrics.RecordCacheRefresh(c.name, "stale")
			return old, nil
		}
		return nil, err
	}
	return s, nil
}

// Refresh refetches the whole catalog and swaps the snapshot in.
func (c *Cache[T]) Refresh(ctx context.Context) (*Snapshot[T], error) {
	start := c.now()
	items, err := c.load(ctx)
	if err != nil {
		metrics.RecordCacheRefresh(c.name, "error")
		return nil, fmt.Errorf("refresh %s: %w", c.name, err)
	}

	s := &Snapshot[T]{
		Catalog:    c.name,
		Items:      make(map[string]T, len(items)),
		Candidates: make([]resolve.Candidate, 0, len(items)),
		ByName:     make(map[string]string, len(items)),
		ByCode:     make(map[string]string),
		FetchedAt:  c.now(),
	}
	for _, it := range items {
		cand := c.key(it)
		if cand.ID == "" {
			continue
		}
		s.Items[cand.ID] = it
		s.Candidates = append(s.Candidates, cand)
		for _, code := range cand.Codes {
			if code != "" {
				s.ByCode[strings.ToUpper(code)] = cand.ID
			}
		}
	}
	sort.Slice(s.Candidates, func(i, j int) bool {
		if s.Candidates[i].Name != s.Candidates[j].Name {
			return s.Candidates[i].Name < s.Candidates[j].Name
		}
		return s.Candidates[i].ID < s.Candidates[j].ID
	})
	s.Candidates = c.resolver.Prepare(s.Candidates)
	for _, cand := range s.Candidates {
		if _, taken := s.ByName[cand.Normalized]; !taken {
			s.ByName[cand.Normalized] = cand.ID
		}
	}

	c.snap.Store(s)
	metrics.RecordCacheRefresh(c.name, "ok")
	metrics.UpdateCacheEntries(c.name, len(s.Items))
	c.log.Debug(ctx, "catalog snapshot refreshed",
		logger.String("catalog", c.name),
		logger.Int("entries", len(s.Items)),
		logger.Duration("took", c.now().Sub(start)))
	return s, nil
}
