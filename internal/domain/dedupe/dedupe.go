// Package dedupe tracks which canonical keys a ranked result already holds.
package dedupe

import (
	"context"
	"strings"
	"sync"
)

// Deduper records seen keys so that each canonical entity appears once.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool
}

// inMemoryDeduper implements Deduper with a map guarded by a mutex. Keys are
// folded before lookup so that aliases of one canonical name collide.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
	fold func(string) string
	hint int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		fold: defaultFold,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.hint)
	return d
}

func defaultFold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// SeenAndRecord atomically checks if key was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	k := d.fold(key)
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[k]; exists {
		return true
	}
	d.seen[k] = struct{}{}
	return false
}
