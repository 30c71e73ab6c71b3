package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// MemoryStore keeps catalog documents in process. It is safe for concurrent
// use.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[Collection][]Document
	closed bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[Collection][]Document)}
}

// Insert appends documents to a collection.
func (m *MemoryStore) Insert(c Collection, docs ...Document) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.docs[c] = append(m.docs[c], cloneDoc(d))
	}
	return nil
}

// Find returns copies of the matching documents.
func (m *MemoryStore) Find(ctx context.Context, c Collection, f Filter, opts ...FindOption) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := apply(m.docs[c], f, buildFindOptions(opts))
	for i, d := range out {
		out[i] = cloneDoc(d)
	}
	return out, nil
}

// Close marks the store closed.
func (m *MemoryStore) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Fixture is the on-disk YAML layout: one list of documents per collection.
type Fixture map[Collection][]Document

// DecodeFixture reads a YAML fixture.
func DecodeFixture(r io.Reader) (Fixture, error) {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return Fixture{}, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for c, docs := range fx {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
		}
		for i, d := range docs {
			docs[i] = plainYAML(d).(Document)
		}
	}
	return fx, nil
}

// plainYAML rewrites maps with non-string keys, such as year-keyed series,
// into string-keyed maps so documents stay JSON encodable.
func plainYAML(v any) any {
	switch t := v.(type) {
	case Document:
		out := make(Document, len(t))
		for k, e := range t {
			out[k] = plainYAML(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plainYAML(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = plainYAML(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainYAML(e)
		}
		return out
	default:
		return v
	}
}

// LoadFixture reads a YAML fixture file into a new memory store.
func LoadFixture(path string) (*MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer func() { _ = f.Close() }()

	fx, err := DecodeFixture(f)
	if err != nil {
		return nil, err
	}
	return FromFixture(fx)
}

// FromFixture copies a decoded fixture into a new memory store.
func FromFixture(fx Fixture) (*MemoryStore, error) {
	m := NewMemoryStore()
	for c, docs := range fx {
		if err := m.Insert(c, docs...); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func cloneDoc(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
