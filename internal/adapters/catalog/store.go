// Package catalog exposes the read-only catalog store the advisor queries,
// with memory, SQL and MongoDB implementations.
package catalog

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Collection names a catalog collection.
type Collection string

// The collections the advisor reads.
const (
	Fields              Collection = "fields"
	Institutions        Collection = "institutions"
	SubjectCombinations Collection = "subject_combinations"
	Interests           Collection = "interests"
	BenchmarkRecords    Collection = "benchmark_records"
	AdmissionQuotas     Collection = "admission_quotas"
)

// Collections lists every known collection.
var Collections = []Collection{Fields, Institutions, SubjectCombinations, Interests, BenchmarkRecords, AdmissionQuotas}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	for _, k := range Collections {
		if k == c {
			return true
		}
	}
	return false
}

// Document is one stored record.
type Document map[string]any

// Filter matches documents by top-level key equality. A slice value matches
// any of its elements.
type Filter map[string]any

// SortKey orders results by one field.
type SortKey struct {
	Field string
	Desc  bool
}

// FindOptions narrows a Find call.
type FindOptions struct {
	Projection []string
	Sort       []SortKey
	Limit      int
}

// FindOption applies a configuration option to a Find call.
type FindOption func(*FindOptions)

// WithProjection keeps only the named keys.
func WithProjection(keys ...string) FindOption {
	return func(o *FindOptions) { o.Projection = append(o.Projection, keys...) }
}

// WithSort orders results.
func WithSort(keys ...SortKey) FindOption {
	return func(o *FindOptions) { o.Sort = append(o.Sort, keys...) }
}

// WithLimit caps the number of results; 0 means no cap.
func WithLimit(n int) FindOption {
	return func(o *FindOptions) {
		if n >= 0 {
			o.Limit = n
		}
	}
}

func buildFindOptions(opts []FindOption) FindOptions {
	var o FindOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is the read-only query interface over the catalog.
type Store interface {
	Find(ctx context.Context, c Collection, f Filter, opts ...FindOption) ([]Document, error)
	Close(ctx context.Context) error
}

// apply filters, sorts, limits and projects docs in memory. Stores without a
// native query language share it.
func apply(docs []Document, f Filter, o FindOptions) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if matches(d, f) {
			out = append(out, d)
		}
	}
	if len(o.Sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, k := range o.Sort {
				c := compare(out[i][k.Field], out[j][k.Field])
				if c == 0 {
					continue
				}
				if k.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if o.Limit > 0 && len(out) > o.Limit {
		out = out[:o.Limit]
	}
	if len(o.Projection) > 0 {
		for i, d := range out {
			p := make(Document, len(o.Projection))
			for _, k := range o.Projection {
				if v, ok := d[k]; ok {
					p[k] = v
				}
			}
			out[i] = p
		}
	}
	return out
}

func matches(d Document, f Filter) bool {
	for k, want := range f {
		got, ok := d[k]
		if !ok {
			return false
		}
		rv := reflect.ValueOf(want)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			found := false
			for i := 0; i < rv.Len(); i++ {
				if compare(got, rv.Index(i).Interface()) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if compare(got, want) != 0 {
			return false
		}
	}
	return true
}

// compare orders numbers numerically and everything else by its string form.
func compare(a, b any) int {
	fa, aok := number(a)
	fb, bok := number(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
