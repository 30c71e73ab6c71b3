// Package ranking orders oracle outputs into field recommendations and
// benchmark groups into institution recommendations.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/admit/internal/domain/dedupe"
	model "github.com/okian/admit/internal/domain/model"
)

// Defaults for ranking.
const (
	DefaultTopK            = 3
	DefaultGamma           = 0.3
	DefaultMaxInstitutions = 10
)

// ErrLabelMismatch is returned when oracle outputs and labels differ in length.
var ErrLabelMismatch = errors.New("oracle outputs and labels differ in length")

// FieldLookup resolves an oracle label to a catalog field.
type FieldLookup func(id string) (model.Field, bool)

// RankedField is a field chosen by the oracle, before institution lookup.
type RankedField struct {
	Field          model.Field
	Confidence     float64
	DisplayPercent float64
}

// FieldOption applies a configuration option to RankFields.
type FieldOption func(*fieldOptions)

type fieldOptions struct {
	gamma   float64
	keyFunc func(string) string
}

// WithGamma sets the sharpening exponent used for display percentages.
func WithGamma(g float64) FieldOption {
	return func(o *fieldOptions) {
		if g > 0 {
			o.gamma = g
		}
	}
}

// WithNameKey sets how canonical names are folded for de-duplication.
func WithNameKey(fold func(string) string) FieldOption {
	return func(o *fieldOptions) {
		o.keyFunc = fold
	}
}

type scored struct {
	label string
	p     float64
}

// RankFields sorts oracle outputs descending, maps labels to catalog fields,
// drops fields whose canonical name was already taken, keeps at most topK and
// attaches sharpened display percentages. Sharpening never changes order.
func RankFields(ctx context.Context, outputs []float64, labels []string, lookup FieldLookup, topK int, opts ...FieldOption) ([]RankedField, error) {
	if len(outputs) != len(labels) {
		return nil, fmt.Errorf("%w: %d outputs, %d labels", ErrLabelMismatch, len(outputs), len(labels))
	}
	o := fieldOptions{gamma: DefaultGamma}
	for _, opt := range opts {
		opt(&o)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	order := make([]scored, len(outputs))
	for i, p := range outputs {
		order[i] = scored{label: labels[i], p: p}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].p != order[j].p {
			return order[i].p > order[j].p
		}
		return order[i].label < order[j].label
	})

	var dopts []dedupe.Option
	if o.keyFunc != nil {
		dopts = append(dopts, dedupe.WithKeyFunc(o.keyFunc))
	}
	seen := dedupe.NewInMemoryDeduper(append(dopts, dedupe.WithCapacity(topK))...)

	out := make([]RankedField, 0, topK)
	for _, s := range order {
		if len(out) == topK {
			break
		}
		f, ok := lookup(s.label)
		if !ok {
			continue
		}
		if seen.SeenAndRecord(ctx, f.Name) {
			continue
		}
		out = append(out, RankedField{Field: f, Confidence: s.p})
	}

	probs := make([]float64, len(out))
	for i, r := range out {
		probs[i] = r.Confidence
	}
	for i, pct := range Sharpen(probs, o.gamma) {
		out[i].DisplayPercent = pct
	}
	return out, nil
}

// Sharpen returns 100 * p_i^γ / Σ p_j^γ. When every p is zero the share is
// split evenly.
func Sharpen(ps []float64, gamma float64) []float64 {
	out := make([]float64, len(ps))
	if len(ps) == 0 {
		return out
	}
	sum := 0.0
	for i, p := range ps {
		out[i] = math.Pow(math.Max(p, 0), gamma)
		sum += out[i]
	}
	for i := range out {
		if sum == 0 {
			out[i] = 100 / float64(len(out))
			continue
		}
		out[i] = 100 * out[i] / sum
	}
	return out
}
