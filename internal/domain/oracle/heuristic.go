package oracle

import (
	"context"
	"fmt"
)

// Default heuristic settings. Inputs follow the admission feature layout, in
// which score_difference is stored divided by compositeScale.
const (
	DefaultSteepness   = 1.2
	compositeScale     = 30.0
	admissionDimension = 10
	differenceIndex    = 2
)

// Heuristic is a rule-based admission oracle: sigmoid(k * (student - expected)).
type Heuristic struct {
	k float64
}

// NewHeuristic returns a heuristic oracle with steepness k; k <= 0 selects
// DefaultSteepness.
func NewHeuristic(k float64) *Heuristic {
	if k <= 0 {
		k = DefaultSteepness
	}
	return &Heuristic{k: k}
}

// Dimension returns the admission layout width.
func (h *Heuristic) Dimension() int { return admissionDimension }

// Predict reads the score difference from the admission vector.
func (h *Heuristic) Predict(ctx context.Context, features []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}
	if len(features) != admissionDimension {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrDimensionMismatch, len(features), admissionDimension)
	}
	return clamp01(sigmoid(h.k * features[differenceIndex] * compositeScale)), nil
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, features []float64) (float64, error)

// Predict calls f and clamps the result.
func (f Func) Predict(ctx context.Context, features []float64) (float64, error) {
	p, err := f(ctx, features)
	if err != nil {
		return 0, err
	}
	return clamp01(p), nil
}

// Dimension accepts any width.
func (f Func) Dimension() int { return 0 }
