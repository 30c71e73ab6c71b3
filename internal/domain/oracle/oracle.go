// Package oracle defines the contract for turning a feature vector into an
// admission probability, plus the bundled dense network and a rule-based
// estimator that satisfy it.
package oracle

import (
	"context"
	"fmt"
	"math"
)

// Oracle is the single-output variant: one probability per vector.
type Oracle interface {
	// Predict returns a probability in [0,1] for a raw feature vector,
	// honoring ctx for cancellation.
	Predict(ctx context.Context, features []float64) (float64, error)
	// Dimension is the expected vector width; 0 means any width.
	Dimension() int
}

// MultiOracle is the multi-output variant: one independent sigmoid per label.
// The outputs do not sum to 1.
type MultiOracle interface {
	PredictAll(ctx context.Context, features []float64) ([]float64, error)
	Labels() []string
	Dimension() int
}

// Normalizer applies persisted standardisation statistics.
type Normalizer struct {
	mean  []float64
	scale []float64
}

// Apply returns (x - mean) / scale.
func (n Normalizer) Apply(x []float64) ([]float64, error) {
	if len(x) != len(n.mean) {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrDimensionMismatch, len(x), len(n.mean))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - n.mean[i]) / n.scale[i]
	}
	return out, nil
}

// Network runs a validated bundle. It implements Oracle and MultiOracle and
// is safe for concurrent use.
type Network struct {
	bundle *Bundle
	norm   Normalizer
}

// NewNetwork validates b against dim (0 to skip) and wraps it.
func NewNetwork(b *Bundle, dim int) (*Network, error) {
	if err := b.Validate(dim); err != nil {
		return nil, err
	}
	return &Network{bundle: b, norm: Normalizer{mean: b.Mean, scale: b.Scale}}, nil
}

// Load reads a bundle from path and validates it against dim.
func Load(path string, dim int) (*Network, error) {
	b, err := LoadBundle(path)
	if err != nil {
		return nil, err
	}
	return NewNetwork(b, dim)
}

// Dimension returns the input width.
func (n *Network) Dimension() int { return n.bundle.Dimension() }

// Labels returns the output labels in output order.
func (n *Network) Labels() []string { return append([]string(nil), n.bundle.Outputs...) }

// Kind returns the bundle kind.
func (n *Network) Kind() string { return n.bundle.Kind }

// FeatureNames returns the trained feature order.
func (n *Network) FeatureNames() []string { return append([]string(nil), n.bundle.FeatureNames...) }

// PredictAll normalises the vector and runs the dense layers. Every output is
// clamped to [0,1].
func (n *Network) PredictAll(ctx context.Context, features []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	x, err := n.norm.Apply(features)
	if err != nil {
		return nil, err
	}
	for _, l := range n.bundle.Layers {
		x = forward(l, x)
	}
	for i := range x {
		x[i] = clamp01(x[i])
	}
	return x, nil
}

// Predict returns the first output.
func (n *Network) Predict(ctx context.Context, features []float64) (float64, error) {
	out, err := n.PredictAll(ctx, features)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

func forward(l Layer, in []float64) []float64 {
	out := make([]float64, len(l.Weights))
	for j, row := range l.Weights {
		s := l.Bias[j]
		for i, w := range row {
			s += w * in[i]
		}
		out[j] = activate(l.Activation, s)
	}
	return out
}

func activate(name string, x float64) float64 {
	switch name {
	case ActivationReLU:
		return math.Max(0, x)
	case ActivationTanh:
		return math.Tanh(x)
	case ActivationSigmoid:
		return sigmoid(x)
	default:
		return x
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
