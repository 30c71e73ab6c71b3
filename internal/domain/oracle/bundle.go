package oracle

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// BundleVersion is the artifact format this package reads and writes.
const BundleVersion = 1

// Bundle kinds.
const (
	KindField     = "field"
	KindAdmission = "admission"
)

// Activation names understood by the dense layers.
const (
	ActivationLinear  = "linear"
	ActivationReLU    = "relu"
	ActivationTanh    = "tanh"
	ActivationSigmoid = "sigmoid"
)

// Layer is one dense layer. Weights are indexed [output][input].
type Layer struct {
	Weights    [][]float64 `msgpack:"weights"`
	Bias       []float64   `msgpack:"bias"`
	Activation string      `msgpack:"activation"`
}

// Bundle is the versioned oracle artifact: the trained network together with
// the normalisation statistics and the feature order it was trained on.
type Bundle struct {
	Version      int       `msgpack:"version"`
	Kind         string    `msgpack:"kind"`
	FeatureNames []string  `msgpack:"feature_names"`
	Mean         []float64 `msgpack:"mean"`
	Scale        []float64 `msgpack:"scale"`
	Outputs      []string  `msgpack:"outputs"`
	Layers       []Layer   `msgpack:"layers"`
}

// Dimension is the input width the bundle expects.
func (b *Bundle) Dimension() int { return len(b.FeatureNames) }

// Validate checks that the normalisation vectors, feature names and layer
// shapes agree with each other and with dim. A dim of 0 skips the external
// check.
func (b *Bundle) Validate(dim int) error {
	if b == nil {
		return ErrBundleMissing
	}
	if b.Version != BundleVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidBundle, b.Version, BundleVersion)
	}
	n := len(b.FeatureNames)
	if n == 0 || len(b.Mean) != n || len(b.Scale) != n {
		return fmt.Errorf("%w: mean=%d scale=%d feature_names=%d", ErrDimensionMismatch, len(b.Mean), len(b.Scale), n)
	}
	if dim > 0 && dim != n {
		return fmt.Errorf("%w: bundle has %d features, builder produces %d", ErrDimensionMismatch, n, dim)
	}
	for i, s := range b.Scale {
		if s == 0 || math.IsNaN(s) {
			return fmt.Errorf("%w: scale[%d] is %v", ErrInvalidBundle, i, s)
		}
	}
	if len(b.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidBundle)
	}
	in := n
	for li, l := range b.Layers {
		if len(l.Weights) == 0 || len(l.Bias) != len(l.Weights) {
			return fmt.Errorf("%w: layer %d has %d rows and %d biases", ErrDimensionMismatch, li, len(l.Weights), len(l.Bias))
		}
		for _, row := range l.Weights {
			if len(row) != in {
				return fmt.Errorf("%w: layer %d expects %d inputs, got row of %d", ErrDimensionMismatch, li, in, len(row))
			}
		}
		switch l.Activation {
		case ActivationLinear, ActivationReLU, ActivationTanh, ActivationSigmoid, "":
		default:
			return fmt.Errorf("%w: layer %d activation %q", ErrInvalidBundle, li, l.Activation)
		}
		in = len(l.Weights)
	}
	if len(b.Outputs) != in {
		return fmt.Errorf("%w: %d outputs labelled, network produces %d", ErrDimensionMismatch, len(b.Outputs), in)
	}
	return nil
}

// DecodeBundle reads a msgpack bundle.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := msgpack.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidBundle, err)
	}
	return &b, nil
}

// EncodeBundle writes b as msgpack.
func EncodeBundle(w io.Writer, b *Bundle) error {
	return msgpack.NewEncoder(w).Encode(b)
}

// LoadBundle reads and decodes a bundle from disk. It does not validate the
// bundle against a feature layout; callers do that with Validate.
func LoadBundle(path string) (*Bundle, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrBundleMissing)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBundleMissing, path)
		}
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeBundle(f)
}

// WriteBundle encodes b next to path and renames it into place.
func WriteBundle(path string, b *Bundle) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "bundle-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if err := EncodeBundle(f, b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
