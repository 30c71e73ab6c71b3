// Package safety maps a score difference to a safety band.
package safety

import (
	"errors"
	"fmt"
	"math"

	model "github.com/okian/admit/internal/domain/model"
)

// ErrInvalidThresholds is returned when the safe threshold is below the
// consider threshold.
var ErrInvalidThresholds = errors.New("safe threshold must not be below consider threshold")

// Thresholds are the lower bounds of the safe and consider bands.
type Thresholds struct {
	Safe     float64
	Consider float64
}

// DefaultThresholds is the canonical 2.0 / 0.0 split.
var DefaultThresholds = Thresholds{Safe: 2.0, Consider: 0.0}

// AlternateThresholds is the ±1.5 split some recommendation paths used.
var AlternateThresholds = Thresholds{Safe: 1.5, Consider: -1.5}

// Classifier labels score differences.
type Classifier struct {
	t Thresholds
}

// New validates the thresholds and returns a classifier.
func New(t Thresholds) (*Classifier, error) {
	if math.IsNaN(t.Safe) || math.IsNaN(t.Consider) || t.Safe < t.Consider {
		return nil, fmt.Errorf("%w: safe=%v consider=%v", ErrInvalidThresholds, t.Safe, t.Consider)
	}
	return &Classifier{t: t}, nil
}

// Default returns the canonical classifier.
func Default() *Classifier {
	return &Classifier{t: DefaultThresholds}
}

// Thresholds returns the configured bounds.
func (c *Classifier) Thresholds() Thresholds { return c.t }

// Classify returns exactly one band for any difference. NaN is risky.
func (c *Classifier) Classify(diff float64) model.SafetyBand {
	switch {
	case diff >= c.t.Safe:
		return model.BandSafe
	case diff >= c.t.Consider:
		return model.BandConsider
	default:
		return model.BandRisky
	}
}
