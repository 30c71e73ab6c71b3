// Package features turns a student profile into the fixed-order numeric
// vector the field oracle expects.
package features

import (
	"errors"
	"fmt"
	"strings"

	model "github.com/okian/admit/internal/domain/model"
)

// ErrDimensionMismatch is returned when the builder layout disagrees with the
// oracle's persisted normalisation parameters.
var ErrDimensionMismatch = errors.New("feature dimension mismatch")

// trackOrder fixes the position of the exam-track one-hot flags.
var trackOrder = [...]model.Track{model.TrackScience, model.TrackSocial}

// Builder assembles feature vectors against a catalog snapshot of interest
// tags and combination codes.
type Builder struct {
	interests    []string
	combinations []string
	interestIdx  map[string]int
	comboIdx     map[string]int
}

// NewBuilder fixes the layout for the given catalog. Interests and combination
// codes are de-duplicated and sorted so that the layout is stable.
func NewBuilder(interests, combinations []string) *Builder {
	b := &Builder{
		interests:   model.SortedInterests(interests),
		interestIdx: make(map[string]int),
		comboIdx:    make(map[string]int),
	}
	for i, tag := range b.interests {
		b.interestIdx[tag] = i
	}

	codes := make([]string, 0, len(combinations))
	for _, c := range combinations {
		codes = append(codes, strings.ToUpper(strings.TrimSpace(c)))
	}
	b.combinations = model.SortedInterests(codes)
	for i, code := range b.combinations {
		b.combinations[i] = strings.ToUpper(code)
		b.comboIdx[b.combinations[i]] = i
	}
	return b
}

// Dimension is 9 subjects + 2 track flags + N interests + M combinations.
func (b *Builder) Dimension() int {
	return len(model.Subjects) + len(trackOrder) + len(b.interests) + len(b.combinations)
}

// Names returns the feature names in layout order.
func (b *Builder) Names() []string {
	names := make([]string, 0, b.Dimension())
	for _, s := range model.Subjects {
		names = append(names, "score_"+string(s))
	}
	for _, t := range trackOrder {
		names = append(names, "track_"+string(t))
	}
	for _, tag := range b.interests {
		names = append(names, "interest_"+tag)
	}
	for _, code := range b.combinations {
		names = append(names, "combination_"+code)
	}
	return names
}

// Check fails when the oracle expects a different number of features.
func (b *Builder) Check(expected int) error {
	if expected != b.Dimension() {
		return fmt.Errorf("%w: builder has %d features, oracle expects %d", ErrDimensionMismatch, b.Dimension(), expected)
	}
	return nil
}

// Build produces the raw (not yet normalised) vector. Unknown interests and
// combination codes are dropped.
func (b *Builder) Build(p model.StudentProfile) []float64 {
	v := make([]float64, b.Dimension())
	off := 0
	for i, s := range model.Subjects {
		v[off+i] = clamp01(p.Score(s) / model.MaxScore)
	}
	off += len(model.Subjects)

	for i, t := range trackOrder {
		if p.Track == t {
			v[off+i] = 1
		}
	}
	off += len(trackOrder)

	for _, tag := range p.Interests {
		if i, ok := b.interestIdx[strings.ToLower(tag)]; ok {
			v[off+i] = 1
		}
	}
	off += len(b.interests)

	for _, code := range p.Combinations {
		if i, ok := b.comboIdx[strings.ToUpper(code)]; ok {
			v[off+i] = 1
		}
	}
	return v
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
