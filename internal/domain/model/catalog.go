package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SubjectCombination is a fixed set of examined subjects, e.g. A00.
type SubjectCombination struct {
	Code     string
	Subjects []Subject
}

// NewSubjectCombination builds a combination from subject names.
func NewSubjectCombination(code string, subjects []string) (SubjectCombination, error) {
	c := SubjectCombination{Code: strings.ToUpper(strings.TrimSpace(code))}
	if c.Code == "" {
		return SubjectCombination{}, fmt.Errorf("%w: combination code is empty", ErrInvalidRecord)
	}
	for _, name := range subjects {
		s, ok := ParseSubject(name)
		if !ok {
			return SubjectCombination{}, fmt.Errorf("%w: combination %s has unknown subject %q", ErrInvalidRecord, c.Code, name)
		}
		c.Subjects = append(c.Subjects, s)
	}
	return c, nil
}

// Field is a major offered by institutions.
type Field struct {
	ID             string
	Name           string
	NormalizedName string
	Category       string
	Interests      []string
	MarketTrend    map[int]float64
}

// DefaultMarketTrend is used when a field has no trend series.
const DefaultMarketTrend = 0.5

// LatestMarketTrend returns the value for the most recent year of the series.
func (f Field) LatestMarketTrend() (float64, bool) {
	if len(f.MarketTrend) == 0 {
		return DefaultMarketTrend, false
	}
	latest := 0
	first := true
	for y := range f.MarketTrend {
		if first || y > latest {
			latest, first = y, false
		}
	}
	v := f.MarketTrend[latest]
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v, true
}

// MatchingInterests returns the student interests this field carries, in
// the student's order.
func (f Field) MatchingInterests(interests []string) []string {
	tags := make(map[string]struct{}, len(f.Interests))
	for _, t := range f.Interests {
		tags[strings.ToLower(t)] = struct{}{}
	}
	out := []string{}
	for _, i := range interests {
		if _, ok := tags[strings.ToLower(i)]; ok {
			out = append(out, i)
		}
	}
	return out
}

// ParseMarketTrend converts a decoded year-keyed series into a map keyed by
// integer year. Keys that are not years are rejected.
func ParseMarketTrend(raw map[string]float64) (map[int]float64, error) {
	out := make(map[int]float64, len(raw))
	for k, v := range raw {
		y, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("%w: market trend year %q", ErrInvalidRecord, k)
		}
		out[y] = v
	}
	return out, nil
}

// Tier is an institution's entry tier.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// ParseTier maps free text to a Tier; unknown values fall back to medium.
func ParseTier(s string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierHigh:
		return TierHigh
	case TierLow:
		return TierLow
	default:
		return TierMedium
	}
}

// Institution is a university or college.
type Institution struct {
	ID         string
	Code       string
	Name       string
	Tier       Tier
	AliasCodes []string
}

// Codes returns the primary code followed by alias codes.
func (i Institution) Codes() []string {
	out := make([]string, 0, 1+len(i.AliasCodes))
	if i.Code != "" {
		out = append(out, i.Code)
	}
	return append(out, i.AliasCodes...)
}

// SortedInterests returns the distinct interest tags in a stable order so the
// feature layout does not depend on store iteration order.
func SortedInterests(tags []string) []string {
	out := compactLower(tags)
	sort.Strings(out)
	return out
}

// SortedCombinations orders combinations by code.
func SortedCombinations(combos []SubjectCombination) []SubjectCombination {
	out := append([]SubjectCombination(nil), combos...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
