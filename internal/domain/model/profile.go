// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strings"
)

// Subject is one of the nine examined subjects.
type Subject string

// The nine fixed subjects, in feature-vector order.
const (
	Math       Subject = "math"
	Literature Subject = "literature"
	English    Subject = "english"
	Physics    Subject = "physics"
	Chemistry  Subject = "chemistry"
	Biology    Subject = "biology"
	History    Subject = "history"
	Geography  Subject = "geography"
	Civics     Subject = "civics"
)

// Subjects lists the fixed subjects in feature-vector order.
var Subjects = [...]Subject{Math, Literature, English, Physics, Chemistry, Biology, History, Geography, Civics}

var subjectAliases = map[string]Subject{
	"mathematics":      Math,
	"maths":            Math,
	"foreign_language": English,
	"foreign language": English,
	"civic_education":  Civics,
	"civic education":  Civics,
	"gdcd":             Civics,
}

// ParseSubject maps a subject name or known alias to its Subject.
func ParseSubject(s string) (Subject, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, sub := range Subjects {
		if string(sub) == key {
			return sub, true
		}
	}
	sub, ok := subjectAliases[key]
	return sub, ok
}

// Track is the exam track flag. Empty means the student declared none.
type Track string

const (
	TrackScience Track = "science"
	TrackSocial  Track = "social"
)

// Profile limits.
const (
	MinScore        = 0.0
	MaxScore        = 10.0
	MaxInterests    = 3
	MaxCombinations = 2
)

// PriorityTable maps area and subject-object tiers to bonus points.
type PriorityTable struct {
	Area   map[string]float64
	Object map[string]float64
	Cap    float64
}

// DefaultPriorityTable returns the national bonus tiers capped at 4.0.
func DefaultPriorityTable() PriorityTable {
	return PriorityTable{
		Area: map[string]float64{
			"KV1":    0.75,
			"KV2-NT": 0.5,
			"KV2":    0.25,
			"KV3":    0,
		},
		Object: map[string]float64{
			"UT1": 2.0,
			"UT2": 1.0,
		},
		Cap: 4.0,
	}
}

// Bonus sums the area and object bonuses and caps the result. Unknown or
// empty tiers contribute nothing.
func (t PriorityTable) Bonus(area, object string) float64 {
	b := t.Area[strings.ToUpper(strings.TrimSpace(area))] + t.Object[strings.ToUpper(strings.TrimSpace(object))]
	if t.Cap > 0 && b > t.Cap {
		b = t.Cap
	}
	return b
}

// ProfileInput is the raw, loosely validated student input.
type ProfileInput struct {
	Scores       map[string]*float64 `json:"scores" validate:"required"`
	Interests    []string            `json:"interests,omitempty" validate:"max=3,dive,required"`
	Combinations []string            `json:"combinations,omitempty" validate:"max=2,dive,required"`
	Track        string              `json:"track,omitempty"`
	AreaTier     string              `json:"area_tier,omitempty"`
	ObjectTier   string              `json:"object_tier,omitempty"`
}

// StudentProfile is a validated, request-scoped student profile.
// Scores holds only subjects the student actually sat.
type StudentProfile struct {
	Scores        map[Subject]float64
	Interests     []string
	Combinations  []string
	Track         Track
	AreaTier      string
	ObjectTier    string
	PriorityBonus float64
}

// NewStudentProfile validates the input and applies defaults.
func NewStudentProfile(in ProfileInput, table PriorityTable) (StudentProfile, error) {
	p := StudentProfile{
		Scores:     make(map[Subject]float64, len(Subjects)),
		AreaTier:   strings.ToUpper(strings.TrimSpace(in.AreaTier)),
		ObjectTier: strings.ToUpper(strings.TrimSpace(in.ObjectTier)),
	}

	for name, v := range in.Scores {
		sub, ok := ParseSubject(name)
		if !ok {
			return StudentProfile{}, fmt.Errorf("%w: unknown subject %q", ErrInvalidProfile, name)
		}
		if v == nil {
			continue
		}
		if math.IsNaN(*v) || *v < MinScore || *v > MaxScore {
			return StudentProfile{}, fmt.Errorf("%w: score for %s must be within [0,10], got %v", ErrInvalidProfile, sub, *v)
		}
		p.Scores[sub] = *v
	}
	if !p.HasScore(Math) && !p.HasScore(Literature) {
		return StudentProfile{}, fmt.Errorf("%w: at least one of math or literature scores is required", ErrInvalidProfile)
	}

	if len(in.Interests) > MaxInterests {
		return StudentProfile{}, fmt.Errorf("%w: at most %d interests allowed", ErrInvalidProfile, MaxInterests)
	}
	p.Interests = compactLower(in.Interests)

	if len(in.Combinations) > MaxCombinations {
		return StudentProfile{}, fmt.Errorf("%w: at most %d combinations allowed", ErrInvalidProfile, MaxCombinations)
	}
	for _, c := range in.Combinations {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			p.Combinations = append(p.Combinations, c)
		}
	}

	switch t := Track(strings.ToLower(strings.TrimSpace(in.Track))); t {
	case "", TrackScience, TrackSocial:
		p.Track = t
	default:
		return StudentProfile{}, fmt.Errorf("%w: unknown exam track %q", ErrInvalidProfile, in.Track)
	}

	p.PriorityBonus = table.Bonus(p.AreaTier, p.ObjectTier)
	return p, nil
}

// HasScore reports whether the student sat the subject.
func (p StudentProfile) HasScore(s Subject) bool {
	_, ok := p.Scores[s]
	return ok
}

// Score returns the subject score; a missing subject counts as 0.
func (p StudentProfile) Score(s Subject) float64 {
	return p.Scores[s]
}

// CombinationScore returns the achievable admission score for a combination:
// the sum of its subject scores plus the priority bonus. ok is false when any
// required subject score is missing.
func (p StudentProfile) CombinationScore(c SubjectCombination) (float64, bool) {
	if len(c.Subjects) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, s := range c.Subjects {
		v, ok := p.Scores[s]
		if !ok {
			return 0, false
		}
		sum += v
	}
	return sum + p.PriorityBonus, true
}

// BestCombination picks the viable combination with the highest score.
// Ties go to the lexicographically smaller code.
func (p StudentProfile) BestCombination(combos []SubjectCombination) (SubjectCombination, float64, bool) {
	var (
		best      SubjectCombination
		bestScore float64
		found     bool
	)
	for _, c := range combos {
		score, ok := p.CombinationScore(c)
		if !ok {
			continue
		}
		if !found || score > bestScore || (score == bestScore && c.Code < best.Code) {
			best, bestScore, found = c, score, true
		}
	}
	return best, bestScore, found
}

func compactLower(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
