package ranking

import (
	"sort"
	"strings"

	model "github.com/okian/admit/internal/domain/model"
	"github.com/okian/admit/internal/domain/safety"
	"github.com/okian/admit/internal/domain/trend"
)

// Group is every benchmark record and quota resolved to one
// (institution, field) pair.
type Group struct {
	Institution model.Institution
	Field       model.Field
	Records     []model.BenchmarkRecord
	Quotas      []model.AdmissionQuota
}

// Scored is a group evaluated for one student.
type Scored struct {
	Recommendation model.Recommendation
	Estimate       trend.Estimate
}

// InstitutionRanker scores groups against a student profile.
type InstitutionRanker struct {
	estimator  *trend.Estimator
	classifier *safety.Classifier
	max        int
}

// InstitutionOption applies a configuration option to the InstitutionRanker.
type InstitutionOption func(*InstitutionRanker)

// WithEstimator sets the trend estimator.
func WithEstimator(e *trend.Estimator) InstitutionOption {
	return func(r *InstitutionRanker) {
		if e != nil {
			r.estimator = e
		}
	}
}

// WithClassifier sets the safety classifier.
func WithClassifier(c *safety.Classifier) InstitutionOption {
	return func(r *InstitutionRanker) {
		if c != nil {
			r.classifier = c
		}
	}
}

// WithMaxInstitutions caps the merged result.
func WithMaxInstitutions(n int) InstitutionOption {
	return func(r *InstitutionRanker) {
		if n > 0 {
			r.max = n
		}
	}
}

// NewInstitutionRanker creates a ranker with the canonical classifier and a
// plain-mean estimator unless overridden.
func NewInstitutionRanker(opts ...InstitutionOption) *InstitutionRanker {
	r := &InstitutionRanker{
		estimator:  trend.New(),
		classifier: safety.Default(),
		max:        DefaultMaxInstitutions,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Max returns the configured cap.
func (r *InstitutionRanker) Max() int { return r.max }

// Rank scores each group on the student's best viable combination and merges
// them safe, consider, risky, each by score difference descending. Groups in
// which the student lacks a score for every combination are left out.
// limit <= 0 uses the configured cap.
func (r *InstitutionRanker) Rank(p model.StudentProfile, groups []Group, combos map[string]model.SubjectCombination, limit int) []Scored {
	if limit <= 0 || limit > r.max {
		limit = r.max
	}
	out := make([]Scored, 0, len(groups))
	for _, g := range groups {
		s, ok := r.Score(p, g, combos)
		if !ok {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Recommendation, out[j].Recommendation
		if a.SafetyBand.Rank() != b.SafetyBand.Rank() {
			return a.SafetyBand.Rank() < b.SafetyBand.Rank()
		}
		if a.ScoreDifference != b.ScoreDifference {
			return a.ScoreDifference > b.ScoreDifference
		}
		if a.InstitutionName != b.InstitutionName {
			return a.InstitutionName < b.InstitutionName
		}
		return a.InstitutionID < b.InstitutionID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Score evaluates one group. ok is false when no combination offered by the
// group is viable for the student.
func (r *InstitutionRanker) Score(p model.StudentProfile, g Group, combos map[string]model.SubjectCombination) (Scored, bool) {
	combo, studentScore, ok := p.BestCombination(candidateCombinations(p, g, combos))
	if !ok {
		return Scored{}, false
	}

	records := recordsFor(g.Records, combo.Code)
	est := r.estimator.Estimate(trend.Input{
		Records:      records,
		Quotas:       model.SelectQuotas(g.Quotas),
		Field:        g.Field,
		StudentScore: studentScore,
	})
	diff := trend.Round2(studentScore - est.ExpectedScore)

	return Scored{
		Recommendation: model.Recommendation{
			InstitutionID:   g.Institution.ID,
			InstitutionCode: g.Institution.Code,
			InstitutionName: g.Institution.Name,
			FieldName:       g.Field.Name,
			Combination:     combo.Code,
			StudentScore:    trend.Round2(studentScore),
			ExpectedScore:   est.ExpectedScore,
			ScoreDifference: diff,
			SafetyBand:      r.classifier.Classify(diff),
		},
		Estimate: est,
	}, true
}

// candidateCombinations lists the group's combinations the student can sit,
// narrowed to the student's preferred codes when any of those is viable.
func candidateCombinations(p model.StudentProfile, g Group, combos map[string]model.SubjectCombination) []model.SubjectCombination {
	viable := make(map[string]model.SubjectCombination)
	for _, rec := range g.Records {
		code := strings.ToUpper(strings.TrimSpace(rec.Combination))
		c, ok := combos[code]
		if !ok {
			continue
		}
		if _, ok := p.CombinationScore(c); ok {
			viable[code] = c
		}
	}

	preferred := make([]model.SubjectCombination, 0, len(p.Combinations))
	for _, code := range p.Combinations {
		if c, ok := viable[code]; ok {
			preferred = append(preferred, c)
		}
	}
	if len(preferred) > 0 {
		return preferred
	}

	all := make([]model.SubjectCombination, 0, len(viable))
	for _, c := range viable {
		all = append(all, c)
	}
	return model.SortedCombinations(all)
}

// recordsFor keeps the records for one combination.
func recordsFor(records []model.BenchmarkRecord, code string) []model.BenchmarkRecord {
	out := make([]model.BenchmarkRecord, 0, len(records))
	for _, r := range records {
		if strings.EqualFold(strings.TrimSpace(r.Combination), code) {
			out = append(out, r)
		}
	}
	return out
}
