package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/admit/internal/adapters/cache"
	"github.com/okian/admit/internal/domain/features"
	"github.com/okian/admit/internal/domain/model"
	"github.com/okian/admit/internal/domain/oracle"
	"github.com/okian/admit/internal/domain/ranking"
	"github.com/okian/admit/internal/domain/trend"
	"github.com/okian/admit/pkg/logger"
	"github.com/okian/admit/pkg/metrics"
	"github.com/okian/admit/pkg/tracing"
)

// Pipeline operation names, used for spans and metrics.
const (
	OpPredictProbability    = "predict_probability"
	OpRecommendFields       = "recommend_fields"
	OpRecommendInstitutions = "recommend_institutions"
)

// ProbabilityRequest asks for the admission chance at one institution and
// field with a known composite score.
type ProbabilityRequest struct {
	Institution string  `json:"institution" validate:"required"`
	Field       string  `json:"field" validate:"required"`
	Combination string  `json:"combination,omitempty"`
	Score       float64 `json:"score" validate:"gte=0"`
}

// RecommendationRequest asks for the top fields for a profile.
type RecommendationRequest struct {
	Profile model.ProfileInput `json:"profile" validate:"required"`
	TopK    int                `json:"top_k,omitempty" validate:"gte=0"`
}

// InstitutionRequest asks for the institution ranking of one field.
type InstitutionRequest struct {
	Profile model.ProfileInput `json:"profile" validate:"required"`
	Field   string             `json:"field" validate:"required"`
	Limit   int                `json:"limit,omitempty" validate:"gte=0"`
}

// PredictProbability resolves the institution and field, estimates the
// expected cutoff from history and asks the admission oracle for a
// probability.
func (s *Service) PredictProbability(ctx context.Context, req ProbabilityRequest) (res model.Prediction, err error) {
	ctx, span, done := s.begin(ctx, OpPredictProbability)
	defer func() { done(err) }()

	if err = s.ready(); err != nil {
		return res, err
	}
	if err = s.validateScore(req.Score); err != nil {
		return res, err
	}
	if strings.TrimSpace(req.Institution) == "" || strings.TrimSpace(req.Field) == "" {
		return res, validationf("institution and field are required")
	}
	if s.admissionErr != nil {
		return res, fmt.Errorf("%w: %w", ErrModelUnavailable, s.admissionErr)
	}

	rctx, rspan := step(ctx, "resolve")
	inst, err := s.resolveInstitution(rctx, req.Institution)
	if err == nil {
		var field model.Field
		field, err = s.resolveField(rctx, req.Field)
		res.FieldID, res.FieldName = field.ID, field.Name
	}
	endStep(rspan, err)
	if err != nil {
		return res, err
	}
	res.InstitutionID, res.InstitutionName = inst.ID, inst.Name
	span.SetAttributes(
		attribute.String("institution.id", inst.ID),
		attribute.String("field.id", res.FieldID),
	)

	hctx, hspan := step(ctx, "history")
	h, err := s.loadHistory(hctx)
	endStep(hspan, err)
	if err != nil {
		return res, err
	}
	records, quotas := h.forPair(inst.ID, res.FieldID)
	if combo := strings.ToUpper(strings.TrimSpace(req.Combination)); combo != "" {
		records = byCombination(records, combo)
		res.Combination = combo
	}

	fields, err := s.fields.Get(ctx)
	if err != nil {
		return res, err
	}
	field, _ := fields.Get(res.FieldID)

	_, espan := step(ctx, "estimate")
	est := s.estimator.Estimate(trend.Input{
		Records:      records,
		Quotas:       model.SelectQuotas(quotas),
		Field:        field,
		StudentScore: req.Score,
	})
	espan.SetAttributes(attribute.Float64("expected_score", est.ExpectedScore))
	endStep(espan, nil)
	s.noteDefaults(ctx, est, inst.ID, field.ID)

	pctx, pspan := step(ctx, "predict")
	vec := features.BuildAdmission(features.AdmissionInput{
		StudentScore:  req.Score,
		ExpectedScore: est.ExpectedScore,
		AverageScore:  est.AverageScore,
		ScoreTrend:    est.ScoreTrend,
		MarketTrend:   est.MarketTrend,
		QuotaRatio:    est.QuotaRatio(),
		Tier:          inst.Tier,
	})
	p, err := s.predictAdmission(pctx, vec)
	endStep(pspan, err)
	if err != nil {
		return res, err
	}

	diff := trend.Round2(req.Score - est.ExpectedScore)
	band := s.classifier.Classify(diff)
	metrics.RecordSafetyBand(string(band))

	res.Probability = p
	res.ExpectedScore = est.ExpectedScore
	res.ScoreDifference = diff
	res.SafetyBand = band
	res.DefaultsUsed = est.DefaultsUsed
	s.counters.predictions.Add(1)
	return res, nil
}

// RecommendFields ranks the fields for a profile and attaches the suitable
// institutions of each.
func (s *Service) RecommendFields(ctx context.Context, req RecommendationRequest) (out []model.FieldRecommendation, err error) {
	ctx, _, done := s.begin(ctx, OpRecommendFields)
	defer func() { done(err) }()

	if err = s.ready(); err != nil {
		return nil, err
	}
	profile, err := model.NewStudentProfile(req.Profile, s.priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if req.TopK < 0 {
		return nil, validationf("top_k must not be negative")
	}
	topK := req.TopK
	if topK == 0 {
		topK = s.topK
	}
	if s.fieldErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, s.fieldErr)
	}

	pctx, pspan := step(ctx, "predict")
	outputs, err := s.predictFields(pctx, s.builder.Build(profile))
	endStep(pspan, err)
	if err != nil {
		return nil, err
	}

	fields, err := s.fields.Get(ctx)
	if err != nil {
		return nil, err
	}
	rctx, rspan := step(ctx, "rank")
	ranked, err := ranking.RankFields(rctx, outputs, s.fieldOracle.Labels(), s.fieldLookup(fields), topK,
		ranking.WithGamma(s.gamma),
		ranking.WithNameKey(s.fieldRes.Normalize),
	)
	if err != nil {
		endStep(rspan, err)
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	h, err := s.loadHistory(rctx)
	if err != nil {
		endStep(rspan, err)
		return nil, err
	}
	insts, err := s.institutions.Get(rctx)
	if err != nil {
		endStep(rspan, err)
		return nil, err
	}

	out = make([]model.FieldRecommendation, 0, len(ranked))
	for _, rf := range ranked {
		scored := s.ranker.Rank(profile, h.groups(rf.Field, insts), s.combos, s.suitable)
		out = append(out, model.FieldRecommendation{
			FieldID:              rf.Field.ID,
			FieldName:            rf.Field.Name,
			Category:             rf.Field.Category,
			Confidence:           rf.Confidence,
			DisplayPercent:       trend.Round2(rf.DisplayPercent),
			MatchingInterests:    rf.Field.MatchingInterests(profile.Interests),
			SuitableInstitutions: s.recommendations(rctx, scored),
		})
	}
	endStep(rspan, nil)

	s.counters.recommendations.Add(1)
	return out, nil
}

// RecommendInstitutions ranks every institution offering the field by
// safety band and score difference.
func (s *Service) RecommendInstitutions(ctx context.Context, req InstitutionRequest) (out []model.Recommendation, err error) {
	ctx, _, done := s.begin(ctx, OpRecommendInstitutions)
	defer func() { done(err) }()

	if err = s.ready(); err != nil {
		return nil, err
	}
	profile, err := model.NewStudentProfile(req.Profile, s.priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if req.Limit < 0 {
		return nil, validationf("limit must not be negative")
	}

	rctx, rspan := step(ctx, "resolve")
	field, err := s.resolveField(rctx, req.Field)
	endStep(rspan, err)
	if err != nil {
		return nil, err
	}

	kctx, kspan := step(ctx, "rank")
	defer func() { endStep(kspan, err) }()
	h, err := s.loadHistory(kctx)
	if err != nil {
		return nil, err
	}
	insts, err := s.institutions.Get(kctx)
	if err != nil {
		return nil, err
	}
	scored := s.ranker.Rank(profile, h.groups(field, insts), s.combos, req.Limit)

	s.counters.recommendations.Add(1)
	return s.recommendations(kctx, scored), nil
}

// begin opens the pipeline span. The returned func closes it and records the
// outcome.
func (s *Service) begin(ctx context.Context, op string) (context.Context, trace.Span, func(error)) {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, "service."+op)
	return ctx, span, func(err error) {
		metrics.RecordPipelineLatency(op, float64(time.Since(start).Microseconds())/1000)
		if err != nil {
			s.counters.failures.Add(1)
			span.SetAttributes(attribute.String("error.kind", Kind(err)))
		}
		endStep(span, err)
	}
}

func step(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracing.Tracer().Start(ctx, "service.step."+name)
}

func endStep(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) validateScore(score float64) error {
	maxScore := 3*model.MaxScore + s.priority.Cap
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > maxScore {
		return validationf("score must be within [0,%v], got %v", maxScore, score)
	}
	return nil
}

func (s *Service) predictAdmission(ctx context.Context, vec []float64) (float64, error) {
	start := time.Now()
	p, err := s.admissionOracle.Predict(ctx, vec)
	metrics.RecordOracleLatency(s.admissionVariant, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordOracleError(s.admissionVariant)
		if errors.Is(err, oracle.ErrDimensionMismatch) {
			return 0, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		return 0, fmt.Errorf("admission oracle: %w", err)
	}
	return clamp01(p), nil
}

func (s *Service) predictFields(ctx context.Context, vec []float64) ([]float64, error) {
	start := time.Now()
	out, err := s.fieldOracle.PredictAll(ctx, vec)
	metrics.RecordOracleLatency(s.fieldVariant, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordOracleError(s.fieldVariant)
		if errors.Is(err, oracle.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		return nil, fmt.Errorf("field oracle: %w", err)
	}
	for i, p := range out {
		out[i] = clamp01(p)
	}
	return out, nil
}

// fieldLookup maps oracle labels to fields. Labels are field ids; a label that
// is not an id is resolved as a name.
func (s *Service) fieldLookup(snap *cache.Snapshot[model.Field]) ranking.FieldLookup {
	return func(label string) (model.Field, bool) {
		if f, ok := snap.Get(label); ok {
			return f, true
		}
		if id, ok := snap.Lookup(s.fieldRes.Normalize(label)); ok {
			return snap.Get(id)
		}
		return model.Field{}, false
	}
}

func (s *Service) recommendations(ctx context.Context, scored []ranking.Scored) []model.Recommendation {
	out := make([]model.Recommendation, 0, len(scored))
	for _, sc := range scored {
		metrics.RecordSafetyBand(string(sc.Recommendation.SafetyBand))
		s.noteDefaults(ctx, sc.Estimate, sc.Recommendation.InstitutionID, sc.Recommendation.FieldName)
		out = append(out, sc.Recommendation)
	}
	return out
}

func (s *Service) noteDefaults(ctx context.Context, est trend.Estimate, institution, field string) {
	if len(est.DefaultsUsed) == 0 {
		return
	}
	for _, note := range est.DefaultsUsed {
		metrics.RecordFallbackDefault(note)
	}
	s.logger.Debug(ctx, "fallback defaults used",
		logger.String("institution", institution),
		logger.String("field", field),
		logger.String("notes", strings.Join(est.DefaultsUsed, ",")),
	)
}

func byCombination(records []model.BenchmarkRecord, code string) []model.BenchmarkRecord {
	out := make([]model.BenchmarkRecord, 0, len(records))
	for _, r := range records {
		if r.Combination == code {
			out = append(out, r)
		}
	}
	return out
}

func clamp01(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// sortedKeys returns map keys in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
