// Package service provides the admission advisor that backs the HTTP API and
// the operator CLI.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/admit/internal/adapters/cache"
	"github.com/okian/admit/internal/adapters/catalog"
	"github.com/okian/admit/internal/domain/features"
	"github.com/okian/admit/internal/domain/model"
	"github.com/okian/admit/internal/domain/oracle"
	"github.com/okian/admit/internal/domain/ranking"
	"github.com/okian/admit/internal/domain/resolve"
	"github.com/okian/admit/internal/domain/safety"
	"github.com/okian/admit/internal/domain/trend"
	"github.com/okian/admit/pkg/logger"
)

// Oracle variants selectable by configuration.
const (
	FieldModelBundle        = "bundle"
	FieldModelPrior         = "prior"
	AdmissionModelBundle    = "bundle"
	AdmissionModelHeuristic = "heuristic"
	variantInjected         = "injected"
)

// Defaults for settings the domain packages do not own.
const (
	DefaultSuitable         = 5
	DefaultBatchMaxItems    = 100
	DefaultBatchConcurrency = 8
)

// Service answers probability and recommendation queries against a catalog
// store. Start must be called before any query.
type Service struct {
	mu sync.RWMutex

	// Core components
	store        catalog.Store
	repo         *catalog.Repository
	fields       *cache.Cache[model.Field]
	institutions *cache.Cache[model.Institution]
	fieldRes     *resolve.Resolver
	instRes      *resolve.Resolver
	estimator    *trend.Estimator
	classifier   *safety.Classifier
	ranker       *ranking.InstitutionRanker
	builder      *features.Builder
	combos       map[string]model.SubjectCombination

	resolvedHistory atomic.Pointer[historySnapshot]

	fieldOracle      oracle.MultiOracle
	admissionOracle  oracle.Oracle
	fieldVariant     string
	admissionVariant string
	fieldErr         error
	admissionErr     error

	// Configuration
	fieldModel         string
	fieldModelPath     string
	admissionModel     string
	admissionModelPath string
	strictModels       bool
	cacheTTL           time.Duration
	now                func() time.Time
	topK               int
	maxInstitutions    int
	suitable           int
	gamma              float64
	thresholds         safety.Thresholds
	recency            bool
	resolverThreshold  float64
	minTokenLen        int
	qualifiers         []string
	priority           model.PriorityTable
	batchConcurrency   int
	batchMaxItems      int

	// State
	started   bool
	startedAt time.Time
	counters  counters

	// Logging
	logger logger.Logger
}

type counters struct {
	predictions     atomic.Int64
	recommendations atomic.Int64
	failures        atomic.Int64
	batchItems      atomic.Int64
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the catalog store. The service closes it on Stop.
func WithStore(st catalog.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFieldModel selects the field oracle: a bundle at path, or the catalog
// prior.
func WithFieldModel(kind, path string) Option {
	return func(s *Service) {
		if kind != "" {
			s.fieldModel = kind
		}
		s.fieldModelPath = path
	}
}

// WithAdmissionModel selects the admission oracle: a bundle at path, or the
// heuristic.
func WithAdmissionModel(kind, path string) Option {
	return func(s *Service) {
		if kind != "" {
			s.admissionModel = kind
		}
		s.admissionModelPath = path
	}
}

// WithFieldOracle injects a field oracle, bypassing bundle loading.
func WithFieldOracle(o oracle.MultiOracle) Option {
	return func(s *Service) {
		s.fieldOracle = o
	}
}

// WithAdmissionOracle injects an admission oracle, bypassing bundle loading.
func WithAdmissionOracle(o oracle.Oracle) Option {
	return func(s *Service) {
		s.admissionOracle = o
	}
}

// WithStrictModels makes Start fail when an oracle cannot be loaded instead of
// running degraded.
func WithStrictModels(strict bool) Option {
	return func(s *Service) {
		s.strictModels = strict
	}
}

// WithCacheTTL sets the catalog snapshot freshness window.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithClock injects the time source used by the catalog caches.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTopK sets the default number of recommended fields.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithMaxInstitutions caps institution ranking.
func WithMaxInstitutions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxInstitutions = n
		}
	}
}

// WithSuitableInstitutions sets how many institutions each recommended field
// carries.
func WithSuitableInstitutions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.suitable = n
		}
	}
}

// WithSharpenGamma sets the display sharpening exponent.
func WithSharpenGamma(g float64) Option {
	return func(s *Service) {
		if g > 0 {
			s.gamma = g
		}
	}
}

// WithSafetyThresholds sets the safety band boundaries.
func WithSafetyThresholds(t safety.Thresholds) Option {
	return func(s *Service) {
		s.thresholds = t
	}
}

// WithRecencyWeighting enables the recency-weighted historical mean.
func WithRecencyWeighting(enabled bool) Option {
	return func(s *Service) {
		s.recency = enabled
	}
}

// WithResolver tunes the token fallback of both resolvers.
func WithResolver(threshold float64, minTokenLen int) Option {
	return func(s *Service) {
		s.resolverThreshold = threshold
		s.minTokenLen = minTokenLen
	}
}

// WithQualifiers replaces the qualifier phrases stripped before matching.
func WithQualifiers(q []string) Option {
	return func(s *Service) {
		s.qualifiers = q
	}
}

// WithPriorityTable replaces the priority bonus tables.
func WithPriorityTable(t model.PriorityTable) Option {
	return func(s *Service) {
		s.priority = t
	}
}

// WithBatchLimits sets batch fan-out and the maximum batch size.
func WithBatchLimits(concurrency, maxItems int) Option {
	return func(s *Service) {
		if concurrency > 0 {
			s.batchConcurrency = concurrency
		}
		if maxItems > 0 {
			s.batchMaxItems = maxItems
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		fieldModel:        FieldModelPrior,
		admissionModel:    AdmissionModelHeuristic,
		cacheTTL:          cache.DefaultTTL,
		now:               time.Now,
		topK:              ranking.DefaultTopK,
		maxInstitutions:   ranking.DefaultMaxInstitutions,
		suitable:          DefaultSuitable,
		gamma:             ranking.DefaultGamma,
		thresholds:        safety.DefaultThresholds,
		resolverThreshold: resolve.DefaultThreshold,
		minTokenLen:       resolve.DefaultMinTokenLen,
		priority:          model.DefaultPriorityTable(),
		batchConcurrency:  DefaultBatchConcurrency,
		batchMaxItems:     DefaultBatchMaxItems,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start warms the catalog caches, fixes the feature layout and loads the
// oracles. A missing or inconsistent bundle leaves the service running
// degraded unless strict models are enabled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("advisor")
	}
	if s.store == nil {
		return ErrNoStore
	}

	s.logger.Info(ctx, "starting advisor service...")

	classifier, err := safety.New(s.thresholds)
	if err != nil {
		return err
	}
	s.classifier = classifier
	s.estimator = trend.New(trend.WithRecencyWeighting(s.recency))
	s.ranker = ranking.NewInstitutionRanker(
		ranking.WithEstimator(s.estimator),
		ranking.WithClassifier(s.classifier),
		ranking.WithMaxInstitutions(s.maxInstitutions),
	)

	ropts := []resolve.Option{
		resolve.WithThreshold(s.resolverThreshold),
		resolve.WithMinTokenLen(s.minTokenLen),
		resolve.WithQualifiers(s.qualifiers),
	}
	s.fieldRes = resolve.New(ropts...)
	s.instRes = resolve.New(append(ropts, resolve.WithCodeMatch())...)

	s.repo = catalog.NewRepository(s.store)
	if err := s.buildCaches(ctx); err != nil {
		return err
	}

	combos, err := s.repo.Combinations(ctx)
	if err != nil {
		return fmt.Errorf("load combinations: %w", err)
	}
	interests, err := s.repo.Interests(ctx)
	if err != nil {
		return fmt.Errorf("load interests: %w", err)
	}
	codes := make([]string, 0, len(combos))
	for code := range combos {
		codes = append(codes, code)
	}
	s.combos = combos
	s.builder = features.NewBuilder(interests, codes)

	if err := s.loadModels(ctx); err != nil {
		return err
	}

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "advisor service started",
		logger.Int("featureDimension", s.builder.Dimension()),
		logger.Int("combinations", len(combos)),
		logger.Int("interests", len(interests)),
		logger.String("fieldModel", s.fieldVariant),
		logger.String("admissionModel", s.admissionVariant),
	)
	return nil
}

func (s *Service) buildCaches(ctx context.Context) error {
	log := s.logger.Named("cache")
	fields, err := cache.New[model.Field]("fields", s.repo.Fields,
		func(f model.Field) resolve.Candidate {
			return resolve.Candidate{ID: f.ID, Name: f.Name}
		},
		cache.WithTTL(s.cacheTTL), cache.WithClock(s.now),
		cache.WithResolver(s.fieldRes), cache.WithLogger(log),
	)
	if err != nil {
		return err
	}
	institutions, err := cache.New[model.Institution]("institutions", s.repo.Institutions,
		func(i model.Institution) resolve.Candidate {
			return resolve.Candidate{ID: i.ID, Name: i.Name, Codes: i.Codes()}
		},
		cache.WithTTL(s.cacheTTL), cache.WithClock(s.now),
		cache.WithResolver(s.instRes), cache.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if _, err := fields.Refresh(ctx); err != nil {
		return err
	}
	if _, err := institutions.Refresh(ctx); err != nil {
		return err
	}
	s.fields, s.institutions = fields, institutions
	return nil
}

// loadModels resolves both oracles. Failures are kept and reported per
// request as ErrModelUnavailable.
func (s *Service) loadModels(ctx context.Context) error {
	s.fieldOracle, s.fieldVariant, s.fieldErr = s.loadFieldOracle(ctx)
	if s.fieldErr != nil {
		s.logger.Error(ctx, "field oracle unavailable",
			logger.String("variant", s.fieldModel),
			logger.String("path", s.fieldModelPath),
			logger.Error(s.fieldErr))
	}
	s.admissionOracle, s.admissionVariant, s.admissionErr = s.loadAdmissionOracle()
	if s.admissionErr != nil {
		s.logger.Error(ctx, "admission oracle unavailable",
			logger.String("variant", s.admissionModel),
			logger.String("path", s.admissionModelPath),
			logger.Error(s.admissionErr))
	}
	if s.strictModels {
		if s.fieldErr != nil {
			return fmt.Errorf("%w: %w", ErrModelUnavailable, s.fieldErr)
		}
		if s.admissionErr != nil {
			return fmt.Errorf("%w: %w", ErrModelUnavailable, s.admissionErr)
		}
	}
	return nil
}

func (s *Service) loadFieldOracle(ctx context.Context) (oracle.MultiOracle, string, error) {
	dim := s.builder.Dimension()
	if s.fieldOracle != nil {
		if d := s.fieldOracle.Dimension(); d != 0 && d != dim {
			return nil, variantInjected, fmt.Errorf("%w: oracle expects %d features, builder produces %d",
				oracle.ErrDimensionMismatch, d, dim)
		}
		return s.fieldOracle, variantInjected, nil
	}

	switch s.fieldModel {
	case FieldModelPrior:
		snap, err := s.fields.Get(ctx)
		if err != nil {
			return nil, FieldModelPrior, err
		}
		b := PriorFieldBundle(s.builder, snap.Items)
		n, err := oracle.NewNetwork(b, dim)
		return n, FieldModelPrior, err
	case FieldModelBundle:
		n, err := oracle.Load(s.fieldModelPath, dim)
		if err != nil {
			return nil, FieldModelBundle, err
		}
		if n.Kind() != "" && n.Kind() != oracle.KindField {
			return nil, FieldModelBundle, fmt.Errorf("%w: bundle kind %q, want %q", oracle.ErrInvalidBundle, n.Kind(), oracle.KindField)
		}
		if !sameNames(n.FeatureNames(), s.builder.Names()) {
			s.logger.Warn(ctx, "field bundle feature names differ from catalog layout",
				logger.String("path", s.fieldModelPath))
		}
		s.logger.Info(ctx, "field bundle loaded",
			logger.String("path", s.fieldModelPath),
			logger.Int("features", n.Dimension()),
			logger.Int("outputs", len(n.Labels())))
		return n, FieldModelBundle, nil
	default:
		return nil, s.fieldModel, fmt.Errorf("unknown field model %q", s.fieldModel)
	}
}

func (s *Service) loadAdmissionOracle() (oracle.Oracle, string, error) {
	if s.admissionOracle != nil {
		if d := s.admissionOracle.Dimension(); d != 0 && d != len(features.AdmissionNames) {
			return nil, variantInjected, fmt.Errorf("%w: oracle expects %d features, admission layout has %d",
				oracle.ErrDimensionMismatch, d, len(features.AdmissionNames))
		}
		return s.admissionOracle, variantInjected, nil
	}
	switch s.admissionModel {
	case AdmissionModelHeuristic:
		return oracle.NewHeuristic(0), AdmissionModelHeuristic, nil
	case AdmissionModelBundle:
		n, err := oracle.Load(s.admissionModelPath, len(features.AdmissionNames))
		if err != nil {
			return nil, AdmissionModelBundle, err
		}
		s.logger.Info(context.Background(), "admission bundle loaded",
			logger.String("path", s.admissionModelPath),
			logger.Int("features", n.Dimension()))
		return n, AdmissionModelBundle, nil
	default:
		return nil, s.admissionModel, fmt.Errorf("unknown admission model %q", s.admissionModel)
	}
}

// PriorFieldBundle builds the untrained field bundle for the builder layout,
// one output per field id in sorted order.
func PriorFieldBundle(b *features.Builder, fields map[string]model.Field) *oracle.Bundle {
	ids := make([]string, 0, len(fields))
	tags := make(map[string][]string, len(fields))
	for id, f := range fields {
		ids = append(ids, id)
		tags[id] = f.Interests
	}
	sort.Strings(ids)
	return oracle.PriorBundle(b.Names(), tags, ids)
}

// CatalogLayout loads the feature layout and fields of the catalog in st, the
// same way Start does.
func CatalogLayout(ctx context.Context, st catalog.Store) (*features.Builder, map[string]model.Field, error) {
	repo := catalog.NewRepository(st)
	fields, err := repo.Fields(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load fields: %w", err)
	}
	combos, err := repo.Combinations(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load combinations: %w", err)
	}
	interests, err := repo.Interests(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load interests: %w", err)
	}
	byID := make(map[string]model.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}
	return features.NewBuilder(interests, sortedKeys(combos)), byID, nil
}

// CatalogPriorBundle builds the prior field bundle for the catalog in st.
func CatalogPriorBundle(ctx context.Context, st catalog.Store) (*oracle.Bundle, error) {
	b, fields, err := CatalogLayout(ctx, st)
	if err != nil {
		return nil, err
	}
	return PriorFieldBundle(b, fields), nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Stop closes the catalog store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping advisor service...")
	if s.store != nil {
		if err := s.store.Close(context.Background()); err != nil {
			s.logger.Warn(context.Background(), "closing catalog store", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(context.Background(), "advisor service stopped")
}

// ready fails until Start has succeeded.
func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Health reports oracle availability.
type Health struct {
	Status         string `json:"status"`
	FieldModel     string `json:"field_model"`
	AdmissionModel string `json:"admission_model"`
	FieldError     string `json:"field_error,omitempty"`
	AdmissionError string `json:"admission_error,omitempty"`
}

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusStopped  = "stopped"
)

// Health returns the service status. It is degraded when either oracle is
// unavailable.
func (s *Service) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := Health{Status: StatusOK, FieldModel: s.fieldVariant, AdmissionModel: s.admissionVariant}
	if !s.started {
		h.Status = StatusStopped
		return h
	}
	if s.fieldErr != nil {
		h.Status = StatusDegraded
		h.FieldError = s.fieldErr.Error()
	}
	if s.admissionErr != nil {
		h.Status = StatusDegraded
		h.AdmissionError = s.admissionErr.Error()
	}
	return h
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"predictions":     s.counters.predictions.Load(),
		"recommendations": s.counters.recommendations.Load(),
		"failures":        s.counters.failures.Load(),
		"batchItems":      s.counters.batchItems.Load(),
		"cacheTTLSeconds": s.cacheTTL.Seconds(),
	}

	if s.started {
		stats["uptimeSeconds"] = s.now().Sub(s.startedAt).Seconds()
		stats["catalogs"] = map[string]interface{}{
			s.fields.Name():       cacheStats(s.fields.Age(), s.fields.IsStale()),
			s.institutions.Name(): cacheStats(s.institutions.Age(), s.institutions.IsStale()),
		}
		stats["featureDimension"] = s.builder.Dimension()
		stats["fieldModel"] = s.fieldVariant
		stats["admissionModel"] = s.admissionVariant
		if s.fieldOracle != nil {
			stats["fieldOutputs"] = len(s.fieldOracle.Labels())
		}
	}

	return stats
}

func cacheStats(age time.Duration, stale bool) map[string]interface{} {
	return map[string]interface{}{
		"ageSeconds": age.Seconds(),
		"stale":      stale,
	}
}
