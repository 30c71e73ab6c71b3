package catalog

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/go-viper/mapstructure/v2"

	model "github.com/okian/admit/internal/domain/model"
)

// Repository decodes catalog documents into domain records.
type Repository struct {
	store Store
}

// NewRepository wraps a store.
func NewRepository(s Store) *Repository {
	return &Repository{store: s}
}

// Store returns the underlying store.
func (r *Repository) Store() Store { return r.store }

type fieldDoc struct {
	ID          string   `mapstructure:"id"`
	Name        string   `mapstructure:"name"`
	Category    string   `mapstructure:"category"`
	Interests   []string `mapstructure:"interests"`
	MarketTrend any      `mapstructure:"market_trend"`
}

type institutionDoc struct {
	ID         string   `mapstructure:"id"`
	Code       string   `mapstructure:"code"`
	Name       string   `mapstructure:"name"`
	Tier       string   `mapstructure:"tier"`
	AliasCodes []string `mapstructure:"alias_codes"`
}

type combinationDoc struct {
	Code     string   `mapstructure:"code"`
	Subjects []string `mapstructure:"subjects"`
}

type interestDoc struct {
	Name string `mapstructure:"name"`
}

type benchmarkDoc struct {
	Institution string  `mapstructure:"institution"`
	Field       string  `mapstructure:"field"`
	Combination string  `mapstructure:"combination"`
	Year        any     `mapstructure:"year"`
	Score       float64 `mapstructure:"score"`
}

type quotaDoc struct {
	Institution string  `mapstructure:"institution"`
	Field       string  `mapstructure:"field"`
	Year        any     `mapstructure:"year"`
	Quota       float64 `mapstructure:"quota"`
}

// midpointHook lets numeric targets accept strings, including "low-high"
// ranges which decode to their midpoint.
func midpointHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Float64 {
		return data, nil
	}
	return model.ParseQuota(data)
}

func decode(in Document, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(midpointHook),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(in)); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// Fields returns every field. A field without an id uses its name.
func (r *Repository) Fields(ctx context.Context) ([]model.Field, error) {
	docs, err := r.store.Find(ctx, Fields, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Field, 0, len(docs))
	for _, d := range docs {
		var fd fieldDoc
		if err := decode(d, &fd); err != nil {
			return nil, err
		}
		if strings.TrimSpace(fd.Name) == "" {
			return nil, fmt.Errorf("%w: field without name", ErrDecode)
		}
		trend, err := yearSeries(fd.MarketTrend)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fd.Name, err)
		}
		id := fd.ID
		if id == "" {
			id = fd.Name
		}
		out = append(out, model.Field{
			ID:          id,
			Name:        fd.Name,
			Category:    fd.Category,
			Interests:   model.SortedInterests(fd.Interests),
			MarketTrend: trend,
		})
	}
	return out, nil
}

// Institutions returns every institution. An institution without an id uses
// its code.
func (r *Repository) Institutions(ctx context.Context) ([]model.Institution, error) {
	docs, err := r.store.Find(ctx, Institutions, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Institution, 0, len(docs))
	for _, d := range docs {
		var id institutionDoc
		if err := decode(d, &id); err != nil {
			return nil, err
		}
		if id.Name == "" && id.Code == "" {
			return nil, fmt.Errorf("%w: institution without name or code", ErrDecode)
		}
		inst := model.Institution{
			ID:         id.ID,
			Code:       strings.ToUpper(strings.TrimSpace(id.Code)),
			Name:       id.Name,
			Tier:       model.ParseTier(id.Tier),
			AliasCodes: id.AliasCodes,
		}
		if inst.ID == "" {
			inst.ID = inst.Code
		}
		if inst.ID == "" {
			inst.ID = inst.Name
		}
		out = append(out, inst)
	}
	return out, nil
}

// Combinations returns the subject combinations keyed by code.
func (r *Repository) Combinations(ctx context.Context) (map[string]model.SubjectCombination, error) {
	docs, err := r.store.Find(ctx, SubjectCombinations, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.SubjectCombination, len(docs))
	for _, d := range docs {
		var cd combinationDoc
		if err := decode(d, &cd); err != nil {
			return nil, err
		}
		c, err := model.NewSubjectCombination(cd.Code, cd.Subjects)
		if err != nil {
			return nil, err
		}
		out[c.Code] = c
	}
	return out, nil
}

// Interests returns the interest catalog. When the collection is empty the
// tags carried by fields are used.
func (r *Repository) Interests(ctx context.Context) ([]string, error) {
	docs, err := r.store.Find(ctx, Interests, nil)
	if err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(docs))
	for _, d := range docs {
		var id interestDoc
		if err := decode(d, &id); err != nil {
			return nil, err
		}
		tags = append(tags, id.Name)
	}
	if len(tags) == 0 {
		fields, err := r.Fields(ctx)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			tags = append(tags, f.Interests...)
		}
	}
	return model.SortedInterests(tags), nil
}

// Benchmarks returns cutoff records matching f.
func (r *Repository) Benchmarks(ctx context.Context, f Filter) ([]model.BenchmarkRecord, error) {
	docs, err := r.store.Find(ctx, BenchmarkRecords, f)
	if err != nil {
		return nil, err
	}
	out := make([]model.BenchmarkRecord, 0, len(docs))
	for _, d := range docs {
		var bd benchmarkDoc
		if err := decode(d, &bd); err != nil {
			return nil, err
		}
		year, err := toInt(bd.Year)
		if err != nil {
			return nil, fmt.Errorf("benchmark year: %w", err)
		}
		out = append(out, model.BenchmarkRecord{
			InstitutionRef: bd.Institution,
			FieldRef:       bd.Field,
			Combination:    strings.ToUpper(strings.TrimSpace(bd.Combination)),
			Year:           year,
			Score:          bd.Score,
		})
	}
	return out, nil
}

// Quotas returns quota records matching f.
func (r *Repository) Quotas(ctx context.Context, f Filter) ([]model.AdmissionQuota, error) {
	docs, err := r.store.Find(ctx, AdmissionQuotas, f)
	if err != nil {
		return nil, err
	}
	out := make([]model.AdmissionQuota, 0, len(docs))
	for _, d := range docs {
		var qd quotaDoc
		if err := decode(d, &qd); err != nil {
			return nil, err
		}
		year, err := toInt(qd.Year)
		if err != nil {
			return nil, fmt.Errorf("quota year: %w", err)
		}
		out = append(out, model.AdmissionQuota{
			InstitutionRef: qd.Institution,
			FieldRef:       qd.Field,
			Year:           year,
			Quota:          qd.Quota,
		})
	}
	return out, nil
}

// toInt narrows stored numbers to int without silent truncation.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return safecast.Conv[int](n)
	case int64:
		return safecast.Conv[int](n)
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v is not a whole number", ErrDecode, n)
		}
		i, err := safecast.Convert[int](n)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return i, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: unsupported number %T", ErrDecode, v)
	}
}

// yearSeries accepts any map keyed by year.
func yearSeries(v any) (map[int]float64, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("%w: market trend must be a map, got %T", ErrDecode, v)
	}
	raw := make(map[string]float64, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		val, ok := number(iter.Value().Interface())
		if !ok {
			return nil, fmt.Errorf("%w: market trend value %v", ErrDecode, iter.Value().Interface())
		}
		raw[fmt.Sprint(iter.Key().Interface())] = val
	}
	return model.ParseMarketTrend(raw)
}
