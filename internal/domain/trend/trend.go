// Package trend turns multi-year cutoff history into a single expected score.
package trend

import (
	"math"
	"sort"

	model "github.com/okian/admit/internal/domain/model"
)

// Formula weights and fallbacks.
const (
	marketWeight      = 0.5
	quotaWeight       = 1.0
	trendWeight       = 0.7
	fallbackGap       = 1.0
	minRecencyYears   = 3
	minTrendYears     = 2
	roundingPrecision = 100
)

// Notes explaining which documented defaults replaced missing data.
const (
	NoteNoHistory          = "no_history"
	NoteNoQuota            = "no_quota"
	NoteNoMarketTrend      = "no_market_trend"
	NoteZeroReferenceQuota = "zero_reference_quota"
)

// Round2 rounds half away from zero to two decimals.
func Round2(x float64) float64 {
	return math.Round(x*roundingPrecision) / roundingPrecision
}

// ExpectedScore is the pure five-scalar formula. A zero or negative reference
// quota is treated as 1.
func ExpectedScore(average, marketTrend, quota, referenceQuota, scoreTrend float64) float64 {
	if referenceQuota <= 0 || math.IsNaN(referenceQuota) {
		referenceQuota = 1
	}
	return Round2(average + marketWeight*marketTrend - quotaWeight*(quota/referenceQuota-1) + trendWeight*scoreTrend)
}

// Point is one (year, cutoff) observation.
type Point struct {
	Year  int
	Score float64
}

// Points extracts observations from benchmark records.
func Points(records []model.BenchmarkRecord) []Point {
	out := make([]Point, 0, len(records))
	for _, r := range records {
		out = append(out, Point{Year: r.Year, Score: r.Score})
	}
	return out
}

// Mean is the plain mean of all scores.
func Mean(points []Point) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range points {
		sum += p.Score
	}
	return sum / float64(len(points))
}

// RecencyMean weights each year's mean by its rank among ascending distinct
// years, normalised to sum to 1. With fewer than three distinct years it is
// the plain mean.
func RecencyMean(points []Point) float64 {
	byYear := make(map[int][]float64)
	for _, p := range points {
		byYear[p.Year] = append(byYear[p.Year], p.Score)
	}
	if len(byYear) < minRecencyYears {
		return Mean(points)
	}
	years := distinctYears(points)
	total := float64(len(years) * (len(years) + 1) / 2)
	avg := 0.0
	for i, y := range years {
		s := 0.0
		for _, v := range byYear[y] {
			s += v
		}
		avg += (float64(i+1) / total) * (s / float64(len(byYear[y])))
	}
	return avg
}

// Slope is the least-squares slope of score over year, rounded to two
// decimals. It is 0 with fewer than two distinct years.
func Slope(points []Point) float64 {
	if len(distinctYears(points)) < minTrendYears {
		return 0
	}
	n := float64(len(points))
	var meanX, meanY float64
	for _, p := range points {
		meanX += float64(p.Year)
		meanY += p.Score
	}
	meanX /= n
	meanY /= n
	var num, den float64
	for _, p := range points {
		dx := float64(p.Year) - meanX
		num += dx * (p.Score - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return Round2(num / den)
}

func distinctYears(points []Point) []int {
	seen := make(map[int]struct{}, len(points))
	years := make([]int, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p.Year]; ok {
			continue
		}
		seen[p.Year] = struct{}{}
		years = append(years, p.Year)
	}
	sort.Ints(years)
	return years
}

// Input gathers what the estimator needs for one (institution, field) key.
type Input struct {
	Records      []model.BenchmarkRecord
	Quotas       model.QuotaPair
	Field        model.Field
	StudentScore float64
}

// Estimate is an expected cutoff with the components that produced it.
type Estimate struct {
	AverageScore   float64  `json:"average_score"`
	ScoreTrend     float64  `json:"score_trend"`
	MarketTrend    float64  `json:"market_trend"`
	Quota          float64  `json:"quota"`
	ReferenceQuota float64  `json:"reference_quota"`
	ExpectedScore  float64  `json:"expected_score"`
	Years          []int    `json:"years"`
	DefaultsUsed   []string `json:"defaults_used,omitempty"`
}

// QuotaRatio is quota over reference quota as used by the formula.
func (e Estimate) QuotaRatio() float64 {
	ref := e.ReferenceQuota
	if ref <= 0 {
		ref = 1
	}
	return e.Quota / ref
}

// Estimator computes expected scores. The zero value uses the plain mean.
type Estimator struct {
	recency bool
}

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithRecencyWeighting switches to RecencyMean when enough years exist.
func WithRecencyWeighting(enabled bool) Option {
	return func(e *Estimator) {
		e.recency = enabled
	}
}

// New creates an estimator.
func New(opts ...Option) *Estimator {
	e := &Estimator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate applies the documented fallbacks for missing history, quota and
// market trend, and never fails.
func (e *Estimator) Estimate(in Input) Estimate {
	est := Estimate{Years: []int{}}
	points := Points(in.Records)

	if len(points) == 0 {
		est.AverageScore = in.StudentScore - fallbackGap
		est.DefaultsUsed = append(est.DefaultsUsed, NoteNoHistory)
	} else {
		if e.recency {
			est.AverageScore = RecencyMean(points)
		} else {
			est.AverageScore = Mean(points)
		}
		est.ScoreTrend = Slope(points)
		est.Years = distinctYears(points)
	}

	mt, ok := in.Field.LatestMarketTrend()
	est.MarketTrend = mt
	if !ok {
		est.DefaultsUsed = append(est.DefaultsUsed, NoteNoMarketTrend)
	}

	est.Quota, est.ReferenceQuota = in.Quotas.Current, in.Quotas.Reference
	if !in.Quotas.Found {
		est.Quota, est.ReferenceQuota = model.DefaultQuota, model.DefaultQuota
		est.DefaultsUsed = append(est.DefaultsUsed, NoteNoQuota)
	}
	if est.ReferenceQuota <= 0 {
		est.ReferenceQuota = 1
		est.DefaultsUsed = append(est.DefaultsUsed, NoteZeroReferenceQuota)
	}

	est.ExpectedScore = ExpectedScore(est.AverageScore, est.MarketTrend, est.Quota, est.ReferenceQuota, est.ScoreTrend)
	return est
}
