package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// BenchmarkRecord is one historical cutoff score. The institution and field
// references are free text as stored; they are resolved per request.
type BenchmarkRecord struct {
	InstitutionRef string
	FieldRef       string
	Combination    string
	Year           int
	Score          float64

	InstitutionID string
	FieldID       string
}

// AdmissionQuota is the planned seat count for an institution and field in a
// given year.
type AdmissionQuota struct {
	InstitutionRef string
	FieldRef       string
	Year           int
	Quota          float64

	InstitutionID string
	FieldID       string
}

// DefaultQuota is used for both quota and reference quota when none is stored.
const DefaultQuota = 100.0

// ParseQuota accepts an integer, a float, a numeric string or a "low-high"
// range, which is averaged to its midpoint.
func ParseQuota(v any) (float64, error) {
	switch q := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: quota is empty", ErrInvalidRecord)
	case int:
		return float64(q), nil
	case int32:
		return float64(q), nil
	case int64:
		return float64(q), nil
	case float32:
		return float64(q), nil
	case float64:
		if math.IsNaN(q) {
			return 0, fmt.Errorf("%w: quota is NaN", ErrInvalidRecord)
		}
		return q, nil
	case string:
		return parseQuotaString(q)
	default:
		return 0, fmt.Errorf("%w: unsupported quota type %T", ErrInvalidRecord, v)
	}
}

func parseQuotaString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: quota is empty", ErrInvalidRecord)
	}
	// A leading minus is a sign, not a range separator.
	if idx := strings.Index(s[1:], "-"); idx >= 0 {
		lo, errLo := strconv.ParseFloat(strings.TrimSpace(s[:idx+1]), 64)
		hi, errHi := strconv.ParseFloat(strings.TrimSpace(s[idx+2:]), 64)
		if errLo != nil || errHi != nil {
			return 0, fmt.Errorf("%w: quota range %q", ErrInvalidRecord, s)
		}
		return (lo + hi) / 2, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: quota %q", ErrInvalidRecord, s)
	}
	return f, nil
}

// QuotaPair is the current and reference quota used by the expected-score
// formula.
type QuotaPair struct {
	Current   float64
	Reference float64
	Found     bool
}

// SelectQuotas picks the latest year's quota as current and the previous
// year's as reference. A single year serves as both. Without quotas both
// default to DefaultQuota and Found is false.
func SelectQuotas(quotas []AdmissionQuota) QuotaPair {
	if len(quotas) == 0 {
		return QuotaPair{Current: DefaultQuota, Reference: DefaultQuota}
	}
	byYear := make(map[int]float64, len(quotas))
	for _, q := range quotas {
		byYear[q.Year] = q.Quota
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	pair := QuotaPair{Current: byYear[years[0]], Reference: byYear[years[0]], Found: true}
	if len(years) > 1 {
		pair.Reference = byYear[years[1]]
	}
	return pair
}
