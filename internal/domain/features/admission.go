package features

import model "github.com/okian/admit/internal/domain/model"

// maxComposite scales three-subject composite scores into roughly [0,1].
const maxComposite = 30.0

// AdmissionNames is the fixed layout of the single-output admission oracle.
var AdmissionNames = []string{
	"student_score",
	"expected_score",
	"score_difference",
	"average_score",
	"score_trend",
	"market_trend",
	"quota_ratio",
	"tier_high",
	"tier_medium",
	"tier_low",
}

// AdmissionInput collects the scalars for one institution/field query.
type AdmissionInput struct {
	StudentScore  float64
	ExpectedScore float64
	AverageScore  float64
	ScoreTrend    float64
	MarketTrend   float64
	QuotaRatio    float64
	Tier          model.Tier
}

// BuildAdmission produces the raw admission vector in AdmissionNames order.
func BuildAdmission(in AdmissionInput) []float64 {
	v := []float64{
		in.StudentScore / maxComposite,
		in.ExpectedScore / maxComposite,
		(in.StudentScore - in.ExpectedScore) / maxComposite,
		in.AverageScore / maxComposite,
		in.ScoreTrend,
		in.MarketTrend,
		in.QuotaRatio,
		0, 0, 0,
	}
	switch in.Tier {
	case model.TierHigh:
		v[7] = 1
	case model.TierLow:
		v[9] = 1
	default:
		v[8] = 1
	}
	return v
}
