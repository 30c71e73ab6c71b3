package model

// SafetyBand is a coarse label for how comfortably a student clears a cutoff.
type SafetyBand string

const (
	BandSafe     SafetyBand = "safe"
	BandConsider SafetyBand = "consider"
	BandRisky    SafetyBand = "risky"
)

// Bands lists the safety bands in merge order.
var Bands = [...]SafetyBand{BandSafe, BandConsider, BandRisky}

// Rank returns the merge position of the band.
func (b SafetyBand) Rank() int {
	for i, band := range Bands {
		if band == b {
			return i
		}
	}
	return len(Bands)
}

// Recommendation is one institution suggestion for a resolved field.
type Recommendation struct {
	InstitutionID   string     `json:"institution_id"`
	InstitutionCode string     `json:"institution_code"`
	InstitutionName string     `json:"institution_name"`
	FieldName       string     `json:"field_name"`
	Combination     string     `json:"combination"`
	StudentScore    float64    `json:"student_score"`
	ExpectedScore   float64    `json:"expected_score"`
	ScoreDifference float64    `json:"score_difference"`
	SafetyBand      SafetyBand `json:"safety_band"`
}

// FieldRecommendation is one ranked field of study.
type FieldRecommendation struct {
	FieldID              string           `json:"field_id"`
	FieldName            string           `json:"field_name"`
	Category             string           `json:"category"`
	Confidence           float64          `json:"confidence"`
	DisplayPercent       float64          `json:"display_percent"`
	MatchingInterests    []string         `json:"matching_interests"`
	SuitableInstitutions []Recommendation `json:"suitable_institutions"`
}

// Prediction is the result of a single admission probability query.
type Prediction struct {
	Probability     float64    `json:"probability"`
	ExpectedScore   float64    `json:"expected_score"`
	ScoreDifference float64    `json:"score_difference"`
	SafetyBand      SafetyBand `json:"safety_band"`
	InstitutionID   string     `json:"institution_id"`
	InstitutionName string     `json:"institution"`
	FieldID         string     `json:"field_id"`
	FieldName       string     `json:"field"`
	Combination     string     `json:"combination,omitempty"`
	DefaultsUsed    []string   `json:"defaults_used,omitempty"`
}
