package oracle

import "strings"

// Prior weights. A field gains priorWeight for each declared student interest
// it carries; with no match its output is sigmoid(priorBias).
const (
	priorWeight = 2.0
	priorBias   = -1.0
)

// PriorBundle builds an untrained field bundle over the given feature names:
// identity normalisation and one sigmoid layer that scores each field by the
// interest flags it shares with the student. It is a stand-in until a trained
// bundle is available and has the same shape as one.
func PriorBundle(featureNames []string, fieldInterests map[string][]string, fieldOrder []string) *Bundle {
	n := len(featureNames)
	b := &Bundle{
		Version:      BundleVersion,
		Kind:         KindField,
		FeatureNames: append([]string(nil), featureNames...),
		Mean:         make([]float64, n),
		Scale:        make([]float64, n),
		Outputs:      append([]string(nil), fieldOrder...),
	}
	for i := range b.Scale {
		b.Scale[i] = 1
	}

	col := make(map[string]int, n)
	for i, name := range featureNames {
		col[name] = i
	}
	layer := Layer{Activation: ActivationSigmoid}
	for _, id := range fieldOrder {
		row := make([]float64, n)
		for _, tag := range fieldInterests[id] {
			if i, ok := col["interest_"+strings.ToLower(tag)]; ok {
				row[i] = priorWeight
			}
		}
		layer.Weights = append(layer.Weights, row)
		layer.Bias = append(layer.Bias, priorBias)
	}
	b.Layers = []Layer{layer}
	return b
}
