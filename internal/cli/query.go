package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	service "github.com/okian/admit/internal/app"
	"github.com/okian/admit/internal/domain/model"
)

func newPredictCommand(g *globals) *cobra.Command {
	var req service.ProbabilityRequest

	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Admission probability for one institution and field",
		Example: `  admitctl predict --institution BKA --field "Computer Science" --combination A00 --score 27.5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var pred model.Prediction
			raw, err := g.client().Post(cmd.Context(), "/v1/probability", req, &pred)
			if err != nil {
				return explain(cmd.ErrOrStderr(), err)
			}
			if g.json {
				return printRaw(cmd.OutOrStdout(), raw)
			}
			printPrediction(cmd.OutOrStdout(), pred)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Institution, "institution", "", "institution name, code or id")
	f.StringVar(&req.Field, "field", "", "field name or id")
	f.StringVar(&req.Combination, "combination", "", "subject combination code, e.g. A00")
	f.Float64Var(&req.Score, "score", 0, "composite score")
	_ = cmd.MarkFlagRequired("institution")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}

// profileFlags collects a ProfileInput from flags.
type profileFlags struct {
	scores       string
	interests    []string
	combinations []string
	track        string
	area         string
	object       string
}

func (p *profileFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.scores, "scores", "", `subject scores, e.g. "math=9,physics=8.5,chemistry=8"`)
	f.StringSliceVar(&p.interests, "interests", nil, "up to three interest tags")
	f.StringSliceVar(&p.combinations, "combinations", nil, "up to two preferred combination codes")
	f.StringVar(&p.track, "track", "", "science or social")
	f.StringVar(&p.area, "area", "", "priority area tier, e.g. KV1")
	f.StringVar(&p.object, "object", "", "priority object tier, e.g. UT1")
	_ = cmd.MarkFlagRequired("scores")
}

func (p *profileFlags) input() (model.ProfileInput, error) {
	scores, err := parseScores(p.scores)
	if err != nil {
		return model.ProfileInput{}, err
	}
	return model.ProfileInput{
		Scores:       scores,
		Interests:    p.interests,
		Combinations: p.combinations,
		Track:        p.track,
		AreaTier:     p.area,
		ObjectTier:   p.object,
	}, nil
}

// parseScores reads "subject=score" pairs. An empty score ("math=") marks the
// subject as missing.
func parseScores(s string) (map[string]*float64, error) {
	out := make(map[string]*float64)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("score %q is not subject=value", pair)
		}
		name = strings.TrimSpace(name)
		raw = strings.TrimSpace(raw)
		if raw == "" {
			out[name] = nil
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("score for %s: %w", name, err)
		}
		out[name] = &v
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scores given")
	}
	return out, nil
}

func newRecommendCommand(g *globals) *cobra.Command {
	var (
		pf    profileFlags
		topK  int
		field string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Top fields for a profile, or institutions for one field with --field",
		Example: `  admitctl recommend --scores "math=9,physics=9,chemistry=9" --interests technology --top-k 3
  admitctl recommend --scores "math=9,physics=9,chemistry=9" --field "Computer Science" --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := pf.input()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if field != "" {
				var res struct {
					Results []model.Recommendation `json:"results"`
				}
				raw, err := g.client().Post(cmd.Context(), "/v1/institutions",
					service.InstitutionRequest{Profile: profile, Field: field, Limit: limit}, &res)
				if err != nil {
					return explain(cmd.ErrOrStderr(), err)
				}
				if g.json {
					return printRaw(out, raw)
				}
				printInstitutions(out, "", res.Results)
				return nil
			}

			var res struct {
				Results []model.FieldRecommendation `json:"results"`
			}
			raw, err := g.client().Post(cmd.Context(), "/v1/recommendations",
				service.RecommendationRequest{Profile: profile, TopK: topK}, &res)
			if err != nil {
				return explain(cmd.ErrOrStderr(), err)
			}
			if g.json {
				return printRaw(out, raw)
			}
			printFields(out, res.Results)
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of fields (0 uses the service default)")
	cmd.Flags().StringVar(&field, "field", "", "rank institutions for this field instead")
	cmd.Flags().IntVar(&limit, "limit", 0, "institutions to return with --field (0 uses the service default)")
	return cmd
}

func printRaw(w io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, werr := w.Write(raw)
		return werr
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
