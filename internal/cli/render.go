package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/okian/admit/internal/domain/model"
)

var (
	safeColor     = color.New(color.FgGreen, color.Bold)
	considerColor = color.New(color.FgYellow, color.Bold)
	riskyColor    = color.New(color.FgRed, color.Bold)
	headColor     = color.New(color.FgCyan, color.Bold)
	failColor     = color.New(color.FgRed)
)

func band(b model.SafetyBand) string {
	switch b {
	case model.BandSafe:
		return safeColor.Sprint(b)
	case model.BandConsider:
		return considerColor.Sprint(b)
	default:
		return riskyColor.Sprint(b)
	}
}

func printPrediction(w io.Writer, p model.Prediction) {
	_, _ = headColor.Fprintf(w, "%s / %s\n", p.InstitutionName, p.FieldName)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "probability\t%.1f%%\n", p.Probability*100)
	_, _ = fmt.Fprintf(tw, "expected score\t%.2f\n", p.ExpectedScore)
	_, _ = fmt.Fprintf(tw, "difference\t%+.2f\n", p.ScoreDifference)
	_, _ = fmt.Fprintf(tw, "band\t%s\n", band(p.SafetyBand))
	if p.Combination != "" {
		_, _ = fmt.Fprintf(tw, "combination\t%s\n", p.Combination)
	}
	if len(p.DefaultsUsed) > 0 {
		_, _ = fmt.Fprintf(tw, "defaults used\t%s\n", strings.Join(p.DefaultsUsed, ", "))
	}
	_ = tw.Flush()
}

func printFields(w io.Writer, recs []model.FieldRecommendation) {
	if len(recs) == 0 {
		_, _ = fmt.Fprintln(w, "no fields matched")
		return
	}
	for i, r := range recs {
		_, _ = headColor.Fprintf(w, "%d. %s", i+1, r.FieldName)
		_, _ = fmt.Fprintf(w, "  %.1f%%", r.DisplayPercent)
		if len(r.MatchingInterests) > 0 {
			_, _ = fmt.Fprintf(w, "  [%s]", strings.Join(r.MatchingInterests, ", "))
		}
		_, _ = fmt.Fprintln(w)
		printInstitutions(w, "   ", r.SuitableInstitutions)
	}
}

func printInstitutions(w io.Writer, indent string, recs []model.Recommendation) {
	if len(recs) == 0 {
		_, _ = fmt.Fprintln(w, indent+"no institutions admit this profile")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range recs {
		_, _ = fmt.Fprintf(tw, "%s%s\t%s\t%.2f\t%.2f\t%+.2f\t%s\n",
			indent, r.InstitutionName, r.Combination, r.StudentScore, r.ExpectedScore, r.ScoreDifference, band(r.SafetyBand))
	}
	_ = tw.Flush()
}

// explain prints suggestions carried by a not-found answer and passes err on.
func explain(w io.Writer, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && len(apiErr.Suggestions) > 0 {
		_, _ = fmt.Fprintln(w, "did you mean:")
		for _, s := range apiErr.Suggestions {
			_, _ = fmt.Fprintf(w, "  %s (%s)\n", s.Name, s.ID)
		}
	}
	return err
}
