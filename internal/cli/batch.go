package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	service "github.com/okian/admit/internal/app"
)

// Batch kinds accepted by --kind.
const (
	kindProbability     = "probability"
	kindRecommendations = "recommendations"
)

func newBatchCommand(g *globals) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Submit a JSON file of requests as one batch",
		Long: `FILE holds either a JSON array of items or an object {"items": [...]}.
Each item is a probability or recommendation request with an optional "id".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			switch kind {
			case kindProbability:
				path = "/v1/probability/batch"
			case kindRecommendations:
				path = "/v1/recommendations/batch"
			default:
				return fmt.Errorf("--kind must be %s or %s, got %q", kindProbability, kindRecommendations, kind)
			}

			items, err := readItems(args[0])
			if err != nil {
				return err
			}

			var res struct {
				Results []service.BatchResult `json:"results"`
			}
			raw, err := g.client().Post(cmd.Context(), path, map[string]any{"items": items}, &res)
			if err != nil {
				return explain(cmd.ErrOrStderr(), err)
			}
			if g.json {
				return printRaw(cmd.OutOrStdout(), raw)
			}
			return printBatch(cmd, res.Results)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", kindProbability, "probability or recommendations")
	return cmd
}

// readItems loads the raw items so that they reach the service unchanged.
func readItems(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var env struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if env.Items == nil {
		return nil, fmt.Errorf("parse batch file: no items")
	}
	return env.Items, nil
}

func printBatch(cmd *cobra.Command, results []service.BatchResult) error {
	w := cmd.OutOrStdout()
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
			continue
		}
		msg := ""
		if r.Error != nil {
			msg = r.Error.Kind + ": " + r.Error.Message
		}
		_, _ = failColor.Fprintf(w, "%s  %s\n", r.ID, msg)
	}
	_, _ = fmt.Fprintf(w, "%d items: %s, %s\n", len(results),
		safeColor.Sprintf("%d succeeded", ok), failColor.Sprintf("%d failed", len(results)-ok))
	return nil
}
