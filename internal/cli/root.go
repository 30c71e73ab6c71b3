// Package cli implements admitctl, the non-interactive operator tool for the
// admission advisor: queries against a running admitd and oracle bundle
// housekeeping.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/okian/admit/pkg/logger"
)

// Defaults for the shared flags.
const (
	DefaultURL     = "http://localhost:9080"
	DefaultTimeout = 30 * time.Second
)

// Color modes accepted by --color.
const (
	colorAuto = "auto"
	colorOn   = "on"
	colorOff  = "off"
)

// globals holds the flags shared by every command.
type globals struct {
	url      string
	timeout  time.Duration
	color    string
	json     bool
	logLevel string
}

func (g *globals) client() *Client {
	return NewClient(g.url, g.timeout)
}

// NewRootCommand builds the admitctl command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "admitctl",
		Short:         "Operator tool for the admission advisor",
		Long:          `admitctl queries a running admitd and manages the oracle bundles it loads.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch g.color {
			case colorOn:
				color.NoColor = false
			case colorOff:
				color.NoColor = true
			case colorAuto:
			default:
				return fmt.Errorf("--color must be auto, on or off, got %q", g.color)
			}
			return logger.Init(logger.WithOutput(errOut), logger.WithLevel(g.logLevel))
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&g.url, "url", DefaultURL, "base URL of admitd")
	pf.DurationVar(&g.timeout, "timeout", DefaultTimeout, "HTTP request timeout")
	pf.StringVar(&g.color, "color", colorAuto, "colorize output (auto|on|off)")
	pf.BoolVar(&g.json, "json", false, "print the raw JSON answer")
	pf.StringVar(&g.logLevel, "log-level", "warn", "log level for local work (debug|info|warn|error)")

	root.AddCommand(
		newPredictCommand(g),
		newRecommendCommand(g),
		newBatchCommand(g),
		newBundleCommand(),
	)
	return root
}
