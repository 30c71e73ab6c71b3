package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/admit/internal/adapters/catalog"
	service "github.com/okian/admit/internal/app"
	"github.com/okian/admit/internal/domain/features"
	"github.com/okian/admit/internal/domain/oracle"
)

// catalogFlags select the catalog a bundle is checked against or built from.
type catalogFlags struct {
	driver   string
	dsn      string
	database string
	fixture  string
}

func (c *catalogFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.driver, "driver", "memory", "catalog store driver (memory|sqlite|postgres|mongo)")
	f.StringVar(&c.dsn, "dsn", "", "catalog store DSN")
	f.StringVar(&c.database, "database", "admit", "catalog database name (mongo)")
	f.StringVar(&c.fixture, "fixture", "", "YAML catalog fixture; the demo catalog when empty")
}

func (c *catalogFlags) open(cmd *cobra.Command) (catalog.Store, error) {
	return catalog.Open(cmd.Context(), catalog.Config{
		Driver:   c.driver,
		DSN:      c.dsn,
		Database: c.database,
		Fixture:  c.fixture,
	})
}

func newBundleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Inspect, validate and create oracle bundles",
	}
	cmd.AddCommand(newBundleInspectCommand(), newBundleValidateCommand(), newBundleInitCommand())
	return cmd
}

func newBundleInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect PATH",
		Short: "Print the shape of a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := oracle.LoadBundle(args[0])
			if err != nil {
				return err
			}
			printBundle(cmd.OutOrStdout(), b)
			if err := b.Validate(0); err != nil {
				_, _ = failColor.Fprintf(cmd.OutOrStdout(), "invalid: %v\n", err)
			}
			return nil
		},
	}
}

func newBundleValidateCommand() *cobra.Command {
	var (
		kind string
		cat  catalogFlags
	)
	cmd := &cobra.Command{
		Use:   "validate PATH",
		Short: "Check a bundle against the feature layout of a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := oracle.LoadBundle(args[0])
			if err != nil {
				return err
			}

			var names []string
			switch kind {
			case oracle.KindAdmission:
				names = features.AdmissionNames
			case oracle.KindField:
				st, err := cat.open(cmd)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close(cmd.Context()) }()
				builder, _, err := service.CatalogLayout(cmd.Context(), st)
				if err != nil {
					return err
				}
				names = builder.Names()
			default:
				return fmt.Errorf("--kind must be %s or %s, got %q", oracle.KindField, oracle.KindAdmission, kind)
			}

			if b.Kind != kind {
				return fmt.Errorf("%w: bundle kind %q, want %q", oracle.ErrInvalidBundle, b.Kind, kind)
			}
			if err := b.Validate(len(names)); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, name := range b.FeatureNames {
				if name != names[i] {
					_, _ = considerColor.Fprintf(w, "warning: feature %d is %q in the bundle and %q in the layout\n", i, name, names[i])
				}
			}
			_, _ = safeColor.Fprintf(w, "ok: %s bundle with %d features and %d outputs\n", b.Kind, b.Dimension(), len(b.Outputs))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", oracle.KindField, "field or admission")
	cat.register(cmd)
	return cmd
}

func newBundleInitCommand() *cobra.Command {
	var cat catalogFlags
	cmd := &cobra.Command{
		Use:   "init PATH",
		Short: "Write the prior field bundle for a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := cat.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close(cmd.Context()) }()

			b, err := service.CatalogPriorBundle(cmd.Context(), st)
			if err != nil {
				return err
			}
			if err := oracle.WriteBundle(args[0], b); err != nil {
				return err
			}
			printBundle(cmd.OutOrStdout(), b)
			return nil
		},
	}
	cat.register(cmd)
	return cmd
}

func printBundle(w io.Writer, b *oracle.Bundle) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "version\t%d\n", b.Version)
	_, _ = fmt.Fprintf(tw, "kind\t%s\n", b.Kind)
	_, _ = fmt.Fprintf(tw, "features\t%d\n", b.Dimension())
	_, _ = fmt.Fprintf(tw, "outputs\t%d\n", len(b.Outputs))
	for i, l := range b.Layers {
		in := 0
		if len(l.Weights) > 0 {
			in = len(l.Weights[0])
		}
		_, _ = fmt.Fprintf(tw, "layer %d\t%dx%d %s\n", i, len(l.Weights), in, l.Activation)
	}
	_ = tw.Flush()
}
