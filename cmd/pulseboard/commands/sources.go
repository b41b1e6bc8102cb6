package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulseboard/pulseboard/pkg/datasource"
)

func newSourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect configured datasources",
	}

	cmd.AddCommand(newSourcesListCommand())
	cmd.AddCommand(newSourcesResolveCommand())

	return cmd
}

func newSourcesListCommand() *cobra.Command {
	var (
		metricsOnly     bool
		annotationsOnly bool
		externalOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured datasources",
		Long: `List configured datasources.

By default every datasource is listed. The filter flags switch to the
picker views the dashboard UI uses: metric sources (including the synthetic
default entry and variable-backed entries), annotation sources, or external
(non-built-in) datasources.`,
		Example: `  # All configured datasources
  pulseboard sources list

  # The metric source picker, as the UI would order it
  pulseboard sources list --metrics

  # Annotation-capable sources
  pulseboard sources list --annotations`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService()
			if err != nil {
				return err
			}

			switch {
			case metricsOnly:
				return printEntries(svc.ListMetricSources(nil))
			case annotationsOnly:
				return printEntries(svc.ListAnnotationSources())
			case externalOnly:
				return printConfigs(svc.ListExternal())
			default:
				return printConfigs(svc.ListAll())
			}
		},
	}

	cmd.Flags().BoolVar(&metricsOnly, "metrics", false, "list metric sources in picker order")
	cmd.Flags().BoolVar(&annotationsOnly, "annotations", false, "list annotation sources")
	cmd.Flags().BoolVar(&externalOnly, "external", false, "list non-built-in datasources")
	cmd.MarkFlagsMutuallyExclusive("metrics", "annotations", "external")

	return cmd
}

func newSourcesResolveCommand() *cobra.Command {
	var scopedFlags []string

	cmd := &cobra.Command{
		Use:   "resolve [name]",
		Short: "Resolve a datasource name to its cache key",
		Long: `Resolve a datasource name the way the service would before loading it:
template variables are substituted, multi-value selections collapse to
their first element and the default alias is unwrapped. An omitted name
resolves to the configured default datasource.`,
		Example: `  # Resolve a variable reference
  pulseboard sources resolve '$source'

  # Resolve with a scoped override, as a panel drill-down would
  pulseboard sources resolve '$source' --var source=influx

  # Resolve the default
  pulseboard sources resolve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService()
			if err != nil {
				return err
			}

			name := ""
			if len(args) > 0 {
				name = args[0]
			}

			scoped := datasource.ScopedVars{}
			for _, kv := range scopedFlags {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --var %q, expected name=value", kv)
				}
				scoped[k] = datasource.ScopedValue{Value: v}
			}

			resolved := svc.ResolveName(name, scoped)
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{
					"name":     name,
					"resolved": resolved,
				})
			}
			fmt.Println(resolved)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&scopedFlags, "var", nil, "scoped variable override (name=value), repeatable")

	return cmd
}

func printConfigs(configs []*datasource.Config) error {
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(configs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tMODULE\tBUILT-IN\tMETRICS\tANNOTATIONS")
	for _, cfg := range configs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\t%v\n",
			cfg.Name, cfg.Meta.ID, cfg.Meta.Module,
			cfg.Meta.BuiltIn, cfg.Meta.Metrics, cfg.Meta.Annotations)
	}
	return w.Flush()
}

func printEntries(entries []datasource.Entry) error {
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVALUE\tID")
	for _, e := range entries {
		value := "<default>"
		if e.Value != nil {
			value = *e.Value
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, value, e.Meta.ID)
	}
	return w.Flush()
}
