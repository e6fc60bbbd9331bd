package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/anamnesis-symptom-engine/internal/metrics"
)

var (
	metricsEncoding string
	metricsFormat   string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics <showcase.csv>",
	Short: "Score extractor output against labelled cases",
	Long: `Read a showcase CSV holding marked_<symptom> and extractor_<symptom>
columns and report per-symptom category counts and overall rates.`,
	Args: cobra.ExactArgs(1),
	RunE: runMetrics,
}

func init() {
	metricsCmd.Flags().StringVar(&metricsEncoding, "encoding", "signed", "Cell encoding (signed, codes)")
	metricsCmd.Flags().StringVar(&metricsFormat, "format", "human", "Output format (human, json, csv)")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	enc, err := metrics.ParseEncoding(metricsEncoding)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open showcase: %w", err)
	}
	defer f.Close()

	showcase, err := metrics.ReadShowcase(f, enc)
	if err != nil {
		return err
	}
	tally, err := showcase.Tally()
	if err != nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), tally.Report(), metricsFormat)
}

func printReport(out io.Writer, report *metrics.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "csv":
		return metrics.WriteReport(out, report)
	}

	fmt.Fprintf(out, "Cases: %d\n", report.Cases)
	for _, cat := range metrics.ScoredCategories {
		fmt.Fprintf(out, "%-20s %6.2f%%\n", cat, report.Rates[cat]*100)
	}
	if len(report.Excluded) > 0 {
		fmt.Fprintf(out, "Excluded (no information): %d symptoms\n", len(report.Excluded))
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMPTOM\tVALID\tINVALID\tVALIDATE_EXTRACTOR\tVALIDATE_MARKER\tUNDEFINED\tUNSCORED")
	for _, c := range report.Symptoms {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			c.Symptom, c.Valid, c.Invalid, c.ValidateExtractor, c.ValidateMarker, c.Undefined, c.Unscored)
	}
	return w.Flush()
}
