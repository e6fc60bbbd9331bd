package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anamnesis-symptom-engine/internal/metrics"
	"github.com/anamnesis-symptom-engine/internal/repository"
)

var (
	showcaseSource   string
	showcaseOut      string
	showcaseEncoding string
	showcaseReport   bool

	casesFile   string
	casesSource string
)

var showcaseCmd = &cobra.Command{
	Use:   "showcase",
	Short: "Run the extractor over labelled cases and write a showcase CSV",
	Long: `Load labelled cases from PostgreSQL, extract each case text and write the
ground truth and extractor output side by side as a showcase CSV.`,
	RunE: runShowcase,
}

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Manage labelled cases",
}

var casesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import labelled cases from JSON lines",
	Long: `Import labelled cases into PostgreSQL. Each input line is a JSON object
with "text" and "truth" (symptom name to YES, NO, NO_INFO or CONFUSED).`,
	RunE: runCasesImport,
}

func init() {
	showcaseCmd.Flags().StringVar(&showcaseSource, "source", "", "Only use cases from this source")
	showcaseCmd.Flags().StringVarP(&showcaseOut, "out", "o", "-", "Output file (- for stdout)")
	showcaseCmd.Flags().StringVar(&showcaseEncoding, "encoding", "signed", "Cell encoding (signed, codes)")
	showcaseCmd.Flags().BoolVar(&showcaseReport, "report", false, "Also print the metrics report to stderr")
	rootCmd.AddCommand(showcaseCmd)

	casesImportCmd.Flags().StringVarP(&casesFile, "file", "f", "-", "Input file (- for stdin)")
	casesImportCmd.Flags().StringVar(&casesSource, "source", "", "Source name stored with every case")
	casesCmd.AddCommand(casesImportCmd)
	rootCmd.AddCommand(casesCmd)
}

var errNoCaseRepository = errors.New("labelled cases require storage.driver postgres")

func runShowcase(cmd *cobra.Command, args []string) error {
	enc, err := metrics.ParseEncoding(showcaseEncoding)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	components, _, _, err := buildService(ctx, true, nil)
	if err != nil {
		return err
	}
	defer components.Close()
	if components.Cases == nil {
		return errNoCaseRepository
	}

	showcase, err := components.Service.BuildShowcase(ctx, showcaseSource)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if showcaseOut != "-" {
		f, err := os.Create(showcaseOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", showcaseOut, err)
		}
		defer f.Close()
		out = f
	}
	if err := metrics.WriteShowcase(out, showcase, enc); err != nil {
		return err
	}

	if showcaseReport {
		tally, err := showcase.Tally()
		if err != nil {
			return err
		}
		return printReport(cmd.ErrOrStderr(), tally.Report(), "human")
	}
	return nil
}

func runCasesImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	components, _, logger, err := buildService(ctx, true, nil)
	if err != nil {
		return err
	}
	defer components.Close()
	if components.Cases == nil {
		return errNoCaseRepository
	}

	var r io.Reader = cmd.InOrStdin()
	if casesFile != "-" {
		f, err := os.Open(casesFile)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", casesFile, err)
		}
		defer f.Close()
		r = f
	}

	version := components.Catalog.Version()
	var cases []*repository.LabeledCase
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		lc := &repository.LabeledCase{}
		if err := json.Unmarshal([]byte(raw), lc); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		for name := range lc.Truth {
			if _, ok := components.Catalog.Get(name); !ok {
				return fmt.Errorf("line %d: unknown symptom %q", line, name)
			}
		}
		if lc.Source == "" {
			lc.Source = casesSource
		}
		if lc.CatalogVersion == "" {
			lc.CatalogVersion = version
		}
		cases = append(cases, lc)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if err := components.Cases.CreateBatch(ctx, cases); err != nil {
		return err
	}
	logger.WithField("cases", len(cases)).Info("Labelled cases imported")
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d cases\n", len(cases))
	return nil
}
