package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/domain"
)

var (
	extractFile   string
	extractFormat string
	extractSplit  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [text]",
	Short: "Extract symptom statuses from text",
	Long: `Build a symptom record for each input text.

Texts are taken from the arguments, or one per line from --file ("-" reads
stdin). Each record is printed as a JSON line or as its status vector.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "Read one text per line from a file (- for stdin)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "json", "Output format (json, vector)")
	extractCmd.Flags().BoolVar(&extractSplit, "split-sentences", false, "Build each record from its sentences")
	rootCmd.AddCommand(extractCmd)
}

type extractLine struct {
	Index    int                             `json:"index"`
	Statuses map[string]domain.SymptomStatus `json:"statuses"`
	Vector   []int                           `json:"vector"`
	Error    string                          `json:"error,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	texts, err := readTexts(args, extractFile)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("no text given")
	}

	ctx, cancel := signalContext()
	defer cancel()

	components, _, _, err := buildService(ctx, false, func(cfg *domain.Config) {
		if cmd.Flags().Changed("split-sentences") {
			cfg.Extraction.SplitSentences = extractSplit
		}
	})
	if err != nil {
		return err
	}
	defer components.Close()

	results := components.Service.ExtractBatch(ctx, texts)

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	for _, r := range results {
		switch extractFormat {
		case "vector":
			fmt.Fprintln(out, formatVector(r.Record))
		default:
			line := extractLine{Index: r.Index, Statuses: r.Record.Map(), Vector: r.Record.Vector()}
			if r.Err != nil {
				line.Error = r.Err.Error()
			}
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatVector(r *anamnesis.Record) string {
	parts := make([]string, 0, r.Len())
	for _, v := range r.Vector() {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, ",")
}

func readTexts(args []string, file string) ([]string, error) {
	if file == "" {
		if len(args) == 0 {
			return nil, nil
		}
		return []string{strings.Join(args, " ")}, nil
	}

	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}

	var texts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	return texts, scanner.Err()
}
