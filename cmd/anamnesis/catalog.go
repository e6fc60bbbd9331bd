package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anamnesis-symptom-engine/internal/catalog"
)

var catalogFormat string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the symptom catalog",
	Long:  "Print the symptoms of the configured catalog in record order with their lemma patterns",
	RunE:  runCatalog,
}

func init() {
	catalogCmd.Flags().StringVar(&catalogFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := catalog.NewFileProvider(cfg.Catalog.Path, logger).Get()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if catalogFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"version":  c.Version(),
			"symptoms": c.Symptoms(),
		})
	}

	fmt.Fprintf(out, "Catalog %s (%d symptoms)\n", c.Version(), c.Len())
	for i, s := range c.Symptoms() {
		patterns := make([]string, len(s.Patterns))
		for j, p := range s.Patterns {
			patterns[j] = strings.Join(p, " ")
		}
		fmt.Fprintf(out, "%3d  %-28s %s\n", i+1, s.Name, strings.Join(patterns, " | "))
	}
	return nil
}
