package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/anamnesis-symptom-engine/internal/service"
)

var (
	patientsFile  string
	patientsLimit int
)

var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "Manage accumulated patient records",
}

var patientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patients, most recently updated first",
	RunE:  runPatientsList,
}

var patientsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every patient record as JSON",
	RunE:  runPatientsExport,
}

var patientsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import patient records from a JSON export",
	RunE:  runPatientsImport,
}

var patientsDeleteCmd = &cobra.Command{
	Use:   "delete <patient-id>",
	Short: "Forget a patient",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatientsDelete,
}

func init() {
	patientsListCmd.Flags().IntVar(&patientsLimit, "limit", 50, "Maximum number of patients")
	patientsExportCmd.Flags().StringVarP(&patientsFile, "file", "f", "-", "Output file (- for stdout)")
	patientsImportCmd.Flags().StringVarP(&patientsFile, "file", "f", "-", "Input file (- for stdin)")

	patientsCmd.AddCommand(patientsListCmd, patientsExportCmd, patientsImportCmd, patientsDeleteCmd)
	rootCmd.AddCommand(patientsCmd)
}

func runPatientsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	components, _, _, err := buildService(ctx, true, nil)
	if err != nil {
		return err
	}
	defer components.Close()

	records, total, err := components.Service.ListPatients(ctx, patientsLimit, 0)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATIENT\tMESSAGES\tCATALOG\tUPDATED")
	for _, p := range records {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", p.PatientID, p.MessageCount, p.CatalogVersion, p.UpdatedAt.Local().Format(time.DateTime))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d patients\n", len(records), total)
	return nil
}

func runPatientsExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	components, _, _, err := buildService(ctx, true, nil)
	if err != nil {
		return err
	}
	defer components.Close()
	if components.Store == nil {
		return service.ErrStoreUnavailable
	}

	var out io.Writer = cmd.OutOrStdout()
	if patientsFile != "-" {
		f, err := os.Create(patientsFile)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", patientsFile, err)
		}
		defer f.Close()
		out = f
	}
	return components.Store.ExportJSON(ctx, out)
}

func runPatientsImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	components, _, _, err := buildService(ctx, true, nil)
	if err != nil {
		return err
	}
	defer components.Close()
	if components.Store == nil {
		return service.ErrStoreUnavailable
	}

	var in io.Reader = cmd.InOrStdin()
	if patientsFile != "-" {
		f, err := os.Open(patientsFile)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", patientsFile, err)
		}
		defer f.Close()
		in = f
	}

	imported, skipped, err := components.Store.ImportJSON(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d patients, skipped %d existing\n", imported, skipped)
	return nil
}

func runPatientsDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	components, _, _, err := buildService(ctx, true, nil)
	if err != nil {
		return err
	}
	defer components.Close()

	if err := components.Service.DeletePatient(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted patient %s\n", args[0])
	return nil
}
