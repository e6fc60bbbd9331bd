package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/domain"
)

const (
	markedPrefix    = "marked_"
	extractorPrefix = "extractor_"
	caseIDColumn    = "case_id"
	caseTextColumn  = "case"
)

// Encoding selects how statuses are written in showcase cells.
type Encoding int

const (
	// EncodingSigned writes YES=1, NO=-1, NO_INFO=0 and CONFUSED=2.
	EncodingSigned Encoding = iota
	// EncodingCodes writes the numeric status codes 1..4.
	EncodingCodes
)

// ParseEncoding parses "signed" or "codes".
func ParseEncoding(v string) (Encoding, error) {
	switch strings.ToLower(v) {
	case "", "signed":
		return EncodingSigned, nil
	case "codes":
		return EncodingCodes, nil
	default:
		return 0, fmt.Errorf("unknown showcase encoding %q", v)
	}
}

// EncodeStatus converts a status to its cell value.
func EncodeStatus(s domain.SymptomStatus, enc Encoding) int {
	if enc == EncodingCodes {
		return s.Code()
	}
	switch s {
	case domain.YES:
		return 1
	case domain.NO:
		return -1
	case domain.CONFUSED:
		return 2
	default:
		return 0
	}
}

// DecodeStatus converts a cell value to a status.
func DecodeStatus(v int, enc Encoding) (domain.SymptomStatus, error) {
	if enc == EncodingCodes {
		return domain.StatusFromCode(v)
	}
	switch v {
	case 1:
		return domain.YES, nil
	case -1:
		return domain.NO, nil
	case 0:
		return domain.NO_INFO, nil
	case 2:
		return domain.CONFUSED, nil
	default:
		return 0, fmt.Errorf("%w: cell value %d", domain.ErrInvalidStatus, v)
	}
}

// ShowcaseRow is one labelled case with the extractor's output.
type ShowcaseRow struct {
	CaseID    string
	Text      string
	Truth     []domain.SymptomStatus
	Extracted []domain.SymptomStatus
}

// Showcase pairs ground truth with extractor output for a corpus. Symptom
// keys are column names: symptom names with spaces replaced by underscores.
type Showcase struct {
	Symptoms []string
	Rows     []ShowcaseRow
}

// NewShowcase creates an empty showcase for symptom names.
func NewShowcase(symptoms []string) *Showcase {
	keys := make([]string, len(symptoms))
	for i, s := range symptoms {
		keys[i] = domain.ColumnName(s)
	}
	return &Showcase{Symptoms: keys}
}

// AddRecords appends a case given as truth and extracted records.
func (s *Showcase) AddRecords(caseID, text string, truth, extracted *anamnesis.Record) error {
	if truth.Len() != len(s.Symptoms) || extracted.Len() != len(s.Symptoms) {
		return &domain.TypeMismatchError{
			Expected: fmt.Sprintf("records with %d symptoms", len(s.Symptoms)),
			Actual:   fmt.Sprintf("records with %d and %d symptoms", truth.Len(), extracted.Len()),
		}
	}
	s.Rows = append(s.Rows, ShowcaseRow{
		CaseID:    caseID,
		Text:      text,
		Truth:     truth.Statuses(),
		Extracted: extracted.Statuses(),
	})
	return nil
}

// Tally scores every row of the showcase.
func (s *Showcase) Tally() (*Tally, error) {
	t := NewTally(s.Symptoms)
	for i, row := range s.Rows {
		if err := t.AddCase(row.Truth, row.Extracted); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return t, nil
}

// ReadShowcase parses a showcase CSV. Every marked_<symptom> column needs a
// matching extractor_<symptom> column. case_id and case columns are
// optional; other columns are ignored.
func ReadShowcase(r io.Reader, enc Encoding) (*Showcase, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read showcase header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	s := &Showcase{}
	var markedIdx, extractorIdx []int
	for i, name := range header {
		name = strings.TrimSpace(name)
		if !strings.HasPrefix(name, markedPrefix) {
			continue
		}
		symptom := strings.TrimPrefix(name, markedPrefix)
		j, ok := columns[extractorPrefix+symptom]
		if !ok {
			return nil, fmt.Errorf("showcase has %s but no %s%s column", name, extractorPrefix, symptom)
		}
		s.Symptoms = append(s.Symptoms, symptom)
		markedIdx = append(markedIdx, i)
		extractorIdx = append(extractorIdx, j)
	}
	if len(s.Symptoms) == 0 {
		return nil, fmt.Errorf("showcase has no %s columns", markedPrefix)
	}

	idIdx, hasID := columns[caseIDColumn]
	textIdx, hasText := columns[caseTextColumn]

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read showcase line %d: %w", line, err)
		}

		row := ShowcaseRow{
			Truth:     make([]domain.SymptomStatus, len(s.Symptoms)),
			Extracted: make([]domain.SymptomStatus, len(s.Symptoms)),
		}
		if hasID && idIdx < len(record) {
			row.CaseID = record[idIdx]
		}
		if hasText && textIdx < len(record) {
			row.Text = record[textIdx]
		}
		for k := range s.Symptoms {
			if row.Truth[k], err = readCell(record, markedIdx[k], enc); err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, header[markedIdx[k]], err)
			}
			if row.Extracted[k], err = readCell(record, extractorIdx[k], enc); err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, header[extractorIdx[k]], err)
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

func readCell(record []string, idx int, enc Encoding) (domain.SymptomStatus, error) {
	if idx >= len(record) {
		return 0, fmt.Errorf("missing cell")
	}
	raw := strings.TrimSpace(record[idx])
	if raw == "" {
		if enc == EncodingCodes {
			return domain.NO_INFO, nil
		}
		raw = "0"
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid cell value %q", raw)
	}
	return DecodeStatus(int(f), enc)
}

// WriteShowcase writes the showcase as CSV: case_id, case, the marked
// columns and then the extractor columns.
func WriteShowcase(w io.Writer, s *Showcase, enc Encoding) error {
	writer := csv.NewWriter(w)

	header := []string{caseIDColumn, caseTextColumn}
	for _, sym := range s.Symptoms {
		header = append(header, markedPrefix+sym)
	}
	for _, sym := range s.Symptoms {
		header = append(header, extractorPrefix+sym)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write showcase header: %w", err)
	}

	for _, row := range s.Rows {
		record := []string{row.CaseID, row.Text}
		for _, st := range row.Truth {
			record = append(record, strconv.Itoa(EncodeStatus(st, enc)))
		}
		for _, st := range row.Extracted {
			record = append(record, strconv.Itoa(EncodeStatus(st, enc)))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write showcase row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteReport writes the per-symptom table of a report as CSV.
func WriteReport(w io.Writer, r *Report) error {
	writer := csv.NewWriter(w)

	header := []string{"symptom"}
	for _, cat := range Categories {
		header = append(header, string(cat))
	}
	header = append(header, "UNSCORED")
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}

	for _, c := range r.Symptoms {
		record := []string{c.Symptom}
		for _, cat := range Categories {
			record = append(record, strconv.Itoa(c.Count(cat)))
		}
		record = append(record, strconv.Itoa(c.Unscored))
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
