package mcp

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/domain"
	"github.com/anamnesis-symptom-engine/internal/explain"
	"github.com/anamnesis-symptom-engine/internal/metrics"
)

// ListSymptomsInput takes no arguments.
type ListSymptomsInput struct{}

// SymptomInfo describes one catalog symptom.
type SymptomInfo struct {
	Name     string     `json:"name"`
	Patterns [][]string `json:"patterns"`
}

// ListSymptomsOutput is the catalog in record order.
type ListSymptomsOutput struct {
	Version  string        `json:"version"`
	Symptoms []SymptomInfo `json:"symptoms"`
}

// ExtractInput is the argument of extract_symptoms.
type ExtractInput struct {
	Text string `json:"text" jsonschema:"patient message in Russian"`
}

// RecordOutput is a symptom record as returned by the tools. Statuses are
// the names YES, NO, NO_INFO and CONFUSED; the vector holds codes 1 to 4 in
// catalog order.
type RecordOutput struct {
	Statuses map[string]string `json:"statuses"`
	Vector   []int             `json:"vector"`
	Present  []string          `json:"present"`
	Absent   []string          `json:"absent"`
	Confused []string          `json:"confused"`
}

// MergeInput is the argument of merge_records.
type MergeInput struct {
	Records []map[string]string `json:"records" jsonschema:"records to merge in order, each mapping symptom name to YES, NO, NO_INFO or CONFUSED"`
}

// ExplainInput is the argument of explain_record.
type ExplainInput struct {
	Statuses    map[string]string `json:"statuses" jsonschema:"symptom name to status"`
	Disease     string            `json:"disease" jsonschema:"predicted disease"`
	Probability float64           `json:"probability" jsonschema:"probability of the prediction between 0 and 1"`
}

// ExplainOutput is the rendered explanation.
type ExplainOutput struct {
	Text     string   `json:"text"`
	Present  []string `json:"present"`
	Absent   []string `json:"absent"`
	Confused []string `json:"confused"`
}

// PatientMessageInput is the argument of add_patient_message.
type PatientMessageInput struct {
	PatientID string `json:"patient_id" jsonschema:"identifier of the patient"`
	Text      string `json:"text" jsonschema:"next message of the patient"`
}

// PatientInput is the argument of get_patient_record.
type PatientInput struct {
	PatientID string `json:"patient_id" jsonschema:"identifier of the patient"`
}

// PatientOutput is a patient's accumulated record.
type PatientOutput struct {
	PatientID    string       `json:"patient_id"`
	MessageCount int          `json:"message_count"`
	Record       RecordOutput `json:"record"`
}

// EvaluateInput is the argument of evaluate_showcase.
type EvaluateInput struct {
	CSV      string `json:"csv" jsonschema:"showcase CSV with marked_ and extractor_ columns per symptom"`
	Encoding string `json:"encoding,omitempty" jsonschema:"cell encoding: signed (default) or codes"`
}

// EvaluateOutput summarises a showcase evaluation.
type EvaluateOutput struct {
	Cases    int                `json:"cases"`
	Rates    map[string]float64 `json:"rates"`
	Excluded []string           `json:"excluded"`
	Table    string             `json:"table"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_symptoms",
		Description: "List the symptoms of the catalog in record order with their lemma patterns.",
	}, s.handleListSymptoms)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "extract_symptoms",
		Description: "Extract which catalog symptoms a patient message affirms, denies or contradicts.",
	}, s.handleExtractSymptoms)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "merge_records",
		Description: "Merge symptom records in order. Opposite definite statuses become CONFUSED.",
	}, s.handleMergeRecords)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "explain_record",
		Description: "Render the patient-facing explanation of a disease prediction for a symptom record.",
	}, s.handleExplainRecord)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "evaluate_showcase",
		Description: "Score extractor output against human labels given as a showcase CSV.",
	}, s.handleEvaluateShowcase)

	if s.service.HasStore() {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "add_patient_message",
			Description: "Apply the next message of a patient to their accumulated symptom record.",
		}, s.handleAddPatientMessage)

		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "get_patient_record",
			Description: "Return the accumulated symptom record of a patient.",
		}, s.handleGetPatientRecord)
	}

	s.logger.WithField("patient_tools", s.service.HasStore()).Info("Registered MCP tools")
}

func (s *Server) handleListSymptoms(ctx context.Context, req *mcp.CallToolRequest, in ListSymptomsInput) (*mcp.CallToolResult, ListSymptomsOutput, error) {
	c := s.service.Catalog()
	out := ListSymptomsOutput{Version: c.Version()}
	for _, sym := range c.Symptoms() {
		out.Symptoms = append(out.Symptoms, SymptomInfo{Name: sym.Name, Patterns: sym.Patterns})
	}
	return nil, out, nil
}

func (s *Server) handleExtractSymptoms(ctx context.Context, req *mcp.CallToolRequest, in ExtractInput) (*mcp.CallToolResult, RecordOutput, error) {
	s.logger.WithField("tool", "extract_symptoms").Debug("Tool invoked")

	ctx, cancel := s.toolContext(ctx)
	defer cancel()

	r, err := s.service.ExtractText(ctx, in.Text)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	return nil, newRecordOutput(r), nil
}

func (s *Server) handleMergeRecords(ctx context.Context, req *mcp.CallToolRequest, in MergeInput) (*mcp.CallToolResult, RecordOutput, error) {
	records := make([]map[string]domain.SymptomStatus, len(in.Records))
	for i, raw := range in.Records {
		statuses, err := parseStatuses(raw)
		if err != nil {
			return nil, RecordOutput{}, fmt.Errorf("record %d: %w", i, err)
		}
		records[i] = statuses
	}

	r, err := s.service.MergeRecords(records)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	return nil, newRecordOutput(r), nil
}

func (s *Server) handleExplainRecord(ctx context.Context, req *mcp.CallToolRequest, in ExplainInput) (*mcp.CallToolResult, ExplainOutput, error) {
	statuses, err := parseStatuses(in.Statuses)
	if err != nil {
		return nil, ExplainOutput{}, err
	}

	ctx, cancel := s.toolContext(ctx)
	defer cancel()

	explanation, err := s.service.Explain(ctx, statuses, &explain.Prediction{Disease: in.Disease, Probability: in.Probability})
	if err != nil {
		return nil, ExplainOutput{}, err
	}
	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: explanation.Text}},
	}
	return result, ExplainOutput{
		Text:     explanation.Text,
		Present:  explanation.Summary.Present,
		Absent:   explanation.Summary.Absent,
		Confused: explanation.Summary.Confused,
	}, nil
}

func (s *Server) handleEvaluateShowcase(ctx context.Context, req *mcp.CallToolRequest, in EvaluateInput) (*mcp.CallToolResult, EvaluateOutput, error) {
	enc, err := metrics.ParseEncoding(in.Encoding)
	if err != nil {
		return nil, EvaluateOutput{}, err
	}

	report, err := s.service.EvaluateShowcase(strings.NewReader(in.CSV), enc)
	if err != nil {
		return nil, EvaluateOutput{}, err
	}

	var table bytes.Buffer
	if err := metrics.WriteReport(&table, report); err != nil {
		return nil, EvaluateOutput{}, err
	}

	out := EvaluateOutput{
		Cases:    report.Cases,
		Rates:    make(map[string]float64, len(report.Rates)),
		Excluded: nonNil(report.Excluded),
		Table:    table.String(),
	}
	for cat, rate := range report.Rates {
		out.Rates[string(cat)] = rate
	}
	return nil, out, nil
}

func (s *Server) handleAddPatientMessage(ctx context.Context, req *mcp.CallToolRequest, in PatientMessageInput) (*mcp.CallToolResult, PatientOutput, error) {
	s.logger.WithFields(logrus.Fields{
		"tool":       "add_patient_message",
		"patient_id": in.PatientID,
	}).Debug("Tool invoked")

	ctx, cancel := s.toolContext(ctx)
	defer cancel()

	update, err := s.service.AddPatientMessage(ctx, in.PatientID, in.Text)
	if err != nil {
		return nil, PatientOutput{}, err
	}
	return nil, PatientOutput{
		PatientID:    update.Patient.PatientID,
		MessageCount: update.Patient.MessageCount,
		Record:       newRecordOutput(update.Record),
	}, nil
}

func (s *Server) handleGetPatientRecord(ctx context.Context, req *mcp.CallToolRequest, in PatientInput) (*mcp.CallToolResult, PatientOutput, error) {
	stored, r, err := s.service.GetPatient(ctx, in.PatientID)
	if err != nil {
		return nil, PatientOutput{}, err
	}
	return nil, PatientOutput{
		PatientID:    stored.PatientID,
		MessageCount: stored.MessageCount,
		Record:       newRecordOutput(r),
	}, nil
}

func newRecordOutput(r *anamnesis.Record) RecordOutput {
	statuses := make(map[string]string, r.Len())
	for name, st := range r.Map() {
		statuses[name] = st.String()
	}
	return RecordOutput{
		Statuses: statuses,
		Vector:   r.Vector(),
		Present:  nonNil(r.WithStatus(domain.YES)),
		Absent:   nonNil(r.WithStatus(domain.NO)),
		Confused: nonNil(r.WithStatus(domain.CONFUSED)),
	}
}

func parseStatuses(raw map[string]string) (map[string]domain.SymptomStatus, error) {
	out := make(map[string]domain.SymptomStatus, len(raw))
	for name, v := range raw {
		st, err := domain.ParseSymptomStatus(v)
		if err != nil {
			return nil, fmt.Errorf("symptom %q: %w", name, err)
		}
		out[name] = st
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
