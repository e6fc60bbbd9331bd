// Package store keeps the accumulated symptom record of each patient so a
// consultation can span several messages and sessions.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/domain"
)

// ExportVersion is the version written into JSON exports.
const ExportVersion = "1.0"

// PatientRecord is the stored form of a patient's accumulated record.
type PatientRecord struct {
	ID             int64                           `json:"id,omitempty"`
	PatientID      string                          `json:"patient_id"`
	CatalogVersion string                          `json:"catalog_version"`
	Statuses       map[string]domain.SymptomStatus `json:"statuses"`
	MessageCount   int                             `json:"message_count"`
	CreatedAt      time.Time                       `json:"created_at"`
	UpdatedAt      time.Time                       `json:"updated_at"`
}

// NewPatientRecord snapshots r for a patient.
func NewPatientRecord(patientID string, r *anamnesis.Record) *PatientRecord {
	return &PatientRecord{
		PatientID:      patientID,
		CatalogVersion: r.Catalog().Version(),
		Statuses:       r.Map(),
	}
}

// Record rebuilds the in-memory record over c. Symptoms the catalog no
// longer knows are dropped.
func (p *PatientRecord) Record(c *catalog.Catalog) (*anamnesis.Record, error) {
	r, err := anamnesis.FromStatuses(c, p.Statuses)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", p.PatientID, err)
	}
	return r, nil
}

// Update replaces the stored statuses with r and counts one more message.
func (p *PatientRecord) Update(r *anamnesis.Record) {
	p.CatalogVersion = r.Catalog().Version()
	p.Statuses = r.Map()
	p.MessageCount++
}

// Validate checks the fields required to persist the record.
func (p *PatientRecord) Validate() error {
	if p.PatientID == "" {
		return domain.NewValidationError("patient_id", "patient id is required", p.PatientID)
	}
	for name, s := range p.Statuses {
		if !s.IsValid() {
			return domain.NewValidationError("statuses", fmt.Sprintf("invalid status for %q", name), int(s))
		}
	}
	return nil
}

func encodeStatuses(statuses map[string]domain.SymptomStatus) (string, error) {
	if statuses == nil {
		statuses = map[string]domain.SymptomStatus{}
	}
	data, err := json.Marshal(statuses)
	if err != nil {
		return "", fmt.Errorf("failed to encode statuses: %w", err)
	}
	return string(data), nil
}

func decodeStatuses(data []byte) (map[string]domain.SymptomStatus, error) {
	statuses := map[string]domain.SymptomStatus{}
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, fmt.Errorf("failed to decode statuses: %w", err)
	}
	return statuses, nil
}

// Store defines patient record storage operations.
type Store interface {
	// Save inserts or replaces the record of a patient.
	Save(ctx context.Context, record *PatientRecord) error

	// Get returns the record of a patient, or nil when there is none.
	Get(ctx context.Context, patientID string) (*PatientRecord, error)

	// List returns records, most recently updated first.
	List(ctx context.Context, limit, offset int) ([]*PatientRecord, error)

	// Count returns the number of stored patients.
	Count(ctx context.Context) (int64, error)

	// Delete removes a patient. It returns domain.ErrNotFound when the
	// patient is unknown.
	Delete(ctx context.Context, patientID string) error

	// ExportJSON writes every record to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON loads records from reader, skipping patients that already
	// exist.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// Export is the JSON export format.
type Export struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Records    []*PatientRecord `json:"records"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list patient records: %w", err)
	}

	export := &Export{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Records:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rec := range export.Records {
		existing, err := s.Get(ctx, rec.PatientID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		rec.ID = 0
		if err := s.Save(ctx, rec); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
