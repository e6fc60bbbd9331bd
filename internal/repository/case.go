package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/domain"
)

// LabeledCase is a patient message with the statuses a human marked in it.
type LabeledCase struct {
	ID             uuid.UUID                       `json:"id"`
	Text           string                          `json:"text"`
	Truth          map[string]domain.SymptomStatus `json:"truth"`
	Source         string                          `json:"source,omitempty"`
	CatalogVersion string                          `json:"catalog_version,omitempty"`
	CreatedAt      time.Time                       `json:"created_at"`
}

// TruthRecord builds the ground-truth record of the case over c.
func (lc *LabeledCase) TruthRecord(c *catalog.Catalog) (*anamnesis.Record, error) {
	return anamnesis.FromStatuses(c, lc.Truth)
}

// CaseRepository handles labelled case persistence
type CaseRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *pgxpool.Pool, logger *logrus.Logger) *CaseRepository {
	return &CaseRepository{
		db:  db,
		log: logger,
	}
}

const caseColumns = `id, text, truth, source, catalog_version, created_at`

// Create inserts a new case. A nil ID is replaced with a fresh one.
func (r *CaseRepository) Create(ctx context.Context, lc *LabeledCase) error {
	if strings.TrimSpace(lc.Text) == "" {
		return domain.NewValidationError("text", "case text is required", lc.Text)
	}
	if lc.ID == uuid.Nil {
		lc.ID = uuid.New()
	}
	truth, err := encodeTruth(lc.Truth)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO labeled_cases (id, text, truth, source, catalog_version)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err = r.db.QueryRow(ctx, query, lc.ID, lc.Text, truth, lc.Source, lc.CatalogVersion).Scan(&lc.CreatedAt)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"case_id": lc.ID,
			"error":   err,
		}).Error("Failed to create labelled case")
		return fmt.Errorf("creating labelled case: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"case_id": lc.ID,
		"source":  lc.Source,
	}).Debug("Labelled case created")

	return nil
}

// CreateBatch inserts cases in one transaction.
func (r *CaseRepository) CreateBatch(ctx context.Context, cases []*LabeledCase) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, lc := range cases {
		if strings.TrimSpace(lc.Text) == "" {
			return domain.NewValidationError("text", fmt.Sprintf("case %d has no text", i), lc.Text)
		}
		if lc.ID == uuid.Nil {
			lc.ID = uuid.New()
		}
		truth, err := encodeTruth(lc.Truth)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO labeled_cases (id, text, truth, source, catalog_version)
			VALUES ($1, $2, $3, $4, $5)`,
			lc.ID, lc.Text, truth, lc.Source, lc.CatalogVersion)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting labelled cases: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing labelled cases: %w", err)
	}

	r.log.WithField("count", len(cases)).Info("Labelled cases imported")
	return nil
}

// GetByID retrieves a case by its ID
func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*LabeledCase, error) {
	query := `SELECT ` + caseColumns + ` FROM labeled_cases WHERE id = $1`

	lc, err := scanCase(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("labelled case not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"case_id": id,
			"error":   err,
		}).Error("Failed to get labelled case")
		return nil, fmt.Errorf("getting labelled case: %w", err)
	}
	return lc, nil
}

// List returns cases in insertion order with pagination. An empty source
// lists every case.
func (r *CaseRepository) List(ctx context.Context, source string, limit, offset int) ([]*LabeledCase, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM labeled_cases
		WHERE ($1 = '' OR source = $1)
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, source, limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"source": source,
			"error":  err,
		}).Error("Failed to list labelled cases")
		return nil, fmt.Errorf("listing labelled cases: %w", err)
	}
	defer rows.Close()

	var cases []*LabeledCase
	for rows.Next() {
		lc, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning labelled case row: %w", err)
		}
		cases = append(cases, lc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating labelled case rows: %w", err)
	}

	return cases, nil
}

// Count returns the number of cases, optionally restricted to a source.
func (r *CaseRepository) Count(ctx context.Context, source string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM labeled_cases WHERE ($1 = '' OR source = $1)`, source,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting labelled cases: %w", err)
	}
	return count, nil
}

// UpdateTruth replaces the labels of a case.
func (r *CaseRepository) UpdateTruth(ctx context.Context, id uuid.UUID, truth map[string]domain.SymptomStatus) error {
	encoded, err := encodeTruth(truth)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(ctx, `UPDATE labeled_cases SET truth = $2 WHERE id = $1`, id, encoded)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"case_id": id,
			"error":   err,
		}).Error("Failed to update labelled case")
		return fmt.Errorf("updating labelled case: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("labelled case not found: %w", domain.ErrNotFound)
	}
	return nil
}

// Delete removes a case
func (r *CaseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM labeled_cases WHERE id = $1`, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"case_id": id,
			"error":   err,
		}).Error("Failed to delete labelled case")
		return fmt.Errorf("deleting labelled case: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("labelled case not found: %w", domain.ErrNotFound)
	}

	r.log.WithField("case_id", id).Info("Labelled case deleted")
	return nil
}

func scanCase(row pgx.Row) (*LabeledCase, error) {
	var lc LabeledCase
	var truth []byte
	if err := row.Scan(&lc.ID, &lc.Text, &truth, &lc.Source, &lc.CatalogVersion, &lc.CreatedAt); err != nil {
		return nil, err
	}
	lc.Truth = map[string]domain.SymptomStatus{}
	if err := json.Unmarshal(truth, &lc.Truth); err != nil {
		return nil, fmt.Errorf("decoding truth of case %s: %w", lc.ID, err)
	}
	return &lc, nil
}

func encodeTruth(truth map[string]domain.SymptomStatus) (string, error) {
	if truth == nil {
		truth = map[string]domain.SymptomStatus{}
	}
	data, err := json.Marshal(truth)
	if err != nil {
		return "", fmt.Errorf("encoding truth: %w", err)
	}
	return string(data), nil
}
