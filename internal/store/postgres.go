package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL patient store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL patient store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or replaces the record of a patient.
func (s *PostgresStore) Save(ctx context.Context, record *PatientRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	statuses, err := encodeStatuses(record.Statuses)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO patient_records (
			patient_id, catalog_version, statuses, message_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (patient_id) DO UPDATE SET
			catalog_version = EXCLUDED.catalog_version,
			statuses = EXCLUDED.statuses,
			message_count = EXCLUDED.message_count,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		record.PatientID,
		record.CatalogVersion,
		statuses,
		record.MessageCount,
		createdAt,
		now,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save patient record: %w", err)
	}

	record.UpdatedAt = now
	return nil
}

// Get returns the record of a patient, or nil when there is none.
func (s *PostgresStore) Get(ctx context.Context, patientID string) (*PatientRecord, error) {
	query := `
		SELECT id, patient_id, catalog_version, statuses, message_count, created_at, updated_at
		FROM patient_records
		WHERE patient_id = $1
	`

	rec, err := scanPatientRecord(s.db.QueryRowContext(ctx, query, patientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient record: %w", err)
	}
	return rec, nil
}

// List returns records, most recently updated first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*PatientRecord, error) {
	query := `
		SELECT id, patient_id, catalog_version, statuses, message_count, created_at, updated_at
		FROM patient_records
		ORDER BY updated_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient records: %w", err)
	}
	defer rows.Close()

	var result []*PatientRecord
	for rows.Next() {
		rec, err := scanPatientRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}

	return result, rows.Err()
}

// Count returns the number of stored patients.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patient_records").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count patient records: %w", err)
	}
	return count, nil
}

// Delete removes a patient.
func (s *PostgresStore) Delete(ctx context.Context, patientID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM patient_records WHERE patient_id = $1", patientID)
	if err != nil {
		return fmt.Errorf("failed to delete patient record: %w", err)
	}
	return checkDeleted(result, patientID)
}

// ExportJSON writes every record to writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON loads records from reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
