package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anamnesis-symptom-engine/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite patient store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets the REST handlers read while a message is being saved
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPatientRecord(s scanner) (*PatientRecord, error) {
	rec := &PatientRecord{}
	var statuses []byte

	err := s.Scan(
		&rec.ID, &rec.PatientID, &rec.CatalogVersion, &statuses,
		&rec.MessageCount, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.Statuses, err = decodeStatuses(statuses); err != nil {
		return nil, err
	}
	return rec, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patient_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id TEXT NOT NULL UNIQUE,
		catalog_version TEXT NOT NULL DEFAULT '',
		statuses TEXT NOT NULL DEFAULT '{}',
		message_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_patient_records_updated_at ON patient_records(updated_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or replaces the record of a patient.
func (s *SQLiteStore) Save(ctx context.Context, record *PatientRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	statuses, err := encodeStatuses(record.Statuses)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	var existingID int64
	var createdAt time.Time
	err = s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM patient_records WHERE patient_id = ?",
		record.PatientID,
	).Scan(&existingID, &createdAt)

	if err == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE patient_records SET
				catalog_version = ?,
				statuses = ?,
				message_count = ?,
				updated_at = ?
			WHERE id = ?
		`,
			record.CatalogVersion,
			statuses,
			record.MessageCount,
			now,
			existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update: %w", err)
		}
		record.ID = existingID
		record.CreatedAt = createdAt
		record.UpdatedAt = now
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO patient_records (
			patient_id, catalog_version, statuses, message_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.PatientID,
		record.CatalogVersion,
		statuses,
		record.MessageCount,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	record.ID = id

	return nil
}

// Get returns the record of a patient, or nil when there is none.
func (s *SQLiteStore) Get(ctx context.Context, patientID string) (*PatientRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, patient_id, catalog_version, statuses, message_count, created_at, updated_at
		FROM patient_records
		WHERE patient_id = ?
	`, patientID)

	rec, err := scanPatientRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// List returns records, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*PatientRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, catalog_version, statuses, message_count, created_at, updated_at
		FROM patient_records
		ORDER BY updated_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patient_records").Scan(&count)
	return count, err
}

// Delete removes a patient.
func (s *SQLiteStore) Delete(ctx context.Context, patientID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM patient_records WHERE patient_id = ?", patientID)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return checkDeleted(result, patientID)
}

// ExportJSON writes every record to writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON loads records from reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkDeleted(result sql.Result, patientID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("patient %s: %w", patientID, domain.ErrNotFound)
	}
	return nil
}
