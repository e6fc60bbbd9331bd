package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anamnesis-symptom-engine/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO patient_records")).
		WithArgs("patient-1", "2024.1", `{"температура":"NO"}`, 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))

	rec := &PatientRecord{
		PatientID:      "patient-1",
		CatalogVersion: "2024.1",
		Statuses:       map[string]domain.SymptomStatus{"температура": domain.NO},
		MessageCount:   3,
	}
	require.NoError(t, store.Save(context.Background(), rec))

	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, created, rec.CreatedAt)
	assert.False(t, rec.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM patient_records")).
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "patient_id", "catalog_version", "statuses", "message_count", "created_at", "updated_at",
		}).AddRow(7, "patient-1", "2024.1", []byte(`{"кашель":"CONFUSED"}`), 2, now, now))

	rec, err := store.Get(context.Background(), "patient-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.CONFUSED, rec.Statuses["кашель"])
	assert.Equal(t, 2, rec.MessageCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM patient_records")).
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	rec, err := store.Get(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPostgresStore_Get_CorruptStatuses(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM patient_records")).
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "patient_id", "catalog_version", "statuses", "message_count", "created_at", "updated_at",
		}).AddRow(7, "patient-1", "2024.1", []byte(`{"кашель":"MAYBE"}`), 2, now, now))

	_, err := store.Get(context.Background(), "patient-1")
	assert.Error(t, err)
}

func TestPostgresStore_ListAndCount(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY updated_at DESC")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "patient_id", "catalog_version", "statuses", "message_count", "created_at", "updated_at",
		}).
			AddRow(2, "b", "2024.1", []byte(`{}`), 1, now, now).
			AddRow(1, "a", "2024.1", []byte(`{"сыпь":"YES"}`), 4, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM patient_records")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	list, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].PatientID)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM patient_records")).
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM patient_records")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Delete(context.Background(), "a"))
	assert.ErrorIs(t, store.Delete(context.Background(), "ghost"), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
