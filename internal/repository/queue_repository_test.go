package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhq-platform/accommodation/internal/model"
)

func newQueueRepo(t *testing.T) (*QueueRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewQueueRepo(db), mock
}

func sampleEntry() model.QueueEntry {
	return model.QueueEntry{
		FullName:  "John Okoro",
		SvcNo:     "DHQ/1234",
		Rank:      "Sergeant",
		Category:  model.CategoryNCO,
		Gender:    "M",
		EntryDate: time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAppendAssignsNextSequence(t *testing.T) {
	r, mock := newQueueRepo(t)
	e := sampleEntry()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(sequence\), 0\) FROM queue_entries FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(7))
	mock.ExpectExec(`INSERT INTO queue_entries`).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	require.NoError(t, r.Append(context.Background(), &e))
	assert.Equal(t, uint32(8), e.Sequence)
	assert.Equal(t, uint64(42), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendFirstEntryStartsAtOne(t *testing.T) {
	r, mock := newQueueRepo(t)
	e := sampleEntry()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(sequence\), 0\) FROM queue_entries FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO queue_entries`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, r.Append(context.Background(), &e))
	assert.Equal(t, uint32(1), e.Sequence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAtFrontShiftsBeforeInsert(t *testing.T) {
	r, mock := newQueueRepo(t)
	e := sampleEntry()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE queue_entries SET sequence = sequence \+ 1 ORDER BY sequence DESC`).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`INSERT INTO queue_entries`).
		WillReturnResult(sqlmock.NewResult(43, 1))
	mock.ExpectCommit()

	require.NoError(t, r.InsertAtFront(context.Background(), &e))
	assert.Equal(t, uint32(1), e.Sequence)
	assert.Equal(t, uint64(43), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAtFrontRollsBackOnShiftFailure(t *testing.T) {
	r, mock := newQueueRepo(t)
	e := sampleEntry()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE queue_entries SET sequence = sequence \+ 1 ORDER BY sequence DESC`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	assert.Error(t, r.InsertAtFront(context.Background(), &e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteMissingEntry(t *testing.T) {
	r, mock := newQueueRepo(t)

	mock.ExpectExec(`UPDATE queue_entries SET deleted_at = NOW\(\) WHERE id = \? AND deleted_at IS NULL`).
		WithArgs(uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := r.SoftDelete(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveFiltersAndOrders(t *testing.T) {
	r, mock := newQueueRepo(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "sequence", "full_name", "svc_no", "current_rank", "category", "gender",
		"marital_status", "dependents", "current_unit", "appointment", "entry_date",
		"has_allocation_request", "deleted_at", "created_at", "updated_at",
	}).
		AddRow(2, 1, "Ada Obi", "DHQ/9999", "Corporal", model.CategoryNCO, "F",
			"Single", 0, "HQ Garrison", "Driver", now, false, nil, now, now).
		AddRow(7, 4, "John Okoro", "DHQ/1234", "Sergeant", model.CategoryNCO, "M",
			"Married", 2, "HQ Garrison", "Clerk", now, false, nil, now, now)

	mock.ExpectQuery(`WHERE has_allocation_request = 0 AND deleted_at IS NULL`).
		WillReturnRows(rows)

	entries, err := r.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(1), entries[0].Sequence)
	assert.Equal(t, "Ada Obi", entries[0].FullName)
	assert.Equal(t, uint32(4), entries[1].Sequence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDTxMapsMissingRows(t *testing.T) {
	r, mock := newQueueRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM queue_entries WHERE id = \? AND deleted_at IS NULL FOR UPDATE`).
		WithArgs(uint64(5)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := r.DB().BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	_, err = r.GetByIDTx(context.Background(), tx, 5)
	assert.ErrorIs(t, err, ErrQueueEntryNotFound)
}

func TestTranslateSeqErr(t *testing.T) {
	dup := errors.New("Error 1062 (23000): Duplicate entry '3' for key 'queue_entries.sequence'")
	assert.ErrorIs(t, translateSeqErr(dup), ErrSequenceConflict)

	other := errors.New("Error 1213 (40001): Deadlock found")
	assert.Equal(t, other, translateSeqErr(other))
	assert.NoError(t, translateSeqErr(nil))
}
