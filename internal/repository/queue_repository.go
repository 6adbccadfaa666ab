package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dhq-platform/accommodation/internal/model"
)

// ErrQueueEntryNotFound is returned when a referenced queue entry does not
// exist or has already been consumed by an allocation request.
var ErrQueueEntryNotFound = errors.New("queue entry not found")

// queueColumns is the column list scanned into a model.QueueEntry. Kept in
// one place so every query stays in sync with scanEntry.
const queueColumns = `id, sequence, full_name, svc_no, current_rank, category, gender,
       marital_status, dependents, current_unit, appointment, entry_date,
       has_allocation_request, deleted_at, created_at, updated_at`

// QueueRepo maintains the ordered accommodation waiting list. The sequence
// column defines the total order; gaps left by removals are harmless because
// "next in line" is always the minimum sequence among live entries. All
// mutations that touch more than one row run inside a caller-provided
// transaction.
type QueueRepo struct {
	db *sql.DB
}

// NewQueueRepo returns a QueueRepo bound to the given database.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions.
func (r *QueueRepo) DB() *sql.DB { return r.db }

func scanEntry(row interface{ Scan(...interface{}) error }) (model.QueueEntry, error) {
	var (
		e         model.QueueEntry
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.Sequence, &e.FullName, &e.SvcNo, &e.Rank, &e.Category, &e.Gender,
		&e.MaritalStatus, &e.Dependents, &e.CurrentUnit, &e.Appointment, &e.EntryDate,
		&e.HasAllocationRequest, &deletedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return model.QueueEntry{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		e.DeletedAt = &t
	}
	return e, nil
}

const insertEntry = `INSERT INTO queue_entries
    (sequence, full_name, svc_no, current_rank, category, gender, marital_status,
     dependents, current_unit, appointment, entry_date, has_allocation_request)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// AppendTx inserts a new entry at the back of the queue within an existing
// transaction. The next sequence is read under a lock so that two concurrent
// appends cannot compute the same value. The generated ID and sequence are
// populated on the provided entry.
func (r *QueueRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.QueueEntry) error {
	var maxSeq uint32
	const q = `SELECT COALESCE(MAX(sequence), 0) FROM queue_entries FOR UPDATE`
	if err := tx.QueryRowContext(ctx, q).Scan(&maxSeq); err != nil {
		return err
	}
	e.Sequence = maxSeq + 1
	res, err := tx.ExecContext(ctx, insertEntry,
		e.Sequence, e.FullName, e.SvcNo, e.Rank, e.Category, e.Gender, e.MaritalStatus,
		e.Dependents, e.CurrentUnit, e.Appointment, e.EntryDate, e.HasAllocationRequest)
	if err != nil {
		return translateSeqErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// Append inserts a new entry at the back of the queue in its own
// transaction.
func (r *QueueRepo) Append(ctx context.Context, e *model.QueueEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := r.AppendTx(ctx, tx, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// InsertAtFrontTx moves every existing entry one place back and inserts the
// given entry at sequence 1. The shift and the insert form a single
// all-or-nothing step: a torn shift would corrupt the total order for every
// waiting entrant, so callers must run this inside a transaction and roll
// back on any error. The descending ORDER BY makes the shift safe under a
// unique index on sequence.
func (r *QueueRepo) InsertAtFrontTx(ctx context.Context, tx *sql.Tx, e *model.QueueEntry) error {
	const shift = `UPDATE queue_entries SET sequence = sequence + 1 ORDER BY sequence DESC`
	if _, err := tx.ExecContext(ctx, shift); err != nil {
		return err
	}
	e.Sequence = 1
	res, err := tx.ExecContext(ctx, insertEntry,
		e.Sequence, e.FullName, e.SvcNo, e.Rank, e.Category, e.Gender, e.MaritalStatus,
		e.Dependents, e.CurrentUnit, e.Appointment, e.EntryDate, e.HasAllocationRequest)
	if err != nil {
		return translateSeqErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// InsertAtFront wraps InsertAtFrontTx in its own transaction. Restricted to
// privileged callers at the handler layer because it reorders every other
// waiting person.
func (r *QueueRepo) InsertAtFront(ctx context.Context, e *model.QueueEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := r.InsertAtFrontTx(ctx, tx, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByIDTx loads a live entry by ID within a transaction, locking the row
// for the duration. Returns sql.ErrNoRows when the entry does not exist or
// has been tombstoned.
func (r *QueueRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.QueueEntry, error) {
	q := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = ? AND deleted_at IS NULL FOR UPDATE`
	e, err := scanEntry(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.QueueEntry{}, ErrQueueEntryNotFound
	}
	return e, err
}

// DeleteTx removes an entry within a transaction. Used by the allocation
// engine when converting an entry into a request; the remaining sequence
// values are deliberately not compacted. Returns sql.ErrNoRows when nothing
// was deleted so the caller can abort the surrounding transaction.
func (r *QueueRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM queue_entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete tombstones an entry on behalf of an administrator. The row is
// kept with a deleted_at timestamp and filtered out of all read paths.
func (r *QueueRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE queue_entries SET deleted_at = NOW() WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListActive returns all live entries that have not yet been converted into
// an allocation request, ordered by sequence ascending with most recently
// updated first as a tiebreak.
func (r *QueueRepo) ListActive(ctx context.Context) ([]model.QueueEntry, error) {
	q := `SELECT ` + queueColumns + ` FROM queue_entries
          WHERE has_allocation_request = 0 AND deleted_at IS NULL
          ORDER BY sequence ASC, updated_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.QueueEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountActive returns the number of live entries still waiting. Used by the
// advisory queue heartbeat.
func (r *QueueRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_entries WHERE has_allocation_request = 0 AND deleted_at IS NULL`).Scan(&n)
	return n, err
}

// translateSeqErr maps a MySQL duplicate-key failure on the sequence index
// to ErrSequenceConflict. Error 1062 is the duplicate entry code.
func translateSeqErr(err error) error {
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrSequenceConflict
	}
	return err
}
