package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dhq-platform/accommodation/internal/model"
)

// ErrRequestNotFound is returned when a referenced allocation request does
// not exist.
var ErrRequestNotFound = errors.New("allocation request not found")

// ErrNotApproved is returned when a deallocation is attempted on a request
// that is not in the APPROVED state.
var ErrNotApproved = errors.New("allocation request is not approved")

const requestColumns = `id, personnel_id, unit_id, letter_id, personnel_data, unit_data,
       status, approved_by, approved_at, refusal_reason, created_at, updated_at`

// AllocationRepo persists allocation requests. Status transitions are only
// written through the *Tx methods so the allocation engine can keep every
// transition atomic with its compensating actions (unit flips, queue
// reinsertion, archive rows).
type AllocationRepo struct {
	db *sql.DB
}

// NewAllocationRepo returns an AllocationRepo bound to the given database.
func NewAllocationRepo(db *sql.DB) *AllocationRepo { return &AllocationRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions.
func (r *AllocationRepo) DB() *sql.DB { return r.db }

func scanRequest(row interface{ Scan(...interface{}) error }) (model.AllocationRequest, error) {
	var (
		a          model.AllocationRequest
		approvedBy sql.NullInt64
		approvedAt sql.NullTime
		reason     sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.PersonnelID, &a.UnitID, &a.LetterID, &a.PersonnelData, &a.UnitData,
		&a.Status, &approvedBy, &approvedAt, &reason, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return model.AllocationRequest{}, err
	}
	if approvedBy.Valid {
		v := uint64(approvedBy.Int64)
		a.ApprovedBy = &v
	}
	if approvedAt.Valid {
		v := approvedAt.Time
		a.ApprovedAt = &v
	}
	if reason.Valid {
		v := reason.String
		a.RefusalReason = &v
	}
	return a, nil
}

// CreateTx inserts a new request within an existing transaction and reads
// the row back to populate generated ID and timestamps. The caller must
// commit or roll back.
func (r *AllocationRepo) CreateTx(ctx context.Context, tx *sql.Tx, a *model.AllocationRequest) error {
	const q = `INSERT INTO allocation_requests
        (personnel_id, unit_id, letter_id, personnel_data, unit_data, status)
        VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		a.PersonnelID, a.UnitID, a.LetterID, a.PersonnelData, a.UnitData, a.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	sel := `SELECT ` + requestColumns + ` FROM allocation_requests WHERE id = ?`
	got, err := scanRequest(tx.QueryRowContext(ctx, sel, a.ID))
	if err != nil {
		return err
	}
	*a = got
	return nil
}

// GetByID fetches a request by ID. Returns ErrRequestNotFound when absent.
func (r *AllocationRepo) GetByID(ctx context.Context, id uint64) (model.AllocationRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM allocation_requests WHERE id = ?`
	a, err := scanRequest(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AllocationRequest{}, ErrRequestNotFound
	}
	return a, err
}

// GetByIDTx fetches a request within a transaction, locking the row so that
// concurrent decisions on the same request serialize.
func (r *AllocationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.AllocationRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM allocation_requests WHERE id = ? FOR UPDATE`
	a, err := scanRequest(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AllocationRequest{}, ErrRequestNotFound
	}
	return a, err
}

// HasPendingForUnitTx reports whether a pending request already references
// the unit. Called with the unit row locked, so the answer cannot change
// before the surrounding transaction commits.
func (r *AllocationRepo) HasPendingForUnitTx(ctx context.Context, tx *sql.Tx, unitID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM allocation_requests WHERE unit_id = ? AND status = ?`,
		unitID, model.RequestPending).Scan(&n)
	return n > 0, err
}

// CountCreatedInYearTx counts requests created in [Jan 1 year, Jan 1 year+1)
// for the letter-ID generator.
func (r *AllocationRepo) CountCreatedInYearTx(ctx context.Context, tx *sql.Tx, year int) (int, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM allocation_requests WHERE created_at >= ? AND created_at < ?`,
		from, to).Scan(&n)
	return n, err
}

// LetterIDExistsTx reports whether the formatted letter ID is already in
// use. The letter ID is display-only, so this is a best-effort check that
// lets the generator fall back to a timestamp-suffixed value.
func (r *AllocationRepo) LetterIDExistsTx(ctx context.Context, tx *sql.Tx, letterID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM allocation_requests WHERE letter_id = ?`, letterID).Scan(&n)
	return n > 0, err
}

// MarkApprovedTx transitions a pending request to APPROVED within a
// transaction.
func (r *AllocationRepo) MarkApprovedTx(ctx context.Context, tx *sql.Tx, id, approverID uint64, at time.Time) error {
	const q = `UPDATE allocation_requests SET status = ?, approved_by = ?, approved_at = ?
               WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, model.RequestApproved, approverID, at, id)
	return err
}

// MarkRefusedTx transitions a pending request to REFUSED within a
// transaction, recording the reason.
func (r *AllocationRepo) MarkRefusedTx(ctx context.Context, tx *sql.Tx, id uint64, reason string) error {
	const q = `UPDATE allocation_requests SET status = ?, refusal_reason = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, model.RequestRefused, reason, id)
	return err
}

// MarkDeallocatedTx transitions an approved request to DEALLOCATED within a
// transaction.
func (r *AllocationRepo) MarkDeallocatedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE allocation_requests SET status = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, model.RequestDeallocated, id)
	return err
}

// List returns requests, optionally filtered by status, newest first.
func (r *AllocationRepo) List(ctx context.Context, status string) ([]model.AllocationRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM allocation_requests`
	args := make([]interface{}, 0, 1)
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AllocationRequest, 0)
	for rows.Next() {
		a, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
