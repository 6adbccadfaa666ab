package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dhq-platform/accommodation/internal/model"
)

const pastColumns = `id, personnel_id, unit_id, letter_id, personnel_data, unit_data,
       allocation_start_date, allocation_end_date, deallocation_date,
       reason_for_leaving, deleted_at, created_at`

// PastAllocationRepo persists the append-only occupancy archive. Rows are
// written exactly once by the allocation engine when a unit is vacated and
// are never updated. Administrative deletes tombstone the row (deleted_at)
// and every read path filters tombstones out.
type PastAllocationRepo struct {
	db *sql.DB
}

// NewPastAllocationRepo returns a PastAllocationRepo bound to the database.
func NewPastAllocationRepo(db *sql.DB) *PastAllocationRepo { return &PastAllocationRepo{db: db} }

func scanPast(row interface{ Scan(...interface{}) error }) (model.PastAllocation, error) {
	var (
		p         model.PastAllocation
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.PersonnelID, &p.UnitID, &p.LetterID, &p.PersonnelData, &p.UnitData,
		&p.AllocationStartDate, &p.AllocationEndDate, &p.DeallocationDate,
		&p.ReasonForLeaving, &deletedAt, &p.CreatedAt,
	)
	if err != nil {
		return model.PastAllocation{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return p, nil
}

// CreateTx appends an archive row within an existing transaction. The
// generated ID is populated on p.
func (r *PastAllocationRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.PastAllocation) error {
	const q = `INSERT INTO past_allocations
        (personnel_id, unit_id, letter_id, personnel_data, unit_data,
         allocation_start_date, allocation_end_date, deallocation_date, reason_for_leaving)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		p.PersonnelID, p.UnitID, p.LetterID, p.PersonnelData, p.UnitData,
		p.AllocationStartDate, p.AllocationEndDate, p.DeallocationDate, p.ReasonForLeaving)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// List returns live archive rows, most recent deallocation first.
func (r *PastAllocationRepo) List(ctx context.Context) ([]model.PastAllocation, error) {
	q := `SELECT ` + pastColumns + ` FROM past_allocations
          WHERE deleted_at IS NULL
          ORDER BY deallocation_date DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PastAllocation, 0)
	for rows.Next() {
		p, err := scanPast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SoftDelete tombstones a single archive row. Returns sql.ErrNoRows when
// the row does not exist or is already tombstoned.
func (r *PastAllocationRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE past_allocations SET deleted_at = NOW() WHERE id = ? AND deleted_at IS NULL`, id)
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

// SoftDeleteBulk tombstones several archive rows at once and returns how
// many were affected.
func (r *PastAllocationRepo) SoftDeleteBulk(ctx context.Context, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `UPDATE past_allocations SET deleted_at = NOW()
          WHERE deleted_at IS NULL AND id IN (` + strings.Join(placeholders, ",") + `)`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
